package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcraft/postpilot/internal/models"
)

func usedAt(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func TestResolveExplicitAccount(t *testing.T) {
	acc := &models.SocialAccount{ID: 42, UserID: 7, AccountStatus: models.AccountStatusActive}
	svc := NewAccountService(newFakeAccountRepo(acc))

	post := scheduledPost(0)
	post.AccountID = sql.NullInt64{Int64: 42, Valid: true}

	got, err := svc.Resolve(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
}

func TestResolveExplicitAccountNotFound(t *testing.T) {
	svc := NewAccountService(newFakeAccountRepo())

	post := scheduledPost(0)
	post.AccountID = sql.NullInt64{Int64: 42, Valid: true}

	_, err := svc.Resolve(context.Background(), post)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolveExplicitAccountInactive(t *testing.T) {
	acc := &models.SocialAccount{ID: 42, UserID: 7, AccountStatus: models.AccountStatusDisconnected}
	svc := NewAccountService(newFakeAccountRepo(acc))

	post := scheduledPost(0)
	post.AccountID = sql.NullInt64{Int64: 42, Valid: true}

	_, err := svc.Resolve(context.Background(), post)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolveExplicitAccountOutsideScope(t *testing.T) {
	// A personal post must not publish through an org credential even
	// when it names the account directly.
	orgAcc := &models.SocialAccount{
		ID:            42,
		UserID:        7,
		OrgID:         sql.NullInt64{Int64: 3, Valid: true},
		AccountStatus: models.AccountStatusActive,
	}
	svc := NewAccountService(newFakeAccountRepo(orgAcc))

	post := scheduledPost(0)
	post.AccountID = sql.NullInt64{Int64: 42, Valid: true}

	_, err := svc.Resolve(context.Background(), post)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolveFallsBackToMostRecentlyUsed(t *testing.T) {
	older := &models.SocialAccount{
		ID: 1, UserID: 7,
		AccountStatus: models.AccountStatusActive,
		LastUsedAt:    usedAt(time.Now().Add(-time.Hour)),
	}
	newer := &models.SocialAccount{
		ID: 2, UserID: 7,
		AccountStatus: models.AccountStatusActive,
		LastUsedAt:    usedAt(time.Now()),
	}
	svc := NewAccountService(newFakeAccountRepo(older, newer))

	got, err := svc.Resolve(context.Background(), scheduledPost(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
}

func TestResolveSkipsDisconnectedAccounts(t *testing.T) {
	disconnected := &models.SocialAccount{
		ID: 1, UserID: 7,
		AccountStatus: models.AccountStatusDisconnected,
		LastUsedAt:    usedAt(time.Now()),
	}
	active := &models.SocialAccount{
		ID: 2, UserID: 7,
		AccountStatus: models.AccountStatusActive,
		LastUsedAt:    usedAt(time.Now().Add(-time.Hour)),
	}
	svc := NewAccountService(newFakeAccountRepo(disconnected, active))

	got, err := svc.Resolve(context.Background(), scheduledPost(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
}

func TestResolveOrgScope(t *testing.T) {
	orgID := sql.NullInt64{Int64: 3, Valid: true}
	personal := &models.SocialAccount{ID: 1, UserID: 7, AccountStatus: models.AccountStatusActive}
	shared := &models.SocialAccount{ID: 2, UserID: 9, OrgID: orgID, AccountStatus: models.AccountStatusActive}
	svc := NewAccountService(newFakeAccountRepo(personal, shared))

	post := scheduledPost(0)
	post.OrgID = orgID

	got, err := svc.Resolve(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID, "an org post draws from the org's shared accounts")
}

func TestResolveNoAccountConnected(t *testing.T) {
	svc := NewAccountService(newFakeAccountRepo())

	_, err := svc.Resolve(context.Background(), scheduledPost(0))
	require.ErrorIs(t, err, ErrNoAccountConnected)
}
