package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcraft/postpilot/internal/models"
)

func newMockRepo(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostRepository(db), mock
}

func postRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "org_id", "account_id", "asset_ref", "caption",
		"hashtags", "subtype", "scheduled_at", "display_time", "timezone",
		"status", "publish_attempts", "last_publish_attempt", "error_message",
		"platform_media_id", "published_at", "created_at", "updated_at",
	})
}

func addPostRow(rows *sqlmock.Rows, id int64, status string, attempts int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, int64(7), nil, nil, "https://cdn.example.com/cat.jpg", "hello",
		"{#go,#dev}", models.SubtypePhoto, int64(1700000000000), "2023-11-14 22:13", "UTC",
		status, attempts, now, nil,
		nil, nil, now, now,
	)
}

func TestClaimForPublishReturnsClaimedRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := addPostRow(postRows(), 1, models.PostStatusPublishing, 1)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusPublishing, int64(1), models.PostStatusScheduled).
		WillReturnRows(rows)

	post, err := repo.ClaimForPublish(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, post)

	assert.Equal(t, models.PostStatusPublishing, post.Status)
	assert.Equal(t, 1, post.PublishAttempts, "the claim consumes one attempt")
	assert.Equal(t, []string{"#go", "#dev"}, post.Hashtags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForPublishLostRaceIsNoOp(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusPublishing, int64(1), models.PostStatusScheduled).
		WillReturnError(sql.ErrNoRows)

	post, err := repo.ClaimForPublish(context.Background(), 1)
	require.NoError(t, err, "a lost claim is not an error")
	assert.Nil(t, post)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDueFiltersByDueInstant(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := postRows()
	rows = addPostRow(rows, 1, models.PostStatusScheduled, 0)
	rows = addPostRow(rows, 2, models.PostStatusScheduled, 1)

	nowMillis := int64(1700000005000)
	mock.ExpectQuery(regexp.QuoteMeta("FROM posts WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at ASC LIMIT $3")).
		WithArgs(models.PostStatusScheduled, nowMillis, 5).
		WillReturnRows(rows)

	posts, err := repo.ListDue(context.Background(), nowMillis, 5)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPublishedGuardsOnPublishingState(t *testing.T) {
	repo, mock := newMockRepo(t)

	publishedAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusPublished, "media_1", publishedAt, int64(1), models.PostStatusPublishing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPublished(context.Background(), 1, "media_1", publishedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertToScheduledKeepsErrorMessage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusScheduled, "container rejected", int64(1), models.PostStatusPublishing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevertToScheduled(context.Background(), 1, "container rejected"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelIfScheduled(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusCanceled, int64(1), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	canceled, err := repo.CancelIfScheduled(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelIfScheduledNoOpWhenNotScheduled(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(models.PostStatusCanceled, int64(1), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	canceled, err := repo.CancelIfScheduled(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, canceled, "posts past scheduled state are left alone")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleOnlyMovesScheduledPosts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(int64(1700003600000), "2023-11-14 23:13", "UTC", int64(1), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.Reschedule(context.Background(), 1, 1700003600000, "2023-11-14 23:13", "UTC")
	require.NoError(t, err)
	assert.True(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleNoOpWhenNotScheduled(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs(int64(1700003600000), "", "", int64(1), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.Reschedule(context.Background(), 1, 1700003600000, "", "")
	require.NoError(t, err)
	assert.False(t, moved, "posts past scheduled state keep their instant")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveDeletesRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Remove(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissingPost(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	post, err := repo.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, post)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePostReturnsID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	post := &models.Post{
		UserID:      7,
		AssetRef:    "https://cdn.example.com/cat.jpg",
		Caption:     "hello",
		Hashtags:    []string{"#go"},
		Subtype:     models.SubtypePhoto,
		ScheduledAt: 1700000000000,
		Status:      models.PostStatusScheduled,
	}

	id, err := repo.Create(context.Background(), nil, post)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
