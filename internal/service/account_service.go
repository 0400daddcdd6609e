package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
)

// AccountService finds the credential a post should be published with.
type AccountService interface {
	Resolve(ctx context.Context, post *models.Post) (*models.SocialAccount, error)
}

type accountService struct {
	sa repository.SocialAccountRepository
}

func NewAccountService(sa repository.SocialAccountRepository) AccountService {
	return &accountService{sa: sa}
}

// Resolve honors an explicit target account when the post names one;
// otherwise it falls back to the most-recently-used active account in
// the post's owning scope.
func (s *accountService) Resolve(ctx context.Context, post *models.Post) (*models.SocialAccount, error) {
	if post.AccountID.Valid {
		acc, err := s.sa.GetByID(ctx, post.AccountID.Int64)
		if err != nil {
			return nil, err
		}
		if acc == nil || acc.AccountStatus != models.AccountStatusActive {
			return nil, fmt.Errorf("%w: account %d", ErrAccountNotFound, post.AccountID.Int64)
		}
		if !ownedByScope(acc, post) {
			return nil, fmt.Errorf("%w: account %d is outside the post's scope", ErrAccountNotFound, acc.ID)
		}
		s.touch(acc.ID)
		return acc, nil
	}

	acc, err := s.sa.FindActiveForScope(ctx, post.UserID, post.OrgID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNoAccountConnected
	}

	s.touch(acc.ID)
	return acc, nil
}

// ownedByScope checks the credential belongs to the post's ownership
// boundary: org posts may use the org's shared accounts, personal posts
// only the owner's personal accounts.
func ownedByScope(acc *models.SocialAccount, post *models.Post) bool {
	if post.OrgID.Valid {
		return acc.OrgID.Valid && acc.OrgID.Int64 == post.OrgID.Int64
	}
	return !acc.OrgID.Valid && acc.UserID == post.UserID
}

// touch records last_used_at best-effort. It is not part of the publish
// transaction and its failure never fails the resolution.
func (s *accountService) touch(accountID int64) {
	go func() {
		if err := s.sa.TouchLastUsed(context.Background(), accountID); err != nil {
			slog.Info("failed to update last_used_at", "account_id", accountID, "err", err.Error())
		}
	}()
}
