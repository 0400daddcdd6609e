package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	config "github.com/adcraft/postpilot/configs"
	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
)

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) string
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) string {
	switch platform {
	case "instagram":
		return InstagramOAuthConfig(s.cfg).AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "code"))
	default:
		return ""
	}
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		err := errors.New("user id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts")
	}

	return accounts, nil
}

// Disconnect soft-deactivates the credential. The row stays behind for
// the publish_log audit trail.
func (s *platformService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if userID == 0 {
		err := errors.New("user id is not valid")
		slog.Info(err.Error())
		return err
	}

	if accountID == 0 {
		err := errors.New("account id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err := errors.New("social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err := s.sa.Deactivate(ctx, accountID); err != nil {
		return fmt.Errorf("error disconnecting account")
	}

	return nil
}
