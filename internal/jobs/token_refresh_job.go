package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
	"github.com/adcraft/postpilot/internal/service"
)

// TokenRefreshJob keeps publish credentials alive by refreshing tokens
// that expire within the next half hour.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ig service.InstagramService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ig: ig,
	}
}

func (c *TokenRefreshJob) Run() {
	c.RefreshTokens()
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListByTokenExpiry(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		if acc.Platform != "instagram" {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ig.RefreshInstagramToken(ctx, acc.ID, acc.RefreshToken); err != nil {
				slog.Info("unable to refresh Instagram token", "account_id", acc.ID)
			}
		}(acc)
	}

	wg.Wait()
}
