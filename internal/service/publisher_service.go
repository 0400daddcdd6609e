package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
)

// MaxPublishAttempts is the retry cap: a post failing this many claimed
// attempts becomes failed and needs operator intervention.
const MaxPublishAttempts = 3

// PublisherService drives the publish state machine for a single post.
// Both dispatch triggers call PublishPost; the atomic claim inside
// guarantees at most one of them does any work.
type PublisherService interface {
	PublishPost(ctx context.Context, postID int64) error
}

type publisherService struct {
	pr       repository.PostRepository
	pl       repository.PublishLogRepository
	accounts AccountService
	assets   AssetService
	ig       InstagramService
}

func NewPublisherService(
	pr repository.PostRepository,
	pl repository.PublishLogRepository,
	accounts AccountService,
	assets AssetService,
	ig InstagramService) PublisherService {
	return &publisherService{
		pr:       pr,
		pl:       pl,
		accounts: accounts,
		assets:   assets,
		ig:       ig,
	}
}

// PublishPost claims the post, runs one publish attempt and records the
// outcome. A lost claim is a silent no-op: the other trigger won the
// race. Attempt failures are converted into state transitions and never
// propagate, so one bad post cannot abort a batch or the worker.
func (s *publisherService) PublishPost(ctx context.Context, postID int64) error {
	post, err := s.pr.ClaimForPublish(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("post not claimable, skipping", "post_id", postID)
		return nil
	}

	mediaID, accountID, attemptErr := s.attempt(ctx, post)
	if attemptErr == nil {
		publishedAt := time.Now()
		if err := s.pr.MarkPublished(ctx, post.ID, mediaID, publishedAt); err != nil {
			return err
		}
		s.logAttempt(post, accountID, mediaID, "")
		slog.Info("post published", "post_id", post.ID, "media_id", mediaID, "attempt", post.PublishAttempts)
		return nil
	}

	errMsg := attemptErr.Error()
	s.logAttempt(post, accountID, "", errMsg)

	// The claim already consumed this attempt, so the counter on the
	// claimed row is the number of attempts spent including this one.
	if post.PublishAttempts >= MaxPublishAttempts {
		slog.Info("post exhausted retry budget", "post_id", post.ID, "attempts", post.PublishAttempts, "err", errMsg)
		return s.pr.MarkFailed(ctx, post.ID, errMsg)
	}

	slog.Info("publish attempt failed, post rescheduled", "post_id", post.ID, "attempt", post.PublishAttempts, "err", errMsg)
	return s.pr.RevertToScheduled(ctx, post.ID, errMsg)
}

// attempt runs resolve asset -> resolve account -> protocol client.
// The returned account id is zero when the failure happened before an
// account was resolved.
func (s *publisherService) attempt(ctx context.Context, post *models.Post) (mediaID string, accountID int64, err error) {
	assetURL, err := s.assets.Resolve(ctx, post.AssetRef)
	if err != nil {
		return "", 0, err
	}

	account, err := s.accounts.Resolve(ctx, post)
	if err != nil {
		return "", 0, err
	}

	mediaID, err = s.ig.PublishMedia(ctx, assetURL, composeCaption(post), post.Subtype, account)
	if err != nil {
		return "", account.ID, err
	}

	return mediaID, account.ID, nil
}

// composeCaption appends the hashtag list to the caption text.
func composeCaption(post *models.Post) string {
	if len(post.Hashtags) == 0 {
		return post.Caption
	}
	tags := strings.Join(post.Hashtags, " ")
	if post.Caption == "" {
		return tags
	}
	return post.Caption + "\n\n" + tags
}

// logAttempt writes the audit row outside the publish flow. Failures
// here are logged and discarded; the outcome of the attempt is already
// durable on the post row.
func (s *publisherService) logAttempt(post *models.Post, accountID int64, mediaID, errMsg string) {
	entry := &models.PublishLog{
		UserID:          post.UserID,
		PostID:          post.ID,
		AccountID:       accountID,
		Attempt:         post.PublishAttempts,
		PlatformMediaID: mediaID,
		ErrorMessage:    errMsg,
	}

	go func() {
		if _, err := s.pl.Create(context.Background(), entry); err != nil {
			slog.Info("failed to record publish log", "post_id", entry.PostID, "err", err.Error())
		}
	}()
}
