package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adcraft/postpilot/internal/models"
	"github.com/adcraft/postpilot/internal/repository"
	"github.com/adcraft/postpilot/internal/transfer"
)

// DispatchScheduler is the delayed-job half of the dispatch layer: one
// durable job per post, keyed by post id, fired at the due instant.
// Implemented by the queue package.
type DispatchScheduler interface {
	Schedule(postID int64, delay time.Duration) error
	Cancel(postID int64) error
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Status(ctx context.Context, postID, userID int64) (*transfer.PostStatus, error)
	History(ctx context.Context, postID, userID int64) ([]*models.PublishLog, error)
	Reschedule(ctx context.Context, userID, postID int64, rr *transfer.PostReschedule) error
	Cancel(ctx context.Context, userID, postID int64) error
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr   repository.PostRepository
	pl   repository.PublishLogRepository
	ac   repository.SocialAccountRepository
	jobs DispatchScheduler
}

func NewPostService(pr repository.PostRepository, pl repository.PublishLogRepository, ac repository.SocialAccountRepository, jobs DispatchScheduler) PostService {
	return &postService{
		pr:   pr,
		pl:   pl,
		ac:   ac,
		jobs: jobs,
	}
}

// CreatePost validates and stores the post, then enqueues the delayed
// job. An enqueue failure is deliberately non-fatal: the periodic
// scanner is the safety net, so the request still succeeds.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if pc.AssetRef == "" {
		err := errors.New("asset reference cannot be empty")
		slog.Info(err.Error())
		return 0, err
	}
	if pc.ScheduledAt <= 0 {
		err := errors.New("scheduled_at must be a positive epoch-millisecond timestamp")
		slog.Info(err.Error())
		return 0, err
	}

	subtype := pc.Subtype
	if subtype == "" {
		subtype = models.SubtypePhoto
	}
	switch subtype {
	case models.SubtypePhoto, models.SubtypeReel, models.SubtypeStory:
	default:
		err := fmt.Errorf("unknown content subtype %q", pc.Subtype)
		slog.Info(err.Error())
		return 0, err
	}

	post := models.Post{
		UserID:      userID,
		AssetRef:    pc.AssetRef,
		Caption:     pc.Caption,
		Hashtags:    pc.Hashtags,
		Subtype:     subtype,
		ScheduledAt: pc.ScheduledAt,
		DisplayTime: pc.DisplayTime,
		Timezone:    pc.Timezone,
		Status:      models.PostStatusScheduled,
	}
	if pc.OrgID != 0 {
		post.OrgID = sql.NullInt64{Int64: pc.OrgID, Valid: true}
	}

	if pc.AccountID != 0 {
		exists, err := s.ac.CheckByUserID(ctx, pc.AccountID, userID)
		if err != nil {
			return 0, err
		}
		if !exists {
			err := fmt.Errorf("social account %d does not exist", pc.AccountID)
			slog.Info(err.Error())
			return 0, err
		}
		post.AccountID = sql.NullInt64{Int64: pc.AccountID, Valid: true}
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	// Integer millisecond arithmetic; never negative.
	delayMillis := pc.ScheduledAt - time.Now().UnixMilli()
	if delayMillis < 0 {
		delayMillis = 0
	}

	if err := s.jobs.Schedule(postID, time.Duration(delayMillis)*time.Millisecond); err != nil {
		slog.Warn("failed to enqueue dispatch job, scanner will pick the post up", "post_id", postID, "err", err.Error())
	}

	return postID, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) Status(ctx context.Context, postID, userID int64) (*transfer.PostStatus, error) {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil || post == nil {
		return nil, fmt.Errorf("error getting post info")
	}

	status := &transfer.PostStatus{
		PostID:          post.ID,
		State:           post.Status,
		Final:           models.IsTerminal(post.Status),
		Attempts:        post.PublishAttempts,
		Error:           post.ErrorMessage.String,
		PlatformMediaID: post.PlatformMediaID.String,
	}
	if post.PublishedAt.Valid {
		status.PublishedAt = post.PublishedAt.Time.UTC().Format(time.RFC3339)
	}

	return status, nil
}

// History returns the per-attempt audit trail for a post.
func (s *postService) History(ctx context.Context, postID, userID int64) ([]*models.PublishLog, error) {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	logs, err := s.pl.GetByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting publish history")
	}
	return logs, nil
}

// Reschedule moves a still-scheduled post to a new due instant and
// replaces its delayed job. Posts past scheduled state are rejected; a
// publish already in flight cannot be redirected.
func (s *postService) Reschedule(ctx context.Context, userID, postID int64, rr *transfer.PostReschedule) error {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}
	if rr == nil || rr.ScheduledAt <= 0 {
		err := errors.New("scheduled_at must be a positive epoch-millisecond timestamp")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	moved, err := s.pr.Reschedule(ctx, postID, rr.ScheduledAt, rr.DisplayTime, rr.Timezone)
	if err != nil {
		return err
	}
	if !moved {
		err := errors.New("only scheduled posts can be rescheduled")
		slog.Info(err.Error())
		return err
	}

	delayMillis := rr.ScheduledAt - time.Now().UnixMilli()
	if delayMillis < 0 {
		delayMillis = 0
	}

	// Schedule replaces the keyed job; an enqueue failure leaves the
	// scanner to pick the post up at the new instant.
	if err := s.jobs.Schedule(postID, time.Duration(delayMillis)*time.Millisecond); err != nil {
		slog.Warn("failed to replace dispatch job, scanner will pick the post up", "post_id", postID, "err", err.Error())
	}

	return nil
}

// Cancel is idempotent. It flips a still-scheduled post to canceled so
// any pending claim fails, then removes the delayed job. Terminal posts
// and posts already mid-attempt are left alone; cancellation only
// prevents future attempts.
func (s *postService) Cancel(ctx context.Context, userID, postID int64) error {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	canceled, err := s.pr.CancelIfScheduled(ctx, postID)
	if err != nil {
		return err
	}
	if !canceled {
		slog.Info("cancel was a no-op", "post_id", postID)
	}

	if err := s.jobs.Cancel(postID); err != nil {
		slog.Warn("failed to remove dispatch job", "post_id", postID, "err", err.Error())
	}

	return nil
}

// Remove deletes the post row outright and drops any pending dispatch
// job. Unlike Cancel it erases history, so it is the operator's
// cleanup, not a lifecycle transition.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err := errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	if err := s.jobs.Cancel(postID); err != nil {
		slog.Warn("failed to remove dispatch job", "post_id", postID, "err", err.Error())
	}

	return nil
}
