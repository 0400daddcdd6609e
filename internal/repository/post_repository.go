package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/adcraft/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	ListDue(ctx context.Context, nowMillis int64, limit int) ([]*models.Post, error)
	ClaimForPublish(ctx context.Context, id int64) (*models.Post, error)
	MarkPublished(ctx context.Context, id int64, mediaID string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	RevertToScheduled(ctx context.Context, id int64, errMsg string) error
	CancelIfScheduled(ctx context.Context, id int64) (bool, error)
	Reschedule(ctx context.Context, id int64, scheduledAt int64, displayTime, timezone string) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, org_id, account_id, asset_ref, caption, hashtags, subtype, scheduled_at, display_time, timezone, status, publish_attempts, last_publish_attempt, error_message, platform_media_id, published_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.OrgID, &post.AccountID, &post.AssetRef,
		&post.Caption, pq.Array(&post.Hashtags), &post.Subtype, &post.ScheduledAt,
		&post.DisplayTime, &post.Timezone, &post.Status, &post.PublishAttempts,
		&post.LastAttemptAt, &post.ErrorMessage, &post.PlatformMediaID, &post.PublishedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, org_id, account_id, asset_ref, caption, hashtags, subtype, scheduled_at, display_time, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{post.UserID, post.OrgID, post.AccountID, post.AssetRef,
		post.Caption, pq.Array(post.Hashtags), post.Subtype, post.ScheduledAt,
		post.DisplayTime, post.Timezone, post.Status}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// ListDue returns up to limit posts that are still scheduled and whose
// due instant has passed, oldest first. The comparison is integer
// millisecond arithmetic on scheduled_at.
func (r *postRepository) ListDue(ctx context.Context, nowMillis int64, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at ASC LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, nowMillis, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ClaimForPublish moves a post from scheduled to publishing and consumes
// one attempt, in a single conditional statement. Both dispatch triggers
// race through here; the loser gets (nil, nil) and must treat it as a
// no-op, not an error. The returned row carries the already-incremented
// attempt counter.
func (r *postRepository) ClaimForPublish(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $1,
			publish_attempts = publish_attempts + 1,
			last_publish_attempt = NOW(),
			updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRowContext(ctx, query, models.PostStatusPublishing, id, models.PostStatusScheduled))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, mediaID string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			platform_media_id = $2,
			published_at = $3,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, mediaID, publishedAt, id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errMsg, id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// RevertToScheduled returns a post below the attempt cap to the pool so
// the next sweep or job firing can retry it. The error message stays on
// the row for operator visibility.
func (r *postRepository) RevertToScheduled(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, errMsg, id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// CancelIfScheduled flips a pending post to canceled so any later claim
// fails. Posts already publishing or terminal are untouched; callers
// treat that as an idempotent no-op.
func (r *postRepository) CancelIfScheduled(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusCanceled, id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Reschedule(ctx context.Context, id int64, scheduledAt int64, displayTime, timezone string) (bool, error) {
	query := `
		UPDATE posts
		SET scheduled_at = $1,
			display_time = $2,
			timezone = $3,
			updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, scheduledAt, displayTime, timezone, id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
