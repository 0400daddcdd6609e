package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/adcraft/postpilot/internal/models"
)

type PublishLogRepository interface {
	Create(ctx context.Context, pl *models.PublishLog) (int64, error)
	GetByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error)
}

type publishLogRepository struct {
	db *sql.DB
}

func NewPublishLogRepository(db *sql.DB) PublishLogRepository {
	return &publishLogRepository{db: db}
}

func (r *publishLogRepository) Create(ctx context.Context, pl *models.PublishLog) (int64, error) {
	query := `
		INSERT INTO publish_log (user_id, post_id, account_id, attempt, platform_media_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, pl.UserID, pl.PostID, pl.AccountID, pl.Attempt, pl.PlatformMediaID, pl.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishLogRepository) GetByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error) {
	query := `SELECT id, user_id, post_id, account_id, attempt, platform_media_id, error_message, created_at FROM publish_log WHERE post_id = $1 ORDER BY attempt ASC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var logs []*models.PublishLog
	for rows.Next() {
		var pl models.PublishLog
		err := rows.Scan(&pl.ID, &pl.UserID, &pl.PostID, &pl.AccountID, &pl.Attempt, &pl.PlatformMediaID, &pl.ErrorMessage, &pl.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		logs = append(logs, &pl)
	}
	return logs, rows.Err()
}
