package models

import "time"

// PublishLog is the per-attempt audit row, written fire-and-forget
// after every publish attempt.
type PublishLog struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	PostID          int64     `db:"post_id" json:"post_id"`
	AccountID       int64     `db:"account_id" json:"account_id"`
	Attempt         int       `db:"attempt" json:"attempt"`
	PlatformMediaID string    `db:"platform_media_id" json:"platform_media_id"`
	ErrorMessage    string    `db:"error_message" json:"error_message"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
