package models

import (
	"database/sql"
	"time"
)

// Post is the unit of work for the publishing pipeline. ScheduledAt is
// epoch milliseconds and is the only authoritative dispatch time;
// DisplayTime/Timezone exist purely for the UI.
type Post struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	OrgID           sql.NullInt64  `db:"org_id" json:"org_id"`
	AccountID       sql.NullInt64  `db:"account_id" json:"account_id"`
	AssetRef        string         `db:"asset_ref" json:"asset_ref"`
	Caption         string         `db:"caption" json:"caption"`
	Hashtags        []string       `db:"hashtags" json:"hashtags"`
	Subtype         string         `db:"subtype" json:"subtype"`
	ScheduledAt     int64          `db:"scheduled_at" json:"scheduled_at"`
	DisplayTime     string         `db:"display_time" json:"display_time"`
	Timezone        string         `db:"timezone" json:"timezone"`
	Status          string         `db:"status" json:"status"`
	PublishAttempts int            `db:"publish_attempts" json:"publish_attempts"`
	LastAttemptAt   sql.NullTime   `db:"last_publish_attempt" json:"last_publish_attempt"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message"`
	PlatformMediaID sql.NullString `db:"platform_media_id" json:"platform_media_id"`
	PublishedAt     sql.NullTime   `db:"published_at" json:"published_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
	PostStatusCanceled   = "canceled"
)

const (
	SubtypePhoto = "photo"
	SubtypeReel  = "reel"
	SubtypeStory = "story"
)

// IsTerminal reports whether the status admits no further transitions
// short of manual operator intervention.
func IsTerminal(status string) bool {
	switch status {
	case PostStatusPublished, PostStatusFailed, PostStatusCanceled:
		return true
	}
	return false
}
