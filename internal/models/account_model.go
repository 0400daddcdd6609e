package models

import (
	"database/sql"
	"time"
)

// SocialAccount is a third-party publish credential. Exactly one scope
// owns it: personal accounts have OrgID unset, organization accounts
// have it set and are usable by any authorized member. Accounts are
// never hard-deleted; disconnecting flips AccountStatus.
type SocialAccount struct {
	ID              int64         `db:"id" json:"id"`
	UserID          int64         `db:"user_id" json:"user_id"`
	OrgID           sql.NullInt64 `db:"org_id" json:"org_id"`
	Platform        string        `db:"platform" json:"platform"`
	AccountID       string        `db:"account_id" json:"account_id"`
	AccountName     string        `db:"account_name" json:"account_name"`
	AccountUsername string        `db:"account_username" json:"account_username"`
	ProfilePicture  string        `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string        `db:"access_token" json:"access_token"`
	RefreshToken    string        `db:"refresh_token" json:"refresh_token"`
	TokenExpiresAt  time.Time     `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus   string        `db:"account_status" json:"account_status"`
	LastUsedAt      sql.NullTime  `db:"last_used_at" json:"last_used_at"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

const (
	AccountStatusActive       = "active"
	AccountStatusDisconnected = "disconnected"
)
