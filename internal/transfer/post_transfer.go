package transfer

import "github.com/golang-jwt/jwt/v5"

// PostCreation is the schedule request payload. ScheduledAt is epoch
// milliseconds and is authoritative; DisplayTime/Timezone are only
// echoed back to the UI.
type PostCreation struct {
	AssetRef    string   `json:"asset_ref"`
	Caption     string   `json:"caption"`
	Hashtags    []string `json:"hashtags"`
	Subtype     string   `json:"subtype"`
	ScheduledAt int64    `json:"scheduled_at"`
	DisplayTime string   `json:"display_time"`
	Timezone    string   `json:"timezone"`
	OrgID       int64    `json:"org_id"`
	AccountID   int64    `json:"account_id"`
}

// PostReschedule moves a still-pending post to a new due instant.
type PostReschedule struct {
	ScheduledAt int64  `json:"scheduled_at"`
	DisplayTime string `json:"display_time"`
	Timezone    string `json:"timezone"`
}

// PostStatus is the operator-facing view of a post's lifecycle. Final
// reports whether the state admits no further transitions.
type PostStatus struct {
	PostID          int64  `json:"post_id"`
	State           string `json:"state"`
	Final           bool   `json:"final"`
	Attempts        int    `json:"attempts"`
	Error           string `json:"error,omitempty"`
	PlatformMediaID string `json:"media_id,omitempty"`
	PublishedAt     string `json:"published_at,omitempty"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
