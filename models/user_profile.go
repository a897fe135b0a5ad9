package models

import "time"

// UserProfile is a local snapshot of account-service user data needed for
// notification delivery (email address, push token) and member display names.
// Owned solely by this service, populated by the profile sync worker.
type UserProfile struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `json:"email,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	PushToken      string  `json:"-"` // device push token, never exposed

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
