package models

import "time"

// NotificationType is the logical event category
type NotificationType string

const (
	NotificationTurnReminder  NotificationType = "turn_reminder"
	NotificationYourTurn      NotificationType = "your_turn"
	NotificationTurnSkipped   NotificationType = "turn_skipped"
	NotificationSceneResolved NotificationType = "scene_resolved"
	NotificationInvite        NotificationType = "campaign_invite"
	NotificationMemberJoined  NotificationType = "member_joined"
	NotificationClockFilled   NotificationType = "clock_filled"
	NotificationSystem        NotificationType = "system"
)

// NotificationPriority — URGENT bypasses quiet hours
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
	PriorityUrgent NotificationPriority = "URGENT"
)

// NotificationStatus is the read-path state
type NotificationStatus string

const (
	StatusUnread    NotificationStatus = "UNREAD"
	StatusRead      NotificationStatus = "READ"
	StatusDismissed NotificationStatus = "DISMISSED"
)

// Notification is the persisted record; delivery flags track which channels
// actually went out. The row existing is the success criterion, delivery is
// best-effort.
type Notification struct {
	ID           string               `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string               `gorm:"not null;index" json:"user_id"`
	Type         NotificationType     `gorm:"type:varchar(32);not null" json:"type"`
	Title        string               `gorm:"not null" json:"title"`
	Message      string               `gorm:"type:text" json:"message"`
	Priority     NotificationPriority `gorm:"type:varchar(8);not null;default:'NORMAL'" json:"priority"`
	Status       NotificationStatus   `gorm:"type:varchar(12);not null;default:'UNREAD';index" json:"status"`
	CampaignID   string               `gorm:"index" json:"campaign_id,omitempty"`
	SceneID      string               `json:"scene_id,omitempty"`
	ActionURL    string               `json:"action_url,omitempty"`
	TriggerSound string               `json:"trigger_sound,omitempty"`
	EmailSent    bool                 `gorm:"default:false" json:"email_sent"`
	PushSent     bool                 `gorm:"default:false" json:"push_sent"`
	ExpiresAt    *time.Time           `gorm:"index" json:"expires_at,omitempty"`
	Metadata     string               `gorm:"type:text" json:"metadata,omitempty"` // free-form JSON
	CreatedAt    time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"autoUpdateTime"`
}

// NotificationPreference holds per-user delivery settings. Quiet hours are
// "HH:MM" wall-clock values; an empty start or end means no quiet window.
type NotificationPreference struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	EmailEnabled bool `gorm:"default:true" json:"email_enabled"`
	PushEnabled  bool `gorm:"default:true" json:"push_enabled"`
	SoundEnabled bool `gorm:"default:true" json:"sound_enabled"`

	QuietHoursStart string `gorm:"size:5" json:"quiet_hours_start"` // e.g. "22:00"
	QuietHoursEnd   string `gorm:"size:5" json:"quiet_hours_end"`   // e.g. "07:30"

	// Per-type email allow flags
	EmailTurnReminders bool `gorm:"default:true" json:"email_turn_reminders"`
	EmailInvites       bool `gorm:"default:true" json:"email_invites"`
	EmailSceneEvents   bool `gorm:"default:false" json:"email_scene_events"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
