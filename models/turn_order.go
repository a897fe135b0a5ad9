package models

import "time"

// TurnOrder is the single authoritative encounter state for a scene:
// initiative order plus deadline and reminder bookkeeping. At most one
// record per (campaign, scene) pair; initializing again replaces it.
type TurnOrder struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID string `gorm:"not null;index;uniqueIndex:idx_turn_order_scope" json:"campaign_id"`
	SceneID    string `gorm:"not null;uniqueIndex:idx_turn_order_scope" json:"scene_id"`

	CurrentTurn int  `gorm:"default:0" json:"current_turn"`
	RoundNumber int  `gorm:"default:1" json:"round_number"`
	IsActive    bool `gorm:"default:true" json:"is_active"`

	// Deadline + reminder bookkeeping, reset on every turn change
	TimeoutMinutes  int        `gorm:"default:60" json:"timeout_minutes"`
	AutoAdvanceTurn bool       `gorm:"default:true" json:"auto_advance_turn"`
	TurnStartedAt   *time.Time `json:"turn_started_at,omitempty"`
	TurnDeadline    *time.Time `json:"turn_deadline,omitempty"`
	RemindersSent   int        `gorm:"default:0" json:"reminders_sent"`
	LastReminderAt  *time.Time `json:"last_reminder_at,omitempty"`

	Entries []TurnOrderEntry `json:"order,omitempty" gorm:"foreignKey:TurnOrderID"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TurnOrderEntry is one participant slot, ordered by SortOrder
// (descending initiative, ties in input order).
type TurnOrderEntry struct {
	ID            string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TurnOrderID   string `gorm:"not null;index" json:"turn_order_id"`
	SortOrder     int    `gorm:"not null;default:0" json:"sort_order"`
	CharacterID   string `gorm:"not null" json:"character_id"`
	CharacterName string `json:"character_name"` // denormalized display value
	UserID        string `json:"user_id"`        // empty for NPCs
	IsNPC         bool   `gorm:"default:false" json:"is_npc"`
	Initiative    int    `json:"initiative"`
	HasActed      bool   `gorm:"default:false" json:"has_acted"`
}

// TimerJobKind discriminates the durable turn-timer jobs
type TimerJobKind string

const (
	TimerJobReminder15 TimerJobKind = "reminder_15"
	TimerJobReminder5  TimerJobKind = "reminder_5"
	TimerJobReminder1  TimerJobKind = "reminder_1"
	TimerJobDeadline   TimerJobKind = "deadline"
)

// TurnTimerJob is a durable scheduled-timer entry: one row per reminder
// threshold plus one for the deadline, written when a turn starts. The sweep
// claims a job by setting FiredAt where it is still NULL, so each job fires
// exactly once no matter how often the sweep runs.
type TurnTimerJob struct {
	ID          string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TurnOrderID string       `gorm:"not null;index" json:"turn_order_id"`
	Kind        TimerJobKind `gorm:"type:varchar(16);not null" json:"kind"`
	DueAt       time.Time    `gorm:"not null;index" json:"due_at"`
	FiredAt     *time.Time   `json:"fired_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at" gorm:"autoCreateTime"`
}
