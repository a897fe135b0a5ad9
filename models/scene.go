package models

import "time"

// SceneStatus is the lifecycle state of a scene
type SceneStatus string

const (
	SceneStatusDraft    SceneStatus = "draft"
	SceneStatusActive   SceneStatus = "active"
	SceneStatusResolved SceneStatus = "resolved"
)

// Scene is one framed unit of play inside a campaign. The waiting-on marker
// and turn deadline are maintained by the turn order service so the UI can
// show whose move it is without loading the full order.
type Scene struct {
	ID              string      `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID      string      `gorm:"not null;index" json:"campaign_id"`
	Title           string      `gorm:"not null" json:"title"`
	Description     string      `gorm:"type:text" json:"description"`
	ArtURL          string      `gorm:"type:text" json:"art_url"`
	Status          SceneStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	WaitingOnUserID *string     `json:"waiting_on_user_id,omitempty"`
	TurnDeadline    *time.Time  `json:"turn_deadline,omitempty"`

	Timestamps
}

// NPC is a GM-controlled character. NPCs can join a turn order but never
// receive notifications.
type NPC struct {
	ID          string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID  string  `gorm:"not null;index" json:"campaign_id"`
	FactionID   *string `gorm:"index" json:"faction_id,omitempty"`
	Name        string  `gorm:"not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	PortraitURL string  `gorm:"type:text" json:"portrait_url"`

	Timestamps
}

// Faction groups NPCs under a shared agenda.
type Faction struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID string `gorm:"not null;index" json:"campaign_id"`
	Name       string `gorm:"not null" json:"name"`
	Agenda     string `gorm:"type:text" json:"agenda"`
	Reputation int    `json:"reputation" gorm:"default:0"`

	Timestamps
}

// Clock is a bounded tick counter toward a triggered consequence.
type Clock struct {
	ID         string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID string  `gorm:"not null;index" json:"campaign_id"`
	SceneID    *string `gorm:"index" json:"scene_id,omitempty"`
	Label      string  `gorm:"not null" json:"label"`
	Segments   int     `gorm:"not null;default:4" json:"segments"`
	Filled     int     `gorm:"not null;default:0" json:"filled"`
	IsComplete bool    `gorm:"default:false" json:"is_complete"`

	Timestamps
}
