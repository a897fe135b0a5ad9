package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberRole is a member's role inside a campaign
type MemberRole string

const (
	RoleGM     MemberRole = "gm"
	RolePlayer MemberRole = "player"
)

// Campaign is the top-level container: members, characters, scenes, clocks
// all hang off a campaign.
type Campaign struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	System      string `json:"system"` // rules system tag, e.g. "kids-on-bikes"
	CoverURL    string `gorm:"type:text" json:"cover_url"`
	OwnerUserID string `gorm:"index;not null" json:"owner_user_id"`

	// Relationships
	Members    []CampaignMember `json:"members,omitempty" gorm:"foreignKey:CampaignID"`
	Characters []Character      `json:"characters,omitempty" gorm:"foreignKey:CampaignID"`
	Scenes     []Scene          `json:"scenes,omitempty" gorm:"foreignKey:CampaignID"`

	// Calculated fields (not stored in DB)
	MemberCount int64 `json:"member_count,omitempty" gorm:"-"`

	Timestamps
}

// CampaignMember links an external user to a campaign with a role.
// At most one membership per (campaign, user) pair.
type CampaignMember struct {
	ID          string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID  string     `gorm:"not null;index;uniqueIndex:idx_campaign_user" json:"campaign_id"`
	UserID      string     `gorm:"not null;index;uniqueIndex:idx_campaign_user" json:"user_id"`
	Role        MemberRole `gorm:"type:varchar(16);not null;default:'player'" json:"role"`
	DisplayName string     `json:"display_name"` // denormalized from the profile mirror
	JoinedAt    time.Time  `json:"joined_at" gorm:"autoCreateTime"`
}

// CampaignInvite is a single-use join code issued by a GM.
type CampaignInvite struct {
	ID           string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID   string     `gorm:"not null;index" json:"campaign_id"`
	Code         string     `gorm:"uniqueIndex;not null" json:"code"`
	InvitedEmail string     `json:"invited_email,omitempty"`
	Role         MemberRole `gorm:"type:varchar(16);not null;default:'player'" json:"role"`
	CreatedByID  string     `gorm:"not null" json:"created_by_id"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedByID     string     `json:"used_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
