package models

// Character is a player character inside a campaign.
// CoolStat is the initiative modifier: initiative = 2d6 + CoolStat.
type Character struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CampaignID  string `gorm:"not null;index" json:"campaign_id"`
	OwnerUserID string `gorm:"index" json:"owner_user_id"` // empty for GM-run characters
	Name        string `gorm:"not null" json:"name"`
	Pronouns    string `json:"pronouns"`
	Bio         string `gorm:"type:text" json:"bio"`
	CoolStat    int    `json:"cool_stat" gorm:"default:0"`
	IsAlive     bool   `json:"is_alive" gorm:"default:true"`
	PortraitURL string `gorm:"type:text" json:"portrait_url"`

	Timestamps
}
