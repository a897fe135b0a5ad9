package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"campaign-manager-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type CampaignService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

func NewCampaignService(db *gorm.DB, notifications *NotificationService) *CampaignService {
	return &CampaignService{DB: db, Notifications: notifications}
}

var errNotMember = errors.New("not a campaign member")

// getMembership loads the caller's membership row, or errNotMember.
func getMembership(db *gorm.DB, campaignID, userID string) (*models.CampaignMember, error) {
	var member models.CampaignMember
	if err := db.Where("campaign_id = ? AND user_id = ?", campaignID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotMember
		}
		return nil, err
	}
	return &member, nil
}

// requireMember resolves the caller's membership or writes the 403 itself.
func requireMember(c *fiber.Ctx, db *gorm.DB, campaignID string) (*models.CampaignMember, bool) {
	userID := c.Locals("user_id").(string)
	member, err := getMembership(db, campaignID, userID)
	if err != nil {
		if errors.Is(err, errNotMember) {
			c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a member of this campaign"})
		} else {
			c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check membership"})
		}
		return nil, false
	}
	return member, true
}

// requireGM is requireMember plus the GM role check.
func requireGM(c *fiber.Ctx, db *gorm.DB, campaignID string) (*models.CampaignMember, bool) {
	member, ok := requireMember(c, db, campaignID)
	if !ok {
		return nil, false
	}
	if member.Role != models.RoleGM {
		c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "GM role required"})
		return nil, false
	}
	return member, true
}

type CreateCampaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	System      string `json:"system"`
}

// CreateCampaign creates a campaign and enrolls the creator as its GM.
func (s *CampaignService) CreateCampaign(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	campaign := models.Campaign{
		Name:        req.Name,
		Slug:        slug.Make(req.Name) + "-" + uuid.NewString()[:8],
		Description: req.Description,
		System:      req.System,
		OwnerUserID: userID,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}
		member := models.CampaignMember{
			CampaignID:  campaign.ID,
			UserID:      userID,
			Role:        models.RoleGM,
			DisplayName: lookupDisplayName(tx, userID),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		log.Printf("[Campaign] create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create campaign"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"campaign": campaign})
}

// lookupDisplayName denormalizes the profile mirror's username onto the
// membership row; falls back to the raw user id when the mirror is behind.
func lookupDisplayName(db *gorm.DB, userID string) string {
	var profile models.UserProfile
	if err := db.Where("external_user_id = ?", userID).First(&profile).Error; err == nil && profile.Username != "" {
		return profile.Username
	}
	return userID
}

// ListMyCampaigns returns every campaign the caller belongs to.
func (s *CampaignService) ListMyCampaigns(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var campaigns []models.Campaign
	err := s.DB.
		Joins("JOIN campaign_members cm ON cm.campaign_id = campaigns.id").
		Where("cm.user_id = ?", userID).
		Order("campaigns.updated_at DESC").
		Find(&campaigns).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list campaigns"})
	}

	for i := range campaigns {
		s.DB.Model(&models.CampaignMember{}).
			Where("campaign_id = ?", campaigns[i].ID).
			Count(&campaigns[i].MemberCount)
	}

	return c.JSON(fiber.Map{"campaigns": campaigns})
}

func (s *CampaignService) GetCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var campaign models.Campaign
	if err := s.DB.Preload("Members").First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load campaign"})
	}

	return c.JSON(fiber.Map{"campaign": campaign})
}

type UpdateCampaignRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	System      *string `json:"system,omitempty"`
}

func (s *CampaignService) UpdateCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.System != nil {
		updates["system"] = *req.System
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	res := s.DB.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(updates)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update campaign"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
	}

	var campaign models.Campaign
	s.DB.First(&campaign, "id = ?", campaignID)
	return c.JSON(fiber.Map{"campaign": campaign})
}

func (s *CampaignService) DeleteCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireGM(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	var campaign models.Campaign
	if err := s.DB.First(&campaign, "id = ?", campaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
	}
	if campaign.OwnerUserID != member.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the campaign owner can delete it"})
	}

	if err := s.DB.Delete(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete campaign"})
	}
	return c.JSON(fiber.Map{"message": "campaign deleted"})
}

func (s *CampaignService) ListMembers(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var members []models.CampaignMember
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list members"})
	}
	return c.JSON(fiber.Map{"members": members})
}

type CreateInviteRequest struct {
	InvitedEmail string            `json:"invited_email,omitempty"`
	Role         models.MemberRole `json:"role,omitempty"`
	ExpiresInHrs int               `json:"expires_in_hours,omitempty"`
}

// CreateInvite issues a join code; only GMs can invite.
func (s *CampaignService) CreateInvite(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireGM(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	var req CreateInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	role := req.Role
	if role == "" {
		role = models.RolePlayer
	}
	if role != models.RolePlayer && role != models.RoleGM {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be gm or player"})
	}
	expiresIn := req.ExpiresInHrs
	if expiresIn <= 0 {
		expiresIn = 72
	}

	invite := models.CampaignInvite{
		CampaignID:   campaignID,
		Code:         uuid.NewString(),
		InvitedEmail: strings.TrimSpace(req.InvitedEmail),
		Role:         role,
		CreatedByID:  member.UserID,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Hour),
	}
	if err := s.DB.Create(&invite).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create invite"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"invite": invite})
}

// AcceptInvite redeems a code: creates the membership and tells the GM.
func (s *CampaignService) AcceptInvite(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	code := c.Params("code")

	var invite models.CampaignInvite
	if err := s.DB.Where("code = ?", code).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invite not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load invite"})
	}
	if invite.UsedAt != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invite already used"})
	}
	if time.Now().After(invite.ExpiresAt) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "invite expired"})
	}
	if existing, err := getMembership(s.DB, invite.CampaignID, userID); err == nil && existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already a member"})
	}

	member := models.CampaignMember{
		CampaignID:  invite.CampaignID,
		UserID:      userID,
		Role:        invite.Role,
		DisplayName: lookupDisplayName(s.DB, userID),
	}

	now := time.Now()
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Model(&invite).Updates(map[string]interface{}{
			"used_at":    &now,
			"used_by_id": userID,
		}).Error
	})
	if err != nil {
		log.Printf("[Campaign] invite accept failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to accept invite"})
	}

	// Tell the inviter; delivery is best-effort
	if s.Notifications != nil {
		if _, err := s.Notifications.Create(CreateNotificationParams{
			Type:       models.NotificationMemberJoined,
			Title:      "New member joined",
			Message:    member.DisplayName + " joined your campaign",
			UserID:     invite.CreatedByID,
			Priority:   models.PriorityNormal,
			CampaignID: invite.CampaignID,
		}); err != nil {
			log.Printf("[Campaign] member-joined notification failed: %v", err)
		}
	}

	return c.JSON(fiber.Map{"member": member})
}
