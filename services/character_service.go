package services

import (
	"errors"
	"path/filepath"
	"strings"

	"campaign-manager-system/models"
	"campaign-manager-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CharacterService struct {
	DB *gorm.DB
}

func NewCharacterService(db *gorm.DB) *CharacterService {
	return &CharacterService{DB: db}
}

type CreateCharacterRequest struct {
	Name     string `json:"name"`
	Pronouns string `json:"pronouns"`
	Bio      string `json:"bio"`
	CoolStat int    `json:"cool_stat"`
	IsNPC    bool   `json:"is_npc"` // GM-run: no owner, never notified
}

func (s *CharacterService) CreateCharacter(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireMember(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	var req CreateCharacterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.CoolStat < -2 || req.CoolStat > 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cool_stat must be between -2 and 2"})
	}
	if req.IsNPC && member.Role != models.RoleGM {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the GM can create GM-run characters"})
	}

	ownerID := member.UserID
	if req.IsNPC {
		ownerID = ""
	}

	character := models.Character{
		CampaignID:  campaignID,
		OwnerUserID: ownerID,
		Name:        req.Name,
		Pronouns:    req.Pronouns,
		Bio:         req.Bio,
		CoolStat:    req.CoolStat,
		IsAlive:     true,
	}
	if err := s.DB.Create(&character).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create character"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"character": character})
}

func (s *CharacterService) ListCharacters(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var characters []models.Character
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("created_at ASC").Find(&characters).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list characters"})
	}
	return c.JSON(fiber.Map{"characters": characters})
}

func (s *CharacterService) GetCharacter(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	character, err := s.loadCharacter(campaignID, c.Params("characterId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load character"})
	}
	return c.JSON(fiber.Map{"character": character})
}

type UpdateCharacterRequest struct {
	Name     *string `json:"name,omitempty"`
	Pronouns *string `json:"pronouns,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	CoolStat *int    `json:"cool_stat,omitempty"`
	IsAlive  *bool   `json:"is_alive,omitempty"`
}

func (s *CharacterService) UpdateCharacter(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireMember(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	character, err := s.loadCharacter(campaignID, c.Params("characterId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load character"})
	}
	if !canEditCharacter(member, character) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your character"})
	}

	var req UpdateCharacterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Pronouns != nil {
		updates["pronouns"] = *req.Pronouns
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.CoolStat != nil {
		if *req.CoolStat < -2 || *req.CoolStat > 2 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cool_stat must be between -2 and 2"})
		}
		updates["cool_stat"] = *req.CoolStat
	}
	if req.IsAlive != nil {
		// Only the GM declares a character dead (or alive again)
		if member.Role != models.RoleGM {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the GM can change is_alive"})
		}
		updates["is_alive"] = *req.IsAlive
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	if err := s.DB.Model(character).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update character"})
	}
	return c.JSON(fiber.Map{"character": character})
}

func (s *CharacterService) DeleteCharacter(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireMember(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	character, err := s.loadCharacter(campaignID, c.Params("characterId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load character"})
	}
	if !canEditCharacter(member, character) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your character"})
	}

	if err := s.DB.Delete(character).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete character"})
	}
	return c.JSON(fiber.Map{"message": "character deleted"})
}

// UploadPortrait stores a portrait image (R2 when configured, local uploads
// dir otherwise) and saves the URL on the character.
func (s *CharacterService) UploadPortrait(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireMember(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	character, err := s.loadCharacter(campaignID, c.Params("characterId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load character"})
	}
	if !canEditCharacter(member, character) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your character"})
	}

	portrait, err := c.FormFile("portrait")
	if err != nil || portrait.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "portrait file is required"})
	}
	ext := strings.ToLower(filepath.Ext(portrait.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "portrait must be jpg, png or webp"})
	}

	key := "portraits/" + uuid.NewString() + ext
	var url string
	if utils.R2Enabled() {
		url, err = utils.UploadFileToR2(portrait, key)
	} else {
		url, err = utils.SaveUpload(portrait, key)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store portrait"})
	}

	if err := s.DB.Model(character).Update("portrait_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save portrait url"})
	}
	return c.JSON(fiber.Map{"portrait_url": url})
}

func (s *CharacterService) loadCharacter(campaignID, characterID string) (*models.Character, error) {
	var character models.Character
	if err := s.DB.Where("id = ? AND campaign_id = ?", characterID, campaignID).First(&character).Error; err != nil {
		return nil, err
	}
	return &character, nil
}

// canEditCharacter: owners edit their own characters, the GM edits anything.
func canEditCharacter(member *models.CampaignMember, character *models.Character) bool {
	return member.Role == models.RoleGM || character.OwnerUserID == member.UserID
}
