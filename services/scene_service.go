package services

import (
	"errors"
	"log"
	"strings"

	"campaign-manager-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SceneService struct {
	DB            *gorm.DB
	Live          *LiveBroker
	Notifications *NotificationService
	TurnOrders    *TurnOrderService
}

func NewSceneService(db *gorm.DB, live *LiveBroker, notifications *NotificationService, turnOrders *TurnOrderService) *SceneService {
	return &SceneService{DB: db, Live: live, Notifications: notifications, TurnOrders: turnOrders}
}

type CreateSceneRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *SceneService) CreateScene(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req CreateSceneRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	scene := models.Scene{
		CampaignID:  campaignID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.SceneStatusDraft,
	}
	if err := s.DB.Create(&scene).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create scene"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"scene": scene})
}

func (s *SceneService) ListScenes(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var scenes []models.Scene
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("created_at ASC").Find(&scenes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list scenes"})
	}
	return c.JSON(fiber.Map{"scenes": scenes})
}

func (s *SceneService) GetScene(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	scene, err := s.loadScene(campaignID, c.Params("sceneId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}
	return c.JSON(fiber.Map{"scene": scene})
}

type UpdateSceneRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *SceneService) UpdateScene(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	scene, err := s.loadScene(campaignID, c.Params("sceneId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	var req UpdateSceneRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	updates := map[string]interface{}{}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	if err := s.DB.Model(scene).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update scene"})
	}
	s.Live.Publish(campaignID, EventSceneUpdated, fiber.Map{"scene": scene})
	return c.JSON(fiber.Map{"scene": scene})
}

type SceneStatusRequest struct {
	Status models.SceneStatus `json:"status"`
}

// SetSceneStatus moves a scene through draft → active → resolved.
// Resolving ends the scene's turn order and notifies every member.
func (s *SceneService) SetSceneStatus(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireGM(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	scene, err := s.loadScene(campaignID, c.Params("sceneId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	var req SceneStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	switch req.Status {
	case models.SceneStatusDraft, models.SceneStatusActive, models.SceneStatusResolved:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be draft, active or resolved"})
	}

	if err := s.DB.Model(scene).Update("status", req.Status).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update scene"})
	}

	if req.Status == models.SceneStatusResolved {
		if err := s.TurnOrders.EndForScene(campaignID, scene.ID); err != nil {
			log.Printf("[Scene] ending turn order for %s failed: %v", scene.ID, err)
		}
		s.Notifications.NotifyCampaignMembers(campaignID, member.UserID, CreateNotificationParams{
			Type:     models.NotificationSceneResolved,
			Title:    "Scene resolved",
			Message:  "The scene " + scene.Title + " has been resolved",
			Priority: models.PriorityNormal,
			SceneID:  scene.ID,
		})
	}

	s.Live.Publish(campaignID, EventSceneUpdated, fiber.Map{"scene": scene})
	return c.JSON(fiber.Map{"scene": scene})
}

func (s *SceneService) DeleteScene(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	scene, err := s.loadScene(campaignID, c.Params("sceneId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	if err := s.TurnOrders.EndForScene(campaignID, scene.ID); err != nil {
		log.Printf("[Scene] ending turn order for %s failed: %v", scene.ID, err)
	}
	if err := s.DB.Delete(scene).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete scene"})
	}
	return c.JSON(fiber.Map{"message": "scene deleted"})
}

func (s *SceneService) loadScene(campaignID, sceneID string) (*models.Scene, error) {
	var scene models.Scene
	if err := s.DB.Where("id = ? AND campaign_id = ?", sceneID, campaignID).First(&scene).Error; err != nil {
		return nil, err
	}
	return &scene, nil
}

// --- NPCs ---

type NPCRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	FactionID   *string `json:"faction_id,omitempty"`
}

func (s *SceneService) CreateNPC(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req NPCRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	npc := models.NPC{
		CampaignID:  campaignID,
		FactionID:   req.FactionID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	if err := s.DB.Create(&npc).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create npc"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"npc": npc})
}

func (s *SceneService) ListNPCs(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var npcs []models.NPC
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("name ASC").Find(&npcs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list npcs"})
	}
	return c.JSON(fiber.Map{"npcs": npcs})
}

// --- Factions ---

type FactionRequest struct {
	Name   string `json:"name"`
	Agenda string `json:"agenda"`
}

func (s *SceneService) CreateFaction(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req FactionRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	faction := models.Faction{
		CampaignID: campaignID,
		Name:       strings.TrimSpace(req.Name),
		Agenda:     req.Agenda,
	}
	if err := s.DB.Create(&faction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create faction"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"faction": faction})
}

func (s *SceneService) ListFactions(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var factions []models.Faction
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("name ASC").Find(&factions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list factions"})
	}
	return c.JSON(fiber.Map{"factions": factions})
}

// --- Clocks ---

type ClockRequest struct {
	Label    string  `json:"label"`
	Segments int     `json:"segments"`
	SceneID  *string `json:"scene_id,omitempty"`
}

func (s *SceneService) CreateClock(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req ClockRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Label) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "label is required"})
	}
	if req.Segments < 2 || req.Segments > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "segments must be between 2 and 12"})
	}

	clock := models.Clock{
		CampaignID: campaignID,
		SceneID:    req.SceneID,
		Label:      strings.TrimSpace(req.Label),
		Segments:   req.Segments,
	}
	if err := s.DB.Create(&clock).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create clock"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"clock": clock})
}

func (s *SceneService) ListClocks(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	var clocks []models.Clock
	if err := s.DB.Where("campaign_id = ?", campaignID).Order("created_at ASC").Find(&clocks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list clocks"})
	}
	return c.JSON(fiber.Map{"clocks": clocks})
}

// TickClock advances a clock, saturating at its segment count. Filling the
// last segment flips is_complete and tells the campaign.
func (s *SceneService) TickClock(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	member, ok := requireGM(c, s.DB, campaignID)
	if !ok {
		return nil
	}

	var clock models.Clock
	if err := s.DB.Where("id = ? AND campaign_id = ?", c.Params("clockId"), campaignID).First(&clock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "clock not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load clock"})
	}
	if clock.IsComplete {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "clock already complete"})
	}

	clock.Filled++
	if clock.Filled >= clock.Segments {
		clock.Filled = clock.Segments
		clock.IsComplete = true
	}
	if err := s.DB.Model(&clock).Updates(map[string]interface{}{
		"filled":      clock.Filled,
		"is_complete": clock.IsComplete,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to tick clock"})
	}

	if clock.IsComplete {
		s.Notifications.NotifyCampaignMembers(campaignID, member.UserID, CreateNotificationParams{
			Type:     models.NotificationClockFilled,
			Title:    "A clock has filled",
			Message:  "The clock " + clock.Label + " is complete",
			Priority: models.PriorityHigh,
		})
	}
	s.Live.Publish(campaignID, EventClockUpdated, fiber.Map{"clock": clock})
	return c.JSON(fiber.Map{"clock": clock})
}
