package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"campaign-manager-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TurnAction is the typed PATCH command. Unknown actions are a 400, never a
// silent fall-through.
type TurnAction string

const (
	TurnActionNext    TurnAction = "next"
	TurnActionEndTurn TurnAction = "endTurn"
	TurnActionEnd     TurnAction = "end"
)

type TurnOrderService struct {
	DB            *gorm.DB
	Live          *LiveBroker
	Notifications *NotificationService

	// d6 rolls a single die in [1,6]; swapped out in tests
	d6 func() int
}

func NewTurnOrderService(db *gorm.DB, live *LiveBroker, notifications *NotificationService) *TurnOrderService {
	return &TurnOrderService{
		DB:            db,
		Live:          live,
		Notifications: notifications,
		d6:            func() int { return rand.Intn(6) + 1 },
	}
}

// loadScene resolves the scene and checks it belongs to the campaign.
func (s *TurnOrderService) loadScene(campaignID, sceneID string) (*models.Scene, error) {
	var scene models.Scene
	if err := s.DB.Where("id = ? AND campaign_id = ?", sceneID, campaignID).First(&scene).Error; err != nil {
		return nil, err
	}
	return &scene, nil
}

// loadOrder loads the scene's turn order with entries in sort order.
func (s *TurnOrderService) loadOrder(campaignID, sceneID string) (*models.TurnOrder, error) {
	var order models.TurnOrder
	err := s.DB.
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("campaign_id = ? AND scene_id = ?", campaignID, sceneID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *TurnOrderService) loadOrderByID(orderID string) (*models.TurnOrder, error) {
	var order models.TurnOrder
	err := s.DB.
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type InitializeTurnOrderRequest struct {
	TimeoutMinutes  int   `json:"timeout_minutes,omitempty"`
	AutoAdvanceTurn *bool `json:"auto_advance_turn,omitempty"`
}

// InitializeTurnOrder rolls initiative (2d6 + cool) for every alive
// character and replaces any prior order for the scene. GM only.
func (s *TurnOrderService) InitializeTurnOrder(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")

	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}
	scene, err := s.loadScene(campaignID, sceneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	var req InitializeTurnOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
	}
	timeout := req.TimeoutMinutes
	if timeout <= 0 {
		timeout = 60
	}
	autoAdvance := true
	if req.AutoAdvanceTurn != nil {
		autoAdvance = *req.AutoAdvanceTurn
	}

	var characters []models.Character
	if err := s.DB.Where("campaign_id = ? AND is_alive = ?", campaignID, true).
		Order("created_at ASC").
		Find(&characters).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load characters"})
	}
	if len(characters) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no alive characters to order"})
	}

	entries := buildEntries(characters, s.d6)
	order := models.TurnOrder{
		CampaignID:      campaignID,
		SceneID:         sceneID,
		CurrentTurn:     0,
		RoundNumber:     1,
		IsActive:        true,
		TimeoutMinutes:  timeout,
		AutoAdvanceTurn: autoAdvance,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Replace any prior encounter state for this scene, history is not kept
		var prior models.TurnOrder
		if err := tx.Where("campaign_id = ? AND scene_id = ?", campaignID, sceneID).First(&prior).Error; err == nil {
			if err := tx.Where("turn_order_id = ?", prior.ID).Delete(&models.TurnOrderEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Where("turn_order_id = ?", prior.ID).Delete(&models.TurnTimerJob{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&prior).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].TurnOrderID = order.ID
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}
		return s.startTurn(tx, &order, entries)
	})
	if err != nil {
		log.Printf("[TurnOrder] initialize failed for scene %s: %v", sceneID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to initialize turn order"})
	}

	order.Entries = entries
	s.notifyCurrent(&order, entries, models.NotificationYourTurn, "It's your turn",
		fmt.Sprintf("%s is up in scene %q", entries[0].CharacterName, scene.Title))
	s.Live.Publish(campaignID, EventTurnOrderInitialized, fiber.Map{
		"scene_id":   sceneID,
		"turn_order": order,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"turnOrder": order})
}

// GetTurnOrder returns the current state, or null when none exists.
// Any member may read.
func (s *TurnOrderService) GetTurnOrder(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")

	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}
	if _, err := s.loadScene(campaignID, sceneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"turnOrder": nil})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load turn order"})
	}
	return c.JSON(fiber.Map{"turnOrder": order})
}

type PatchTurnOrderRequest struct {
	Action      TurnAction `json:"action"`
	CharacterID string     `json:"characterId,omitempty"`
}

// PatchTurnOrder applies one of the typed actions.
// TODO(product): POST requires the GM role but PATCH only checks membership,
// so any member can force-advance or end combat. Kept as-is pending
// clarification on whether next/end should be GM-gated.
func (s *TurnOrderService) PatchTurnOrder(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")

	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}
	if _, err := s.loadScene(campaignID, sceneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scene not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load scene"})
	}

	var req PatchTurnOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil || !orderMutable(order) {
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active turn order"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load turn order"})
	}

	switch req.Action {
	case TurnActionNext:
		if err := s.advanceOrder(order); err != nil {
			log.Printf("[TurnOrder] next failed for scene %s: %v", sceneID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to advance turn"})
		}
		return c.JSON(fiber.Map{"turnOrder": order})

	case TurnActionEndTurn:
		if req.CharacterID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "characterId is required for endTurn"})
		}
		// Silent no-op when the character is not in the order
		if markActed(order.Entries, req.CharacterID) {
			if err := s.saveOrder(order); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save turn order"})
			}
			s.Live.Publish(campaignID, EventTurnOrderUpdated, fiber.Map{
				"scene_id":   sceneID,
				"turn_order": order,
			})
		}
		return c.JSON(fiber.Map{"turnOrder": order})

	case TurnActionEnd:
		if err := s.endOrder(order); err != nil {
			log.Printf("[TurnOrder] end failed for scene %s: %v", sceneID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to end encounter"})
		}
		return c.JSON(fiber.Map{"turnOrder": order})

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown action (want next, endTurn or end)"})
	}
}

// AdvanceMyTurn is the player-facing advance: the caller must be the
// current participant, otherwise 403 and no state change.
func (s *TurnOrderService) AdvanceMyTurn(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")
	userID := c.Locals("user_id").(string)

	if _, ok := requireMember(c, s.DB, campaignID); !ok {
		return nil
	}

	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil || !orderMutable(order) {
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active turn order"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load turn order"})
	}

	if !isCurrentParticipant(order, order.Entries, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your turn"})
	}

	if err := s.advanceOrder(order); err != nil {
		log.Printf("[TurnOrder] advance failed for scene %s: %v", sceneID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to advance turn"})
	}
	return c.JSON(fiber.Map{"turnOrder": order})
}

type AddParticipantRequest struct {
	CharacterID string `json:"character_id"`
}

// AddParticipant rolls initiative for one character and splices them in. GM only.
func (s *TurnOrderService) AddParticipant(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")

	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	var req AddParticipantRequest
	if err := c.BodyParser(&req); err != nil || req.CharacterID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "character_id is required"})
	}

	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil || !orderMutable(order) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active turn order"})
	}
	for _, e := range order.Entries {
		if e.CharacterID == req.CharacterID {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "character already in the order"})
		}
	}

	var character models.Character
	if err := s.DB.Where("id = ? AND campaign_id = ?", req.CharacterID, campaignID).First(&character).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not found"})
	}

	entry := models.TurnOrderEntry{
		TurnOrderID:   order.ID,
		CharacterID:   character.ID,
		CharacterName: character.Name,
		UserID:        character.OwnerUserID,
		IsNPC:         character.OwnerUserID == "",
		Initiative:    rollInitiative(s.d6, character.CoolStat),
	}
	order.Entries = insertEntry(order, order.Entries, entry)

	if err := s.saveOrder(order); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save turn order"})
	}
	s.Live.Publish(campaignID, EventTurnOrderUpdated, fiber.Map{
		"scene_id":   sceneID,
		"turn_order": order,
	})
	return c.JSON(fiber.Map{"turnOrder": order})
}

// RemoveParticipant splices a character out, re-pointing the turn index. GM only.
func (s *TurnOrderService) RemoveParticipant(c *fiber.Ctx) error {
	campaignID := c.Params("id")
	sceneID := c.Params("sceneId")
	characterID := c.Params("characterId")

	if _, ok := requireGM(c, s.DB, campaignID); !ok {
		return nil
	}

	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil || !orderMutable(order) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active turn order"})
	}

	entries, removed := removeEntry(order, order.Entries, characterID)
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "character not in the order"})
	}
	order.Entries = entries

	if len(entries) == 0 {
		if err := s.endOrder(order); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to end encounter"})
		}
		return c.JSON(fiber.Map{"turnOrder": order})
	}

	if err := s.saveOrder(order); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save turn order"})
	}
	s.Live.Publish(campaignID, EventTurnOrderUpdated, fiber.Map{
		"scene_id":   sceneID,
		"turn_order": order,
	})
	return c.JSON(fiber.Map{"turnOrder": order})
}

// --- Internals shared with the timer worker ---

// advanceOrder runs the advance transition, restarts the turn clock for the
// new participant and broadcasts the update.
func (s *TurnOrderService) advanceOrder(order *models.TurnOrder) error {
	advance(order, order.Entries)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.persistOrder(tx, order); err != nil {
			return err
		}
		return s.startTurn(tx, order, order.Entries)
	})
	if err != nil {
		return err
	}

	if cur := currentEntry(order, order.Entries); cur != nil {
		s.notifyCurrent(order, order.Entries, models.NotificationYourTurn, "It's your turn",
			fmt.Sprintf("%s is up (round %d)", cur.CharacterName, order.RoundNumber))
	}
	s.Live.Publish(order.CampaignID, EventTurnOrderUpdated, fiber.Map{
		"scene_id":   order.SceneID,
		"turn_order": order,
	})
	return nil
}

// startTurn resets the deadline and reminder bookkeeping, rewrites the
// durable timer jobs and updates the scene's waiting-on marker. Runs inside
// the caller's transaction.
func (s *TurnOrderService) startTurn(tx *gorm.DB, order *models.TurnOrder, entries []models.TurnOrderEntry) error {
	now := time.Now()
	deadline := now.Add(time.Duration(order.TimeoutMinutes) * time.Minute)
	order.TurnStartedAt = &now
	order.TurnDeadline = &deadline
	order.RemindersSent = 0
	order.LastReminderAt = nil

	if err := tx.Model(&models.TurnOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"turn_started_at":  now,
		"turn_deadline":    deadline,
		"reminders_sent":   0,
		"last_reminder_at": nil,
	}).Error; err != nil {
		return err
	}

	// Unfired jobs from the previous turn are obsolete
	if err := tx.Where("turn_order_id = ? AND fired_at IS NULL", order.ID).Delete(&models.TurnTimerJob{}).Error; err != nil {
		return err
	}
	jobs := planTimerJobs(order.ID, now, deadline)
	if err := tx.Create(&jobs).Error; err != nil {
		return err
	}

	var waitingOn *string
	if cur := currentEntry(order, entries); cur != nil && cur.UserID != "" {
		waitingOn = &cur.UserID
	}
	return tx.Model(&models.Scene{}).Where("id = ?", order.SceneID).Updates(map[string]interface{}{
		"waiting_on_user_id": waitingOn,
		"turn_deadline":      deadline,
	}).Error
}

// persistOrder writes the order header and rewrites its entries.
func (s *TurnOrderService) persistOrder(tx *gorm.DB, order *models.TurnOrder) error {
	if err := tx.Model(&models.TurnOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"current_turn": order.CurrentTurn,
		"round_number": order.RoundNumber,
		"is_active":    order.IsActive,
	}).Error; err != nil {
		return err
	}
	if err := tx.Where("turn_order_id = ?", order.ID).Delete(&models.TurnOrderEntry{}).Error; err != nil {
		return err
	}
	if len(order.Entries) == 0 {
		return nil
	}
	for i := range order.Entries {
		order.Entries[i].ID = ""
		order.Entries[i].TurnOrderID = order.ID
	}
	return tx.Create(&order.Entries).Error
}

func (s *TurnOrderService) saveOrder(order *models.TurnOrder) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return s.persistOrder(tx, order)
	})
}

// endOrder flags the encounter inactive, clears scene markers and cancels
// pending timers. The record is kept so the read endpoint can show the
// final state.
func (s *TurnOrderService) endOrder(order *models.TurnOrder) error {
	order.IsActive = false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TurnOrder{}).Where("id = ?", order.ID).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Where("turn_order_id = ? AND fired_at IS NULL", order.ID).Delete(&models.TurnTimerJob{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Scene{}).Where("id = ?", order.SceneID).Updates(map[string]interface{}{
			"waiting_on_user_id": nil,
			"turn_deadline":      nil,
		}).Error
	})
	if err != nil {
		return err
	}

	s.Live.Publish(order.CampaignID, EventTurnOrderEnded, fiber.Map{
		"scene_id":   order.SceneID,
		"turn_order": order,
	})
	return nil
}

// EndForScene ends the scene's encounter if one is running. Used when a
// scene is resolved.
func (s *TurnOrderService) EndForScene(campaignID, sceneID string) error {
	order, err := s.loadOrder(campaignID, sceneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !order.IsActive {
		return nil
	}
	return s.endOrder(order)
}

// notifyCurrent queues a notification to the current participant; NPCs and
// empty slots are skipped.
func (s *TurnOrderService) notifyCurrent(order *models.TurnOrder, entries []models.TurnOrderEntry, t models.NotificationType, title, message string) {
	cur := currentEntry(order, entries)
	if cur == nil || cur.IsNPC || cur.UserID == "" {
		return
	}
	if _, err := s.Notifications.Create(CreateNotificationParams{
		Type:         t,
		Title:        title,
		Message:      message,
		UserID:       cur.UserID,
		Priority:     models.PriorityNormal,
		CampaignID:   order.CampaignID,
		SceneID:      order.SceneID,
		TriggerSound: "turn-chime",
	}); err != nil {
		log.Printf("[TurnOrder] notify %s failed: %v", cur.UserID, err)
	}
}

// SendTurnReminder fires one reminder for the order's current turn,
// honoring the per-turn cap. Each threshold job fires at most once, so the
// 15/5/1-minute reminders all get through. Called by the timer worker.
func (s *TurnOrderService) SendTurnReminder(orderID string) error {
	order, err := s.loadOrderByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !orderMutable(order) {
		return nil
	}

	now := time.Now()
	if !canSendReminder(order, now) {
		return nil
	}
	cur := currentEntry(order, order.Entries)
	if cur == nil || cur.IsNPC || cur.UserID == "" {
		return nil
	}

	var remaining time.Duration
	if order.TurnDeadline != nil {
		remaining = time.Until(*order.TurnDeadline)
		if remaining < 0 {
			remaining = 0
		}
	}
	minutes := int(remaining.Minutes())

	if _, err := s.Notifications.Create(CreateNotificationParams{
		Type:       models.NotificationTurnReminder,
		Title:      "Turn reminder",
		Message:    fmt.Sprintf("%s, you have %d minute(s) left to act", cur.CharacterName, minutes),
		UserID:     cur.UserID,
		Priority:   reminderPriority(remaining),
		CampaignID: order.CampaignID,
		SceneID:    order.SceneID,
	}); err != nil {
		return err
	}

	return s.DB.Model(&models.TurnOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"reminders_sent":   gorm.Expr("reminders_sent + 1"),
		"last_reminder_at": now,
	}).Error
}

// HandleDeadline auto-skips the current turn when the deadline job fires.
// Called by the timer worker.
func (s *TurnOrderService) HandleDeadline(orderID string) error {
	order, err := s.loadOrderByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !orderMutable(order) || !order.AutoAdvanceTurn {
		return nil
	}
	return s.SkipTurn(order, "turn timed out")
}

// SkipTurn notifies the skipped participant, then advances exactly like
// "next" (the requester-identity check does not apply to administrative or
// timeout skips).
func (s *TurnOrderService) SkipTurn(order *models.TurnOrder, reason string) error {
	if cur := currentEntry(order, order.Entries); cur != nil && !cur.IsNPC && cur.UserID != "" {
		if _, err := s.Notifications.Create(CreateNotificationParams{
			Type:       models.NotificationTurnSkipped,
			Title:      "Your turn was skipped",
			Message:    fmt.Sprintf("%s's turn was skipped: %s", cur.CharacterName, reason),
			UserID:     cur.UserID,
			Priority:   models.PriorityNormal,
			CampaignID: order.CampaignID,
			SceneID:    order.SceneID,
		}); err != nil {
			log.Printf("[TurnOrder] skip notification failed: %v", err)
		}
	}
	return s.advanceOrder(order)
}
