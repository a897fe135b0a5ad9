package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"campaign-manager-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB   *gorm.DB
	Live *LiveBroker
	Mail *MailClient // nil when SMTP is not configured
	Push *PushClient // nil when the push gateway is not configured
}

func NewNotificationService(db *gorm.DB, live *LiveBroker, mailClient *MailClient, pushClient *PushClient) *NotificationService {
	return &NotificationService{DB: db, Live: live, Mail: mailClient, Push: pushClient}
}

type CreateNotificationParams struct {
	Type         models.NotificationType
	Title        string
	Message      string
	UserID       string
	Priority     models.NotificationPriority
	CampaignID   string
	SceneID      string
	ActionURL    string
	TriggerSound string
	ExpiresAt    *time.Time
	Metadata     string
}

// Create persists the notification and fans it out to the delivery channels.
// Quiet hours suppress every live channel for non-URGENT priorities; the
// record is still written ("silent" path). Channel failures are logged and
// never fail the call: the persisted row is the success criterion.
func (s *NotificationService) Create(p CreateNotificationParams) (*models.Notification, error) {
	if p.Priority == "" {
		p.Priority = models.PriorityNormal
	}

	prefs, err := s.loadOrCreatePrefs(p.UserID)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		UserID:       p.UserID,
		Type:         p.Type,
		Title:        p.Title,
		Message:      p.Message,
		Priority:     p.Priority,
		Status:       models.StatusUnread,
		CampaignID:   p.CampaignID,
		SceneID:      p.SceneID,
		ActionURL:    p.ActionURL,
		TriggerSound: p.TriggerSound,
		ExpiresAt:    p.ExpiresAt,
		Metadata:     p.Metadata,
	}
	if err := s.DB.Create(n).Error; err != nil {
		return nil, err
	}

	if inQuietHours(prefs.QuietHoursStart, prefs.QuietHoursEnd, time.Now()) && p.Priority != models.PriorityUrgent {
		log.Printf("[Notify] quiet hours — stored %s for user %s without dispatch", n.Type, n.UserID)
		return n, nil
	}

	s.dispatch(n, prefs)
	return n, nil
}

func (s *NotificationService) loadOrCreatePrefs(userID string) (*models.NotificationPreference, error) {
	var prefs models.NotificationPreference
	err := s.DB.Where(models.NotificationPreference{UserID: userID}).
		Attrs(models.NotificationPreference{
			EmailEnabled:       true,
			PushEnabled:        true,
			SoundEnabled:       true,
			EmailTurnReminders: true,
			EmailInvites:       true,
		}).
		FirstOrCreate(&prefs).Error
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// emailAllowedForType maps notification types onto the per-type email flags.
func emailAllowedForType(prefs *models.NotificationPreference, t models.NotificationType) bool {
	switch t {
	case models.NotificationTurnReminder, models.NotificationYourTurn, models.NotificationTurnSkipped:
		return prefs.EmailTurnReminders
	case models.NotificationInvite, models.NotificationMemberJoined:
		return prefs.EmailInvites
	case models.NotificationSceneResolved, models.NotificationClockFilled:
		return prefs.EmailSceneEvents
	default:
		return true
	}
}

// dispatch fans out to email, push, sound cue and the live channel
// concurrently. Each channel catches its own failure.
func (s *NotificationService) dispatch(n *models.Notification, prefs *models.NotificationPreference) {
	var profile models.UserProfile
	hasProfile := s.DB.Where("external_user_id = ?", n.UserID).First(&profile).Error == nil

	var wg sync.WaitGroup

	if s.Mail != nil && prefs.EmailEnabled && emailAllowedForType(prefs, n.Type) && hasProfile && profile.Email != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Mail.Send(profile.Email, n.Title, n.Message); err != nil {
				log.Printf("[Notify] email to user %s failed: %v", n.UserID, err)
				return
			}
			s.markDelivered(n.ID, "email_sent")
		}()
	}

	if s.Push != nil && prefs.PushEnabled && hasProfile && profile.PushToken != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			data := map[string]string{"notification_id": n.ID, "type": string(n.Type)}
			if n.ActionURL != "" {
				data["action_url"] = n.ActionURL
			}
			if err := s.Push.SendPush(ctx, profile.PushToken, n.Title, n.Message, data); err != nil {
				log.Printf("[Notify] push to user %s failed: %v", n.UserID, err)
				return
			}
			s.markDelivered(n.ID, "push_sent")
		}()
	}

	if prefs.SoundEnabled && n.TriggerSound != "" && n.CampaignID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Live.Publish(n.CampaignID, EventNotificationSound, fiber.Map{
				"user_id": n.UserID,
				"sound":   n.TriggerSound,
			})
		}()
	}

	// In-app channel always fires, so the UI updates in real time
	if n.CampaignID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Live.Publish(n.CampaignID, EventNotificationNew, n)
		}()
	}

	wg.Wait()
}

func (s *NotificationService) markDelivered(notificationID, column string) {
	if err := s.DB.Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update(column, true).Error; err != nil {
		log.Printf("[Notify] failed to mark %s on %s: %v", column, notificationID, err)
	}
}

// NotifyCampaignMembers sends the same notification to every member,
// optionally skipping one user (usually the actor).
func (s *NotificationService) NotifyCampaignMembers(campaignID string, skipUserID string, p CreateNotificationParams) {
	var members []models.CampaignMember
	if err := s.DB.Where("campaign_id = ?", campaignID).Find(&members).Error; err != nil {
		log.Printf("[Notify] failed to load members of %s: %v", campaignID, err)
		return
	}
	for _, m := range members {
		if m.UserID == skipUserID {
			continue
		}
		p.UserID = m.UserID
		p.CampaignID = campaignID
		if _, err := s.Create(p); err != nil {
			log.Printf("[Notify] member %s failed: %v", m.UserID, err)
		}
	}
}

// --- Read path handlers ---

// ListNotifications supports ?status=, ?campaign_id=, ?page=, ?size=
func (s *NotificationService) ListNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("size", "20"))
	if size < 1 || size > 100 {
		size = 20
	}

	q := s.DB.Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if campaignID := c.Query("campaign_id"); campaignID != "" {
		q = q.Where("campaign_id = ?", campaignID)
	}

	var total int64
	q.Model(&models.Notification{}).Count(&total)

	var notifications []models.Notification
	if err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list notifications"})
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

func (s *NotificationService) UnreadCount(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var count int64
	if err := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Count(&count).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count notifications"})
	}
	return c.JSON(fiber.Map{"unread": count})
}

func (s *NotificationService) MarkRead(c *fiber.Ctx) error {
	return s.setStatus(c, models.StatusRead)
}

func (s *NotificationService) Dismiss(c *fiber.Ctx) error {
	return s.setStatus(c, models.StatusDismissed)
}

func (s *NotificationService) setStatus(c *fiber.Ctx, status models.NotificationStatus) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update notification"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
	}
	return c.JSON(fiber.Map{"status": status})
}

func (s *NotificationService) MarkAllRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	res := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Update("status", models.StatusRead)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to mark notifications read"})
	}
	return c.JSON(fiber.Map{"updated": res.RowsAffected})
}

func (s *NotificationService) GetPreferences(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	prefs, err := s.loadOrCreatePrefs(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load preferences"})
	}
	return c.JSON(fiber.Map{"preferences": prefs})
}

type UpdatePreferencesRequest struct {
	EmailEnabled       *bool   `json:"email_enabled,omitempty"`
	PushEnabled        *bool   `json:"push_enabled,omitempty"`
	SoundEnabled       *bool   `json:"sound_enabled,omitempty"`
	QuietHoursStart    *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd      *string `json:"quiet_hours_end,omitempty"`
	EmailTurnReminders *bool   `json:"email_turn_reminders,omitempty"`
	EmailInvites       *bool   `json:"email_invites,omitempty"`
	EmailSceneEvents   *bool   `json:"email_scene_events,omitempty"`
}

func (s *NotificationService) UpdatePreferences(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req UpdatePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	updates := map[string]interface{}{}
	if req.EmailEnabled != nil {
		updates["email_enabled"] = *req.EmailEnabled
	}
	if req.PushEnabled != nil {
		updates["push_enabled"] = *req.PushEnabled
	}
	if req.SoundEnabled != nil {
		updates["sound_enabled"] = *req.SoundEnabled
	}
	if req.QuietHoursStart != nil {
		if *req.QuietHoursStart != "" {
			if _, err := parseClock(*req.QuietHoursStart); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quiet_hours_start must be HH:MM"})
			}
		}
		updates["quiet_hours_start"] = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		if *req.QuietHoursEnd != "" {
			if _, err := parseClock(*req.QuietHoursEnd); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quiet_hours_end must be HH:MM"})
			}
		}
		updates["quiet_hours_end"] = *req.QuietHoursEnd
	}
	if req.EmailTurnReminders != nil {
		updates["email_turn_reminders"] = *req.EmailTurnReminders
	}
	if req.EmailInvites != nil {
		updates["email_invites"] = *req.EmailInvites
	}
	if req.EmailSceneEvents != nil {
		updates["email_scene_events"] = *req.EmailSceneEvents
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	prefs, err := s.loadOrCreatePrefs(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load preferences"})
	}
	if err := s.DB.Model(prefs).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update preferences"})
	}

	return c.JSON(fiber.Map{"preferences": prefs})
}

// CleanupExpired hard-deletes notifications past their expiry.
// Called from the gocron scheduler.
func (s *NotificationService) CleanupExpired() (int64, error) {
	res := s.DB.Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&models.Notification{})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
