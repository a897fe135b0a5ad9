// services/scheduler.go
package services

import (
	"log"
	"time"

	"campaign-manager-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartCleanupScheduler runs the housekeeping jobs: expired notifications
// are hard-deleted hourly, dead invites daily.
func (s *NotificationService) StartCleanupScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			deleted, err := s.CleanupExpired()
			if err != nil {
				log.Printf("[Scheduler] notification cleanup failed: %v", err)
				return
			}
			if deleted > 0 {
				log.Printf("[Scheduler] deleted %d expired notification(s)", deleted)
			}
		}),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			res := s.DB.Where("used_at IS NULL AND expires_at <= ?", time.Now()).
				Delete(&models.CampaignInvite{})
			if res.Error != nil {
				log.Printf("[Scheduler] invite cleanup failed: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("[Scheduler] deleted %d expired invite(s)", res.RowsAffected)
			}
		}),
	)
}
