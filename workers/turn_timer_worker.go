package workers

import (
	"context"
	"log"
	"time"

	"campaign-manager-system/models"
	"campaign-manager-system/services"

	"gorm.io/gorm"
)

// PollTurnTimers sweeps the durable turn-timer jobs. Each due job is
// claimed by setting fired_at where it is still NULL, so a job fires
// exactly once even with overlapping sweeps or multiple instances.
// One job's failure never blocks the rest of the batch.
func PollTurnTimers(ctx context.Context, db *gorm.DB, turnOrders *services.TurnOrderService, pollInterval time.Duration) {
	log.Println("Starting turn timer sweep...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Turn timer sweep stopped.")
			return
		case <-ticker.C:
			sweepOnce(db, turnOrders)
		}
	}
}

func sweepOnce(db *gorm.DB, turnOrders *services.TurnOrderService) {
	now := time.Now()

	var due []models.TurnTimerJob
	if err := db.Where("fired_at IS NULL AND due_at <= ?", now).
		Order("due_at ASC").
		Limit(100).
		Find(&due).Error; err != nil {
		log.Printf("❌ [TurnTimer] failed to load due jobs: %v", err)
		return
	}

	for _, job := range due {
		// Claim: another sweep may have grabbed it between load and here
		res := db.Model(&models.TurnTimerJob{}).
			Where("id = ? AND fired_at IS NULL", job.ID).
			Update("fired_at", now)
		if res.Error != nil {
			log.Printf("❌ [TurnTimer] failed to claim job %s: %v", job.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		var err error
		switch job.Kind {
		case models.TimerJobDeadline:
			err = turnOrders.HandleDeadline(job.TurnOrderID)
		case models.TimerJobReminder15, models.TimerJobReminder5, models.TimerJobReminder1:
			err = turnOrders.SendTurnReminder(job.TurnOrderID)
		default:
			log.Printf("⚠️ [TurnTimer] unknown job kind %q on %s", job.Kind, job.ID)
			continue
		}
		if err != nil {
			log.Printf("❌ [TurnTimer] job %s (%s) failed: %v", job.ID, job.Kind, err)
		}
	}
}
