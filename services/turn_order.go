package services

import (
	"sort"
	"time"

	"campaign-manager-system/models"
)

// Pure turn-order state transitions. Handlers load the record, run these,
// and persist the result; keeping them free of fiber/gorm lets the
// encounter rules be exercised directly.

// rollInitiative computes 2d6 + cool. d6 returns a single die in [1,6].
func rollInitiative(d6 func() int, cool int) int {
	return d6() + d6() + cool
}

// buildEntries rolls initiative for every character and sorts descending.
// The sort is stable: ties keep the input iteration order.
func buildEntries(characters []models.Character, d6 func() int) []models.TurnOrderEntry {
	entries := make([]models.TurnOrderEntry, 0, len(characters))
	for _, ch := range characters {
		userID := ch.OwnerUserID
		entries = append(entries, models.TurnOrderEntry{
			CharacterID:   ch.ID,
			CharacterName: ch.Name,
			UserID:        userID,
			IsNPC:         userID == "",
			Initiative:    rollInitiative(d6, ch.CoolStat),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Initiative > entries[j].Initiative
	})
	for i := range entries {
		entries[i].SortOrder = i
	}
	return entries
}

// advance marks the current entry as acted and moves the pointer. Wrapping
// past the end starts a fresh round: RoundNumber increments and every
// HasActed flag resets.
func advance(o *models.TurnOrder, entries []models.TurnOrderEntry) {
	if len(entries) == 0 {
		return
	}
	if o.CurrentTurn >= 0 && o.CurrentTurn < len(entries) {
		entries[o.CurrentTurn].HasActed = true
	}
	o.CurrentTurn++
	if o.CurrentTurn >= len(entries) {
		o.CurrentTurn = 0
		o.RoundNumber++
		for i := range entries {
			entries[i].HasActed = false
		}
	}
}

// markActed flags the named character's entry without moving the pointer.
// Returns false when the character is not in the order (caller no-ops).
func markActed(entries []models.TurnOrderEntry, characterID string) bool {
	for i := range entries {
		if entries[i].CharacterID == characterID {
			entries[i].HasActed = true
			return true
		}
	}
	return false
}

// currentEntry returns the participant whose turn it is, or nil.
func currentEntry(o *models.TurnOrder, entries []models.TurnOrderEntry) *models.TurnOrderEntry {
	if len(entries) == 0 || o.CurrentTurn < 0 || o.CurrentTurn >= len(entries) {
		return nil
	}
	return &entries[o.CurrentTurn]
}

// removeEntry splices out the named character and re-points CurrentTurn:
// a removal before the pointer shifts it back one; the final pointer is
// taken modulo the shorter list so it stays in range.
func removeEntry(o *models.TurnOrder, entries []models.TurnOrderEntry, characterID string) ([]models.TurnOrderEntry, bool) {
	idx := -1
	for i := range entries {
		if entries[i].CharacterID == characterID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return entries, false
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	if idx < o.CurrentTurn {
		o.CurrentTurn--
	}
	if len(entries) == 0 {
		o.CurrentTurn = 0
	} else {
		o.CurrentTurn = o.CurrentTurn % len(entries)
	}
	for i := range entries {
		entries[i].SortOrder = i
	}
	return entries, true
}

// insertEntry places a new participant by initiative, after existing ties.
func insertEntry(o *models.TurnOrder, entries []models.TurnOrderEntry, e models.TurnOrderEntry) []models.TurnOrderEntry {
	at := len(entries)
	for i := range entries {
		if e.Initiative > entries[i].Initiative {
			at = i
			break
		}
	}
	entries = append(entries, models.TurnOrderEntry{})
	copy(entries[at+1:], entries[at:])
	entries[at] = e
	if at <= o.CurrentTurn && len(entries) > 1 {
		o.CurrentTurn++
	}
	for i := range entries {
		entries[i].SortOrder = i
	}
	return entries
}

// Reminder gates: at most maxRemindersPerTurn per turn. The durable jobs are
// claimed once each, so the gate does not need to space out distinct
// thresholds (the 5- and 1-minute reminders are 4 minutes apart); the burst
// floor only collapses back-to-back fires when a stalled sweep claims
// several overdue jobs in one batch.
const (
	maxRemindersPerTurn = 3
	reminderBurstFloor  = time.Minute
	highPriorityWindow  = 5 * time.Minute
)

func canSendReminder(o *models.TurnOrder, now time.Time) bool {
	if o.RemindersSent >= maxRemindersPerTurn {
		return false
	}
	if o.LastReminderAt != nil && now.Sub(*o.LastReminderAt) < reminderBurstFloor {
		return false
	}
	return true
}

// orderMutable: every mutating action 404s once the encounter has ended.
func orderMutable(o *models.TurnOrder) bool {
	return o != nil && o.IsActive
}

// isCurrentParticipant reports whether the user controls the entry whose
// turn it is. NPC slots belong to nobody.
func isCurrentParticipant(o *models.TurnOrder, entries []models.TurnOrderEntry, userID string) bool {
	cur := currentEntry(o, entries)
	return cur != nil && userID != "" && cur.UserID == userID
}

// reminderPriority escalates to HIGH when the deadline is close.
func reminderPriority(remaining time.Duration) models.NotificationPriority {
	if remaining <= highPriorityWindow {
		return models.PriorityHigh
	}
	return models.PriorityNormal
}

// reminderThresholds maps the durable job kinds to minutes-before-deadline.
var reminderThresholds = []struct {
	Kind   models.TimerJobKind
	Before time.Duration
}{
	{models.TimerJobReminder15, 15 * time.Minute},
	{models.TimerJobReminder5, 5 * time.Minute},
	{models.TimerJobReminder1, 1 * time.Minute},
}

// planTimerJobs builds the durable timer rows for one turn: one reminder per
// threshold still in the future, plus the deadline job itself.
func planTimerJobs(orderID string, now, deadline time.Time) []models.TurnTimerJob {
	jobs := make([]models.TurnTimerJob, 0, len(reminderThresholds)+1)
	for _, th := range reminderThresholds {
		due := deadline.Add(-th.Before)
		if due.After(now) {
			jobs = append(jobs, models.TurnTimerJob{
				TurnOrderID: orderID,
				Kind:        th.Kind,
				DueAt:       due,
			})
		}
	}
	jobs = append(jobs, models.TurnTimerJob{
		TurnOrderID: orderID,
		Kind:        models.TimerJobDeadline,
		DueAt:       deadline,
	})
	return jobs
}
