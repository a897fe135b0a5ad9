package services

import (
	"testing"
	"time"

	"campaign-manager-system/models"
)

// scriptedD6 returns the given rolls in order, then panics. Keeps
// initiative deterministic without touching the RNG.
func scriptedD6(rolls ...int) func() int {
	i := 0
	return func() int {
		if i >= len(rolls) {
			panic("scriptedD6: ran out of rolls")
		}
		r := rolls[i]
		i++
		return r
	}
}

func fixedD6(v int) func() int {
	return func() int { return v }
}

func TestRollInitiative(t *testing.T) {
	tests := []struct {
		name  string
		rolls []int
		cool  int
		want  int
	}{
		{"two ones no modifier", []int{1, 1}, 0, 2},
		{"max roll max cool", []int{6, 6}, 2, 14},
		{"negative cool", []int{3, 4}, -2, 5},
		{"mixed roll", []int{2, 5}, 1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rollInitiative(scriptedD6(tt.rolls...), tt.cool)
			if got != tt.want {
				t.Errorf("rollInitiative() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRollInitiativeRange(t *testing.T) {
	// With cool in [-2, 2] the total must stay in [0, 14].
	for cool := -2; cool <= 2; cool++ {
		lo := rollInitiative(fixedD6(1), cool)
		hi := rollInitiative(fixedD6(6), cool)
		if lo < 0 || hi > 14 {
			t.Errorf("cool=%d: range [%d, %d] outside [0, 14]", cool, lo, hi)
		}
	}
}

func TestBuildEntriesOrdering(t *testing.T) {
	characters := []models.Character{
		{Name: "Vex", OwnerUserID: "user-1", CoolStat: 0},
		{Name: "Marlow", OwnerUserID: "user-2", CoolStat: 2},
		{Name: "Doorman", OwnerUserID: "", CoolStat: -1},
	}
	// Everyone rolls 3+3=6, so initiative is 6, 8, 5.
	entries := buildEntries(characters, fixedD6(3))

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantNames := []string{"Marlow", "Vex", "Doorman"}
	for i, name := range wantNames {
		if entries[i].CharacterName != name {
			t.Errorf("position %d: got %s, want %s", i, entries[i].CharacterName, name)
		}
		if entries[i].SortOrder != i {
			t.Errorf("position %d: SortOrder = %d, want %d", i, entries[i].SortOrder, i)
		}
	}
	if !entries[2].IsNPC {
		t.Error("character without owner should be flagged as NPC")
	}
	if entries[0].IsNPC {
		t.Error("owned character should not be flagged as NPC")
	}
}

func TestBuildEntriesStableTies(t *testing.T) {
	characters := []models.Character{
		{Name: "First", OwnerUserID: "a", CoolStat: 0},
		{Name: "Second", OwnerUserID: "b", CoolStat: 0},
		{Name: "Third", OwnerUserID: "c", CoolStat: 0},
	}
	entries := buildEntries(characters, fixedD6(4))

	// All tied at 8 — input order must survive.
	wantNames := []string{"First", "Second", "Third"}
	for i, name := range wantNames {
		if entries[i].CharacterName != name {
			t.Errorf("tie position %d: got %s, want %s", i, entries[i].CharacterName, name)
		}
	}
}

func makeEntries(n int) []models.TurnOrderEntry {
	entries := make([]models.TurnOrderEntry, n)
	for i := range entries {
		entries[i] = models.TurnOrderEntry{
			CharacterID:   "char-" + string(rune('a'+i)),
			CharacterName: "Char " + string(rune('A'+i)),
			SortOrder:     i,
			Initiative:    20 - i,
		}
	}
	return entries
}

func TestAdvanceMarksAndMoves(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 0, RoundNumber: 1}
	entries := makeEntries(3)

	advance(order, entries)

	if !entries[0].HasActed {
		t.Error("previous participant should be marked as acted")
	}
	if order.CurrentTurn != 1 {
		t.Errorf("CurrentTurn = %d, want 1", order.CurrentTurn)
	}
	if order.RoundNumber != 1 {
		t.Errorf("RoundNumber = %d, want 1", order.RoundNumber)
	}
}

func TestAdvanceWrapsIntoNewRound(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 0, RoundNumber: 1}
	entries := makeEntries(4)

	// A full lap lands back on the first participant with a fresh round.
	for i := 0; i < 4; i++ {
		advance(order, entries)
	}

	if order.CurrentTurn != 0 {
		t.Errorf("CurrentTurn = %d, want 0 after full round", order.CurrentTurn)
	}
	if order.RoundNumber != 2 {
		t.Errorf("RoundNumber = %d, want 2 after full round", order.RoundNumber)
	}
	for i, e := range entries {
		if e.HasActed {
			t.Errorf("entry %d: HasActed should reset at round start", i)
		}
	}
}

func TestAdvanceEmptyOrder(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 0, RoundNumber: 1}
	advance(order, nil)
	if order.CurrentTurn != 0 || order.RoundNumber != 1 {
		t.Errorf("advance on empty order mutated state: turn=%d round=%d", order.CurrentTurn, order.RoundNumber)
	}
}

func TestMarkActed(t *testing.T) {
	entries := makeEntries(3)

	if !markActed(entries, "char-b") {
		t.Fatal("markActed should find char-b")
	}
	if !entries[1].HasActed {
		t.Error("char-b should be flagged as acted")
	}
	if entries[0].HasActed || entries[2].HasActed {
		t.Error("other entries must stay untouched")
	}
	if markActed(entries, "char-zzz") {
		t.Error("markActed should report false for an unknown character")
	}
}

func TestCurrentEntry(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 1}
	entries := makeEntries(3)

	cur := currentEntry(order, entries)
	if cur == nil || cur.CharacterID != "char-b" {
		t.Fatalf("currentEntry = %v, want char-b", cur)
	}
	if currentEntry(order, nil) != nil {
		t.Error("currentEntry on empty list should be nil")
	}
	order.CurrentTurn = 99
	if currentEntry(order, entries) != nil {
		t.Error("out-of-range pointer should yield nil")
	}
}

func TestRemoveEntry(t *testing.T) {
	tests := []struct {
		name        string
		currentTurn int
		removeID    string
		wantTurn    int
		wantLen     int
		wantOK      bool
	}{
		{"remove after pointer", 0, "char-c", 0, 3, true},
		{"remove before pointer shifts back", 2, "char-a", 1, 3, true},
		{"remove at pointer keeps index", 1, "char-b", 1, 3, true},
		{"remove last while pointing at it wraps", 3, "char-d", 0, 3, true},
		{"unknown character", 1, "char-zzz", 1, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &models.TurnOrder{CurrentTurn: tt.currentTurn}
			entries := makeEntries(4)

			entries, ok := removeEntry(order, entries, tt.removeID)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if len(entries) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(entries), tt.wantLen)
			}
			if order.CurrentTurn != tt.wantTurn {
				t.Errorf("CurrentTurn = %d, want %d", order.CurrentTurn, tt.wantTurn)
			}
			for i, e := range entries {
				if e.SortOrder != i {
					t.Errorf("entry %d: SortOrder = %d, want %d", i, e.SortOrder, i)
				}
			}
		})
	}
}

func TestRemoveLastEntry(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 0}
	entries := makeEntries(1)

	entries, ok := removeEntry(order, entries, "char-a")
	if !ok {
		t.Fatal("removal should succeed")
	}
	if len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
	if order.CurrentTurn != 0 {
		t.Errorf("CurrentTurn = %d, want 0", order.CurrentTurn)
	}
}

func TestInsertEntry(t *testing.T) {
	order := &models.TurnOrder{CurrentTurn: 1}
	entries := makeEntries(3) // initiatives 20, 19, 18

	// Higher than the current leader: goes first and bumps the pointer.
	entries = insertEntry(order, entries, models.TurnOrderEntry{CharacterID: "char-new", Initiative: 25})

	if entries[0].CharacterID != "char-new" {
		t.Errorf("position 0 = %s, want char-new", entries[0].CharacterID)
	}
	if order.CurrentTurn != 2 {
		t.Errorf("CurrentTurn = %d, want 2 after insert before pointer", order.CurrentTurn)
	}

	// Tied with an existing entry: lands after the tie.
	entries = insertEntry(order, entries, models.TurnOrderEntry{CharacterID: "char-tie", Initiative: 19})

	var tieIdx int
	for i, e := range entries {
		if e.CharacterID == "char-tie" {
			tieIdx = i
		}
	}
	if tieIdx != 3 {
		t.Errorf("tied entry at %d, want 3 (after existing 19)", tieIdx)
	}
	for i, e := range entries {
		if e.SortOrder != i {
			t.Errorf("entry %d: SortOrder = %d, want %d", i, e.SortOrder, i)
		}
	}
}

func TestCanSendReminder(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	burst := now.Add(-10 * time.Second)
	fourMinAgo := now.Add(-4 * time.Minute)

	tests := []struct {
		name  string
		order models.TurnOrder
		want  bool
	}{
		{"fresh turn", models.TurnOrder{RemindersSent: 0}, true},
		{"cap reached", models.TurnOrder{RemindersSent: 3}, false},
		{"burst suppressed", models.TurnOrder{RemindersSent: 1, LastReminderAt: &burst}, false},
		{"adjacent thresholds pass", models.TurnOrder{RemindersSent: 2, LastReminderAt: &fourMinAgo}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canSendReminder(&tt.order, now); got != tt.want {
				t.Errorf("canSendReminder() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Walks a full turn's reminder schedule: every planned threshold must clear
// the gate when its job comes due, with HIGH priority inside the last five
// minutes.
func TestReminderThresholdSequence(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	deadline := start.Add(60 * time.Minute)
	order := &models.TurnOrder{TurnDeadline: &deadline}

	jobs := planTimerJobs("order-1", start, deadline)

	wantPriorities := map[models.TimerJobKind]models.NotificationPriority{
		models.TimerJobReminder15: models.PriorityNormal,
		models.TimerJobReminder5:  models.PriorityHigh,
		models.TimerJobReminder1:  models.PriorityHigh,
	}

	fired := 0
	for _, job := range jobs {
		if job.Kind == models.TimerJobDeadline {
			continue
		}
		due := job.DueAt
		if !canSendReminder(order, due) {
			t.Fatalf("%s due at %v was suppressed (sent=%d, last=%v)",
				job.Kind, due, order.RemindersSent, order.LastReminderAt)
		}
		if got := reminderPriority(deadline.Sub(due)); got != wantPriorities[job.Kind] {
			t.Errorf("%s: priority = %s, want %s", job.Kind, got, wantPriorities[job.Kind])
		}

		at := due
		order.RemindersSent++
		order.LastReminderAt = &at
		fired++
	}

	if fired != 3 {
		t.Errorf("fired %d reminders, want 3", fired)
	}
	if canSendReminder(order, deadline) {
		t.Error("a fourth reminder should be blocked by the per-turn cap")
	}
}

func TestIsCurrentParticipant(t *testing.T) {
	entries := makeEntries(3)
	entries[0].UserID = "user-a"
	entries[1].UserID = "user-b"
	entries[2].UserID = "" // NPC slot
	entries[2].IsNPC = true

	order := &models.TurnOrder{CurrentTurn: 1, RoundNumber: 2}

	if !isCurrentParticipant(order, entries, "user-b") {
		t.Error("current participant's player should be allowed")
	}
	if isCurrentParticipant(order, entries, "user-a") {
		t.Error("another member must not pass as the current participant")
	}
	if order.CurrentTurn != 1 || order.RoundNumber != 2 {
		t.Errorf("rejected check mutated state: turn=%d round=%d", order.CurrentTurn, order.RoundNumber)
	}

	order.CurrentTurn = 2
	if isCurrentParticipant(order, entries, "user-a") {
		t.Error("nobody owns an NPC slot")
	}
	if isCurrentParticipant(order, entries, "") {
		t.Error("empty user id must never match")
	}
	if isCurrentParticipant(order, nil, "user-a") {
		t.Error("empty order has no current participant")
	}
}

func TestOrderMutableAfterEnd(t *testing.T) {
	order := &models.TurnOrder{IsActive: true}
	if !orderMutable(order) {
		t.Error("active order should accept mutations")
	}

	order.IsActive = false
	if orderMutable(order) {
		t.Error("ended order must reject mutations")
	}
	if orderMutable(nil) {
		t.Error("missing order must reject mutations")
	}
}

func TestReminderPriority(t *testing.T) {
	if got := reminderPriority(20 * time.Minute); got != models.PriorityNormal {
		t.Errorf("20m out: priority = %s, want %s", got, models.PriorityNormal)
	}
	if got := reminderPriority(5 * time.Minute); got != models.PriorityHigh {
		t.Errorf("5m out: priority = %s, want %s", got, models.PriorityHigh)
	}
	if got := reminderPriority(0); got != models.PriorityHigh {
		t.Errorf("deadline hit: priority = %s, want %s", got, models.PriorityHigh)
	}
}

func TestPlanTimerJobs(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	t.Run("full hour ahead", func(t *testing.T) {
		deadline := now.Add(60 * time.Minute)
		jobs := planTimerJobs("order-1", now, deadline)

		if len(jobs) != 4 {
			t.Fatalf("got %d jobs, want 4", len(jobs))
		}
		wantKinds := []models.TimerJobKind{
			models.TimerJobReminder15,
			models.TimerJobReminder5,
			models.TimerJobReminder1,
			models.TimerJobDeadline,
		}
		for i, kind := range wantKinds {
			if jobs[i].Kind != kind {
				t.Errorf("job %d: kind = %s, want %s", i, jobs[i].Kind, kind)
			}
		}
		if !jobs[0].DueAt.Equal(deadline.Add(-15 * time.Minute)) {
			t.Errorf("reminder_15 due at %v, want %v", jobs[0].DueAt, deadline.Add(-15*time.Minute))
		}
		if !jobs[3].DueAt.Equal(deadline) {
			t.Errorf("deadline job due at %v, want %v", jobs[3].DueAt, deadline)
		}
	})

	t.Run("short turn skips stale reminders", func(t *testing.T) {
		deadline := now.Add(10 * time.Minute)
		jobs := planTimerJobs("order-1", now, deadline)

		// The 15-minute threshold is already behind us.
		if len(jobs) != 3 {
			t.Fatalf("got %d jobs, want 3", len(jobs))
		}
		if jobs[0].Kind != models.TimerJobReminder5 {
			t.Errorf("first job kind = %s, want %s", jobs[0].Kind, models.TimerJobReminder5)
		}
	})

	t.Run("deadline always scheduled", func(t *testing.T) {
		deadline := now.Add(30 * time.Second)
		jobs := planTimerJobs("order-1", now, deadline)

		if len(jobs) != 1 {
			t.Fatalf("got %d jobs, want 1", len(jobs))
		}
		if jobs[0].Kind != models.TimerJobDeadline {
			t.Errorf("job kind = %s, want %s", jobs[0].Kind, models.TimerJobDeadline)
		}
	})
}
