package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deceser/astrobot/internal/model"
	"github.com/deceser/astrobot/internal/repo"
)

// Error texts stored on reminders that became due while nothing could fire
// them. The same no-grace-window policy applies at creation and at recovery.
const (
	errExpiredBeforeScheduling = "expired before scheduling"
	errExpiredDuringDowntime   = "expired during downtime"
)

// Sender delivers a rendered reminder to the user. Satisfied by the Telegram
// transport; tests use fakes.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// Scheduler maintains exactly one live delivery timer per pending reminder.
//
// The in-memory timer table is the single source of truth for what fires
// next; the database is the durable source of truth for what should exist.
// Recover reconciles the two at startup, nothing else does.
type Scheduler struct {
	reminders repo.ReminderRepo
	sender    Sender
	now       func() time.Time

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewScheduler creates a Scheduler delivering through sender and recording
// outcomes in reminders.
func NewScheduler(reminders repo.ReminderRepo, sender Sender) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		sender:    sender,
		now:       time.Now,
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arms a one-shot delivery timer for a pending reminder. An existing
// timer for the same id is cancelled first, so rescheduling replaces and never
// duplicates. A reminder already due is marked failed instead of being armed;
// there is no grace window.
func (s *Scheduler) Schedule(reminder model.Reminder) {
	s.mu.Lock()
	if prev, ok := s.timers[reminder.ID]; ok {
		prev.Stop()
		delete(s.timers, reminder.ID)
		slog.Info("replaced existing reminder timer", "id", reminder.ID)
	}

	delay := reminder.ScheduledFor.Sub(s.now())
	if delay <= 0 {
		s.mu.Unlock()
		slog.Warn("reminder due in the past, not scheduling", "id", reminder.ID, "scheduledFor", reminder.ScheduledFor)
		s.recordFailure(reminder.ID, errExpiredBeforeScheduling)
		return
	}

	id := reminder.ID
	userID := reminder.UserID
	text := reminder.Text
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.fire(id, userID, text, t)
	})
	s.timers[id] = t
	s.mu.Unlock()

	slog.Info("reminder scheduled", "id", id, "userId", userID, "in", delay.Round(time.Second).String())
}

// Cancel stops and removes the in-memory timer only; durable status is the
// caller's responsibility. Returns whether a timer existed.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, id)
	return true
}

// Recover loads every pending reminder and reconciles timers at startup:
// future reminders are scheduled, past-due ones are marked failed. A single
// reminder's failure never blocks the rest. Calling Recover twice produces
// the same timer set as calling it once.
func (s *Scheduler) Recover(ctx context.Context) error {
	pending, err := s.reminders.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending reminders: %w", err)
	}

	scheduled := 0
	for _, reminder := range pending {
		if reminder.ScheduledFor.After(s.now()) {
			s.Schedule(reminder)
			scheduled++
			continue
		}
		slog.Warn("reminder expired during downtime", "id", reminder.ID, "scheduledFor", reminder.ScheduledFor)
		s.recordFailure(reminder.ID, errExpiredDuringDowntime)
	}

	slog.Info("reminder recovery finished", "pending", len(pending), "scheduled", scheduled)
	return nil
}

// Stop cancels every live timer. Used at shutdown; durable state is untouched
// so the reminders are rescheduled by the next Recover.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// TimerCount reports the number of live timers.
func (s *Scheduler) TimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire runs on the timer goroutine: exactly one delivery attempt, outcome
// recorded, never panics out.
func (s *Scheduler) fire(id uuid.UUID, userID int64, text string, self *time.Timer) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in reminder delivery", "id", id, "panic", r)
		}
	}()

	// Remove the entry only if it is still this timer's own: Schedule may
	// have replaced it between expiry and here, and the replacement stays
	// armed.
	s.mu.Lock()
	if cur, ok := s.timers[id]; ok && cur == self {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rendered := fmt.Sprintf("🔔 Reminder:\n\n📝 %s", text)
	if err := s.sender.SendMessage(ctx, userID, rendered); err != nil {
		slog.Error("reminder delivery failed", "id", id, "userId", userID, "error", err)
		if repoErr := s.reminders.MarkFailed(ctx, id, err.Error()); repoErr != nil {
			slog.Error("failed to record delivery failure", "id", id, "error", repoErr)
		}
		return
	}

	if err := s.reminders.MarkCompleted(ctx, id, s.now()); err != nil {
		slog.Error("failed to record delivery", "id", id, "error", err)
		return
	}
	slog.Info("reminder delivered", "id", id, "userId", userID)
}

func (s *Scheduler) recordFailure(id uuid.UUID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.reminders.MarkFailed(ctx, id, reason); err != nil {
		slog.Error("failed to mark reminder failed", "id", id, "reason", reason, "error", err)
	}
}
