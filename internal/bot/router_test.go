package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deceser/astrobot/internal/content"
	"github.com/deceser/astrobot/internal/model"
	"github.com/deceser/astrobot/internal/schedule"
)

type sentMessage struct {
	userID int64
	text   string
}

// fakeTransport records every outbound call; delay simulates a slow API.
type fakeTransport struct {
	delay time.Duration

	mu        sync.Mutex
	sent      []sentMessage
	keyboards []Keyboard
	acks      []string
}

func (f *fakeTransport) SendMessage(ctx context.Context, userID int64, text string) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (f *fakeTransport) SendMessageWithKeyboard(ctx context.Context, userID int64, text string, keyboard Keyboard) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{userID: userID, text: text})
	f.keyboards = append(f.keyboards, keyboard)
	return nil
}

func (f *fakeTransport) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, callbackID)
	return nil
}

func (f *fakeTransport) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message was sent")
	}
	return f.sent[len(f.sent)-1].text
}

func (f *fakeTransport) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

// memReminderRepo backs the router and scheduler in tests.
type memReminderRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*model.Reminder
	createErr error
}

func newMemReminderRepo() *memReminderRepo {
	return &memReminderRepo{reminders: make(map[uuid.UUID]*model.Reminder)}
}

func (m *memReminderRepo) Create(ctx context.Context, userID int64, text string, scheduledFor time.Time, timezone string) (model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return model.Reminder{}, m.createErr
	}
	r := model.Reminder{
		ID:           uuid.New(),
		UserID:       userID,
		Text:         text,
		ScheduledFor: scheduledFor,
		Timezone:     timezone,
		Status:       model.StatusPending,
		Recurrence:   model.RecurrenceNone,
		CreatedAt:    time.Now(),
	}
	stored := r
	m.reminders[r.ID] = &stored
	return r, nil
}

func (m *memReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reminders[id]; ok {
		return *r, nil
	}
	return model.Reminder{}, errors.New("not found")
}

func (m *memReminderRepo) GetPending(ctx context.Context) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.reminders {
		if r.Status == model.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memReminderRepo) ListPendingByUser(ctx context.Context, userID int64) ([]model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.reminders {
		if r.UserID == userID && r.Status == model.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memReminderRepo) MarkCompleted(ctx context.Context, id uuid.UUID, notifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reminders[id]; ok && r.Status == model.StatusPending {
		r.Status = model.StatusCompleted
		t := notifiedAt
		r.LastNotified = &t
	}
	return nil
}

func (m *memReminderRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reminders[id]; ok && r.Status == model.StatusPending {
		r.Status = model.StatusFailed
		r.FailureCount++
		r.LastError = lastError
	}
	return nil
}

func (m *memReminderRepo) Cancel(ctx context.Context, id uuid.UUID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reminders[id]; ok && r.UserID == userID && r.Status == model.StatusPending {
		r.Status = model.StatusCancelled
		return true, nil
	}
	return false, nil
}

func (m *memReminderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reminders)
}

func (m *memReminderRepo) onlyReminder(t *testing.T) model.Reminder {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reminders) != 1 {
		t.Fatalf("repo holds %d reminders, want 1", len(m.reminders))
	}
	for _, r := range m.reminders {
		return *r
	}
	panic("unreachable")
}

// memSettingsRepo stores settings per user in memory.
type memSettingsRepo struct {
	mu sync.Mutex
	m  map[int64]model.UserSettings
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{m: make(map[int64]model.UserSettings)}
}

func (m *memSettingsRepo) Get(ctx context.Context, userID int64) (model.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.m[userID]; ok {
		return s, nil
	}
	return model.UserSettings{UserID: userID}, nil
}

func (m *memSettingsRepo) Save(ctx context.Context, settings model.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[settings.UserID] = settings
	return nil
}

func (m *memSettingsRepo) ListAutoHoroscope(ctx context.Context) ([]model.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserSettings
	for _, s := range m.m {
		if s.AutoHoroscope && s.ZodiacSign != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSettingsRepo) RecordCardUsage(ctx context.Context, userID int64, drawnAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.m[userID]
	s.UserID = userID
	at := drawnAt.UTC()
	if s.LastCardDate == nil || s.LastCardDate.UTC().Format("2006-01-02") < at.Format("2006-01-02") {
		s.CardUsageToday = 1
	} else {
		s.CardUsageToday++
	}
	s.LastCardDate = &at
	m.m[userID] = s
	return nil
}

// stubProvider answers content requests without the network.
type stubProvider struct {
	chartErr error
}

func (p *stubProvider) Horoscope(ctx context.Context, sign string) (content.Horoscope, error) {
	return content.Horoscope{Sign: sign, Text: "a fine day for " + sign}, nil
}

func (p *stubProvider) DrawCard(ctx context.Context) (content.Card, error) {
	return content.Card{Name: "The Sun", Meaning: "success and vitality"}, nil
}

func (p *stubProvider) NatalChart(ctx context.Context, req content.ChartRequest) (content.Chart, error) {
	if p.chartErr != nil {
		return content.Chart{}, p.chartErr
	}
	return content.Chart{Summary: "Natal chart for " + req.Name}, nil
}

type testRig struct {
	router    *Router
	transport *fakeTransport
	reminders *memReminderRepo
	settings  *memSettingsRepo
	scheduler *schedule.Scheduler
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	transport := &fakeTransport{}
	reminders := newMemReminderRepo()
	settings := newMemSettingsRepo()
	scheduler := schedule.NewScheduler(reminders, transport)
	t.Cleanup(scheduler.Stop)

	contentSvc := content.NewService(&stubProvider{})
	router := NewRouter(transport, reminders, settings, scheduler, contentSvc, "UTC")
	return &testRig{
		router:    router,
		transport: transport,
		reminders: reminders,
		settings:  settings,
		scheduler: scheduler,
	}
}

func textUpdate(userID int64, text string) Update {
	return Update{Message: &Message{From: &User{ID: userID}, Chat: Chat{ID: userID}, Text: text}}
}

func callbackUpdate(userID int64, id, data string) Update {
	return Update{CallbackQuery: &CallbackQuery{ID: id, From: &User{ID: userID}, Data: data}}
}

func TestRemind_createsAndSchedules(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 Buy gifts"))

	reminder := rig.reminders.onlyReminder(t)
	if reminder.Text != "Buy gifts" {
		t.Errorf("text = %q, want %q", reminder.Text, "Buy gifts")
	}
	if reminder.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", reminder.Status)
	}
	want := time.Date(2030, 12, 25, 9, 0, 0, 0, time.UTC)
	if !reminder.ScheduledFor.Equal(want) {
		t.Errorf("scheduledFor = %v, want %v", reminder.ScheduledFor, want)
	}
	if rig.scheduler.TimerCount() != 1 {
		t.Errorf("TimerCount = %d, want 1", rig.scheduler.TimerCount())
	}
	if got := rig.transport.lastText(t); !strings.Contains(got, "Reminder set") {
		t.Errorf("confirmation = %q, want it to mention the reminder was set", got)
	}
}

func TestRemind_pastRejectedWithoutCreate(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 01.01.2020 10:00 Old news"))

	if rig.reminders.count() != 0 {
		t.Errorf("repo holds %d reminders, want 0", rig.reminders.count())
	}
	if rig.scheduler.TimerCount() != 0 {
		t.Errorf("TimerCount = %d, want 0", rig.scheduler.TimerCount())
	}
	if got := rig.transport.lastText(t); !strings.Contains(got, "future") {
		t.Errorf("reply = %q, want it to say the time must be in the future", got)
	}
}

func TestRemind_malformedShowsHint(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	for _, args := range []string{"", "tomorrow at nine", "25.12.2030 Buy gifts", "2030-12-25 09:00 Buy gifts"} {
		rig.router.HandleUpdate(ctx, textUpdate(42, strings.TrimSpace("/remind "+args)))
		if got := rig.transport.lastText(t); !strings.Contains(got, "/remind dd.mm.yyyy HH:MM") {
			t.Errorf("args %q: reply = %q, want the format hint", args, got)
		}
	}
	if rig.reminders.count() != 0 {
		t.Errorf("repo holds %d reminders, want 0", rig.reminders.count())
	}
}

func TestRemind_textTooLong(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	long := strings.Repeat("x", model.MaxReminderTextLen+1)
	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 "+long))

	if rig.reminders.count() != 0 {
		t.Errorf("repo holds %d reminders, want 0", rig.reminders.count())
	}
	if got := rig.transport.lastText(t); !strings.Contains(got, "too long") {
		t.Errorf("reply = %q, want a length complaint", got)
	}
}

func TestRemind_usesStoredTimezone(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.settings.Save(ctx, model.UserSettings{UserID: 42, Timezone: "Europe/Berlin"})

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 01.06.2030 09:30 Standup"))

	reminder := rig.reminders.onlyReminder(t)
	// 09:30 Berlin summer time is 07:30 UTC.
	want := time.Date(2030, 6, 1, 7, 30, 0, 0, time.UTC)
	if !reminder.ScheduledFor.UTC().Equal(want) {
		t.Errorf("scheduledFor = %v, want %v", reminder.ScheduledFor.UTC(), want)
	}
	if reminder.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want Europe/Berlin", reminder.Timezone)
	}
}

func TestDeleteReminder_pending(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 Buy gifts"))
	reminder := rig.reminders.onlyReminder(t)

	rig.router.HandleUpdate(ctx, textUpdate(42, "/delete_reminder "+reminder.ID.String()))

	if got, _ := rig.reminders.GetByID(ctx, reminder.ID); got.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if rig.scheduler.TimerCount() != 0 {
		t.Errorf("TimerCount = %d, want 0 after delete", rig.scheduler.TimerCount())
	}
	if got := rig.transport.lastText(t); !strings.Contains(got, "deleted") {
		t.Errorf("reply = %q, want a deletion confirmation", got)
	}
}

func TestDeleteReminder_completedReportsNotFound(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 Buy gifts"))
	reminder := rig.reminders.onlyReminder(t)
	rig.reminders.MarkCompleted(ctx, reminder.ID, time.Now())

	rig.router.HandleUpdate(ctx, textUpdate(42, "/delete_reminder "+reminder.ID.String()))

	if got, _ := rig.reminders.GetByID(ctx, reminder.ID); got.Status != model.StatusCompleted {
		t.Errorf("status = %s, completed must stick", got.Status)
	}
	if got := rig.transport.lastText(t); !strings.Contains(got, "not found or already completed") {
		t.Errorf("reply = %q, want the not-found message", got)
	}
}

func TestDeleteReminder_otherUsersReminder(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 Buy gifts"))
	reminder := rig.reminders.onlyReminder(t)

	rig.router.HandleUpdate(ctx, textUpdate(99, "/delete_reminder "+reminder.ID.String()))

	if got, _ := rig.reminders.GetByID(ctx, reminder.ID); got.Status != model.StatusPending {
		t.Errorf("status = %s, another user must not cancel it", got.Status)
	}
}

func TestListReminders(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "/reminders"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "no pending reminders") {
		t.Errorf("empty list reply = %q", got)
	}

	rig.router.HandleUpdate(ctx, textUpdate(42, "/remind 25.12.2030 09:00 Buy gifts"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "/reminders"))
	got := rig.transport.lastText(t)
	if !strings.Contains(got, "Buy gifts") || !strings.Contains(got, "/delete_reminder") {
		t.Errorf("list reply = %q, want the reminder and the delete hint", got)
	}
}

func TestCallback_duplicateSuppressedButAcked(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "tarot"))
	first := rig.transport.textCount()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb2", "tarot"))

	if rig.transport.textCount() != first {
		t.Error("duplicate callback produced a second handler response")
	}
	if rig.transport.ackCount() != 2 {
		t.Errorf("acks = %d, want 2 (duplicates are still answered)", rig.transport.ackCount())
	}
}

func TestCallback_distinctActionsBothHandled(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "tarot"))
	first := rig.transport.textCount()
	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb2", "menu"))

	if rig.transport.textCount() <= first {
		t.Error("a different action was wrongly suppressed")
	}
}

func TestIntake_endToEnd(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "intake"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "name") {
		t.Fatalf("first prompt = %q, want the name question", got)
	}

	rig.router.HandleUpdate(ctx, textUpdate(42, "Alice"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "1990-01-31"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "15:30"))

	saved, _ := rig.settings.Get(ctx, 42)
	if saved.Name != "Alice" || saved.BirthDate != "1990-01-31" || saved.BirthTime != "15:30" {
		t.Errorf("saved settings = %+v", saved)
	}
	if saved.ZodiacSign != "aquarius" {
		t.Errorf("zodiac sign = %q, want aquarius for Jan 31", saved.ZodiacSign)
	}

	if rig.router.sessions.Active(42) {
		t.Error("session still active after completion")
	}

	var sawChart bool
	rig.transport.mu.Lock()
	for _, msg := range rig.transport.sent {
		if strings.Contains(msg.text, "Natal chart for Alice") {
			sawChart = true
		}
	}
	rig.transport.mu.Unlock()
	if !sawChart {
		t.Error("chart summary was never sent")
	}
}

func TestIntake_invalidInputRepromptsSameStep(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "intake"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "Alice"))

	rig.router.HandleUpdate(ctx, textUpdate(42, "31.01.1990"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "YYYY-MM-DD") {
		t.Errorf("reject reply = %q, want the format reminder", got)
	}

	// Still on the date step; a valid date now advances to the time prompt.
	rig.router.HandleUpdate(ctx, textUpdate(42, "1990-01-31"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "HH:MM") {
		t.Errorf("next prompt = %q, want the time question", got)
	}
}

func TestIntake_chartFailureKeepsProfileUnsaved(t *testing.T) {
	transport := &fakeTransport{}
	reminders := newMemReminderRepo()
	settings := newMemSettingsRepo()
	scheduler := schedule.NewScheduler(reminders, transport)
	t.Cleanup(scheduler.Stop)
	contentSvc := content.NewService(&stubProvider{chartErr: content.ErrProvider})
	router := NewRouter(transport, reminders, settings, scheduler, contentSvc, "UTC")
	ctx := context.Background()

	router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "intake"))
	router.HandleUpdate(ctx, textUpdate(42, "Alice"))
	router.HandleUpdate(ctx, textUpdate(42, "1990-01-31"))
	router.HandleUpdate(ctx, textUpdate(42, "15:30"))

	if got := transport.lastText(t); !strings.Contains(got, "unavailable") {
		t.Errorf("reply = %q, want the service-unavailable message", got)
	}
	saved, _ := settings.Get(ctx, 42)
	if saved.Name != "" {
		t.Errorf("profile saved despite chart failure: %+v", saved)
	}
	if router.sessions.Active(42) {
		t.Error("session not ended after the failed completion")
	}
}

func TestCancelCommand_abortsForm(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "intake"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "/cancel"))

	if rig.router.sessions.Active(42) {
		t.Error("session survived /cancel")
	}
	// Plain text now routes normally instead of feeding a form.
	rig.router.HandleUpdate(ctx, textUpdate(42, "menu"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "Choose an action") {
		t.Errorf("post-cancel reply = %q, want the menu", got)
	}
}

func TestCommandBeatsActiveForm(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "intake"))
	rig.router.HandleUpdate(ctx, textUpdate(42, "/help"))

	if got := rig.transport.lastText(t); !strings.Contains(got, "/remind") {
		t.Errorf("reply = %q, want the help text", got)
	}
	if !rig.router.sessions.Active(42) {
		t.Error("/help should not destroy the form session")
	}
}

func TestTarot_dailyLimit(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "tarot"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "The Sun") {
		t.Fatalf("first draw reply = %q, want the card", got)
	}

	// Second draw on the same day is refused (sent outside the guard window
	// via a fresh action key would still hit the daily limit; call directly).
	rig.router.sendTarotCard(ctx, 42)
	if got := rig.transport.lastText(t); !strings.Contains(got, "tomorrow") {
		t.Errorf("second draw reply = %q, want the daily-limit message", got)
	}

	// Yesterday's draw does not block today.
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	rig.settings.Save(ctx, model.UserSettings{UserID: 7, LastCardDate: &yesterday, CardUsageToday: 1})
	rig.router.sendTarotCard(ctx, 7)
	if got := rig.transport.lastText(t); !strings.Contains(got, "The Sun") {
		t.Errorf("next-day draw reply = %q, want a card", got)
	}
}

func TestAutoHoroscopeToggle(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "auto:on"))
	saved, _ := rig.settings.Get(ctx, 42)
	if !saved.AutoHoroscope {
		t.Error("auto horoscope not enabled")
	}
	// No sign yet: the reply should ask for the birth date.
	if got := rig.transport.lastText(t); !strings.Contains(got, "birth date") {
		t.Errorf("reply = %q, want the missing-sign nudge", got)
	}

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb2", "auto:off"))
	saved, _ = rig.settings.Get(ctx, 42)
	if saved.AutoHoroscope {
		t.Error("auto horoscope not disabled")
	}
}

func TestHoroscope_remembersChosenSign(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, callbackUpdate(42, "cb1", "sign:leo"))

	if got := rig.transport.lastText(t); !strings.Contains(got, "fine day for leo") {
		t.Errorf("horoscope reply = %q", got)
	}
	saved, _ := rig.settings.Get(ctx, 42)
	if saved.ZodiacSign != "leo" {
		t.Errorf("zodiac sign = %q, want leo", saved.ZodiacSign)
	}
}

func waitForTexts(t *testing.T, transport *fakeTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if transport.textCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("only %d messages sent, want %d", transport.textCount(), n)
}

func TestDispatch_returnsBeforeProcessing(t *testing.T) {
	rig := newTestRig(t)
	rig.transport.delay = 100 * time.Millisecond

	start := time.Now()
	rig.router.Dispatch(textUpdate(42, "/help"))
	if elapsed := time.Since(start); elapsed >= rig.transport.delay {
		t.Errorf("Dispatch blocked for %v, must return before the send", elapsed)
	}

	waitForTexts(t, rig.transport, 1)
	if got := rig.transport.lastText(t); !strings.Contains(got, "/remind") {
		t.Errorf("reply = %q, want the help text", got)
	}
}

func TestDispatch_sameUserRunsInOrder(t *testing.T) {
	rig := newTestRig(t)
	rig.transport.delay = 50 * time.Millisecond

	// Without per-user serialization the instant second update would finish
	// ahead of the delayed first one.
	rig.router.Dispatch(textUpdate(42, "/help"))
	rig.router.Dispatch(textUpdate(42, "menu"))

	waitForTexts(t, rig.transport, 2)
	rig.transport.mu.Lock()
	defer rig.transport.mu.Unlock()
	if !strings.Contains(rig.transport.sent[0].text, "/remind") {
		t.Errorf("first reply = %q, want the help text", rig.transport.sent[0].text)
	}
	if !strings.Contains(rig.transport.sent[1].text, "Choose an action") {
		t.Errorf("second reply = %q, want the menu", rig.transport.sent[1].text)
	}
}

func TestDispatch_dropsSenderlessUpdate(t *testing.T) {
	rig := newTestRig(t)
	rig.router.Dispatch(Update{UpdateID: 1})
	rig.router.Dispatch(Update{Message: &Message{Text: "hello"}})

	time.Sleep(20 * time.Millisecond)
	if got := rig.transport.textCount(); got != 0 {
		t.Errorf("sent %d messages for senderless updates, want 0", got)
	}
}

func TestUnknownText_fallsBackToMenu(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.router.HandleUpdate(ctx, textUpdate(42, "blorp"))
	if got := rig.transport.lastText(t); !strings.Contains(got, "Choose an action") {
		t.Errorf("fallback reply = %q, want the menu", got)
	}
}
