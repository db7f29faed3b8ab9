package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deceser/astrobot/internal/content"
	"github.com/deceser/astrobot/internal/flow"
	"github.com/deceser/astrobot/internal/guard"
	"github.com/deceser/astrobot/internal/repo"
	"github.com/deceser/astrobot/internal/schedule"
)

// updateTimeout bounds the processing of one dispatched update. It covers the
// content provider's worst case (retries plus per-request timeouts).
const updateTimeout = 90 * time.Second

// Router dispatches inbound updates: callbacks pass the duplicate guard
// first; text from a user mid-form feeds their session; otherwise commands
// and loose keywords route to handlers.
type Router struct {
	transport Transport
	reminders repo.ReminderRepo
	settings  repo.SettingsRepo
	scheduler *schedule.Scheduler
	content   *content.Service
	sessions  *flow.Sessions
	guard     *guard.Guard

	// defaultZone resolves reminder times for users without a stored zone.
	defaultZone string

	// Per-user dispatch queues: updates from one user run in order, one at a
	// time; different users never wait on each other.
	qmu    sync.Mutex
	queues map[int64]*userQueue
}

type userQueue struct {
	items   []func()
	running bool
}

// NewRouter wires the update dispatcher.
func NewRouter(
	transport Transport,
	reminders repo.ReminderRepo,
	settings repo.SettingsRepo,
	scheduler *schedule.Scheduler,
	contentSvc *content.Service,
	defaultZone string,
) *Router {
	return &Router{
		transport:   transport,
		reminders:   reminders,
		settings:    settings,
		scheduler:   scheduler,
		content:     contentSvc,
		sessions:    flow.NewSessions(),
		guard:       guard.New(guard.DefaultWindow),
		defaultZone: defaultZone,
		queues:      make(map[int64]*userQueue),
	}
}

// Dispatch queues the update for background processing and returns
// immediately, so the webhook can acknowledge before any transport or
// provider call runs. Updates without a sender are dropped, as HandleUpdate
// would ignore them anyway.
func (rt *Router) Dispatch(update Update) {
	userID := updateUserID(update)
	if userID == 0 {
		return
	}
	rt.enqueue(userID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		rt.HandleUpdate(ctx, update)
	})
}

func updateUserID(update Update) int64 {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	}
	return 0
}

func (rt *Router) enqueue(userID int64, fn func()) {
	rt.qmu.Lock()
	q, ok := rt.queues[userID]
	if !ok {
		q = &userQueue{}
		rt.queues[userID] = q
	}
	q.items = append(q.items, fn)
	if !q.running {
		q.running = true
		go rt.drain(userID, q)
	}
	rt.qmu.Unlock()
}

// drain runs the user's queued updates in arrival order, then retires the
// queue so idle users leave no entry behind.
func (rt *Router) drain(userID int64, q *userQueue) {
	for {
		rt.qmu.Lock()
		if len(q.items) == 0 {
			q.running = false
			delete(rt.queues, userID)
			rt.qmu.Unlock()
			return
		}
		fn := q.items[0]
		q.items = q.items[1:]
		rt.qmu.Unlock()
		fn()
	}
}

// HandleUpdate processes one webhook update. It never returns an error to the
// webhook layer; failures are logged or surfaced to the user in-chat.
func (rt *Router) HandleUpdate(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		rt.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		rt.handleMessage(ctx, update.Message)
	}
}

func (rt *Router) handleMessage(ctx context.Context, msg *Message) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		rt.handleCommand(ctx, userID, text)
		return
	}

	// A user mid-form owns all their plain text until the flow ends.
	if rt.sessions.Active(userID) {
		rt.handleFormInput(ctx, userID, text)
		return
	}

	switch lower := strings.ToLower(text); {
	case strings.Contains(lower, "menu"):
		rt.sendMenu(ctx, userID)
	case strings.Contains(lower, "horoscope"):
		rt.sendSignPicker(ctx, userID)
	case strings.Contains(lower, "settings"):
		rt.sendSettings(ctx, userID)
	case strings.Contains(lower, "tarot") || strings.Contains(lower, "card"):
		rt.sendTarotCard(ctx, userID)
	case strings.Contains(lower, "help"):
		rt.sendHelp(ctx, userID)
	default:
		rt.reply(ctx, userID, "I didn't quite get that. Use the menu buttons below.")
		rt.sendMenu(ctx, userID)
	}
}

func (rt *Router) handleCommand(ctx context.Context, userID int64, text string) {
	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/start":
		rt.reply(ctx, userID, "Hi! I can send daily horoscopes, draw tarot cards, build natal charts and keep reminders for you.")
		rt.sendMenu(ctx, userID)
	case "/help":
		rt.sendHelp(ctx, userID)
	case "/cancel":
		rt.sessions.Cancel(userID)
		rt.reply(ctx, userID, "Cancelled.")
	case "/remind":
		rt.handleRemind(ctx, userID, args)
	case "/reminders":
		rt.handleListReminders(ctx, userID)
	case "/delete_reminder":
		rt.handleDeleteReminder(ctx, userID, args)
	default:
		rt.reply(ctx, userID, "Unknown command. Try /help.")
	}
}

func (rt *Router) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if cb.From == nil {
		slog.Warn("callback without sender", "callbackId", cb.ID)
		return
	}
	userID := cb.From.ID

	if !rt.guard.ShouldProcess(userID, cb.Data) {
		slog.Info("ignoring duplicate callback", "userId", userID, "action", cb.Data)
		// Still ack so the client stops its spinner.
		if err := rt.transport.AnswerCallback(ctx, cb.ID, ""); err != nil {
			slog.Warn("could not answer duplicate callback", "userId", userID, "error", err)
		}
		return
	}

	if err := rt.transport.AnswerCallback(ctx, cb.ID, ""); err != nil {
		// An expired callback id is not fatal; keep going like any other ack
		// failure.
		slog.Warn("could not answer callback", "userId", userID, "error", err)
	}

	action, arg, _ := strings.Cut(cb.Data, ":")
	switch action {
	case "menu":
		rt.sendMenu(ctx, userID)
	case "horoscope":
		rt.sendSignPicker(ctx, userID)
	case "sign":
		rt.sendHoroscope(ctx, userID, arg)
	case "auto":
		rt.setAutoHoroscope(ctx, userID, arg == "on")
	case "tarot":
		rt.sendTarotCard(ctx, userID)
	case "intake":
		if arg == "cancel" {
			rt.sessions.Cancel(userID)
			rt.reply(ctx, userID, "Data entry cancelled.")
			return
		}
		rt.startIntake(ctx, userID)
	case "edit":
		rt.startSettingsEdit(ctx, userID, arg)
	case "settings":
		rt.sendSettings(ctx, userID)
	default:
		slog.Warn("unknown callback action", "userId", userID, "action", cb.Data)
	}
}

func (rt *Router) reply(ctx context.Context, userID int64, text string) {
	if err := rt.transport.SendMessage(ctx, userID, text); err != nil {
		slog.Error("reply failed", "userId", userID, "error", err)
	}
}

func (rt *Router) replyKeyboard(ctx context.Context, userID int64, text string, keyboard Keyboard) {
	if err := rt.transport.SendMessageWithKeyboard(ctx, userID, text, keyboard); err != nil {
		slog.Error("reply failed", "userId", userID, "error", err)
	}
}

func (rt *Router) sendMenu(ctx context.Context, userID int64) {
	rt.replyKeyboard(ctx, userID, "Choose an action:", Keyboard{
		{{Text: "🔮 Daily horoscope", Data: "horoscope"}},
		{{Text: "🎴 Tarot card", Data: "tarot"}},
		{{Text: "✨ Natal chart", Data: "intake"}},
		{{Text: "⚙️ Settings", Data: "settings"}},
	})
}

func (rt *Router) sendHelp(ctx context.Context, userID int64) {
	rt.reply(ctx, userID, strings.Join([]string{
		"What I can do:",
		"• /remind dd.mm.yyyy HH:MM text — set a reminder",
		"• /reminders — list your pending reminders",
		"• /delete_reminder <id> — cancel a reminder",
		"• /cancel — abort the current form",
		"• menu — show the action buttons",
	}, "\n"))
}
