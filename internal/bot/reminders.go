package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deceser/astrobot/internal/model"
	"github.com/deceser/astrobot/internal/schedule"
)

const reminderFormatHint = "Format: /remind dd.mm.yyyy HH:MM text\nExample: /remind 25.12.2030 09:00 Buy gifts"

// remindRe splits "dd.mm.yyyy HH:MM text" into components.
var remindRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})\s+(\d{1,2}):(\d{1,2})\s+(.+)$`)

func (rt *Router) handleRemind(ctx context.Context, userID int64, args string) {
	if args == "" {
		rt.reply(ctx, userID, reminderFormatHint)
		return
	}

	match := remindRe.FindStringSubmatch(args)
	if match == nil {
		rt.reply(ctx, userID, reminderFormatHint)
		return
	}

	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	year, _ := strconv.Atoi(match[3])
	hour, _ := strconv.Atoi(match[4])
	minute, _ := strconv.Atoi(match[5])
	text := strings.TrimSpace(match[6])

	if len(text) > model.MaxReminderTextLen {
		rt.reply(ctx, userID, fmt.Sprintf("The reminder text is too long (max %d characters).", model.MaxReminderTextLen))
		return
	}

	zone := rt.userZone(ctx, userID)
	resolver, err := schedule.NewResolver(zone)
	if err != nil {
		slog.Warn("stored timezone is invalid, using default", "userId", userID, "zone", zone)
		resolver, _ = schedule.NewResolver("")
	}

	scheduledFor, err := resolver.Resolve(day, month, year, hour, minute)
	switch {
	case errors.Is(err, schedule.ErrInvalidDateTime):
		rt.reply(ctx, userID, "That date or time is not valid. "+reminderFormatHint)
		return
	case errors.Is(err, schedule.ErrPastDateTime):
		rt.reply(ctx, userID, "The reminder time must be in the future.")
		return
	case err != nil:
		slog.Error("resolve reminder time", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Something went wrong, try again later.")
		return
	}

	reminder, err := rt.reminders.Create(ctx, userID, text, scheduledFor, resolver.Location.String())
	if err != nil {
		slog.Error("create reminder", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not save the reminder, try again later.")
		return
	}

	rt.scheduler.Schedule(reminder)

	local := scheduledFor.In(resolver.Location)
	rt.reply(ctx, userID, fmt.Sprintf("✅ Reminder set!\n📅 %s\n📝 %s",
		local.Format("02.01.2006 15:04"), text))
	slog.Info("reminder created", "id", reminder.ID, "userId", userID, "scheduledFor", scheduledFor)
}

func (rt *Router) handleListReminders(ctx context.Context, userID int64) {
	reminders, err := rt.reminders.ListPendingByUser(ctx, userID)
	if err != nil {
		slog.Error("list reminders", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not load your reminders, try again later.")
		return
	}
	if len(reminders) == 0 {
		rt.reply(ctx, userID, "You have no pending reminders.")
		return
	}

	var b strings.Builder
	b.WriteString("📋 Your reminders:\n")
	for _, reminder := range reminders {
		loc, err := time.LoadLocation(reminder.Timezone)
		if err != nil {
			loc = time.Local
		}
		fmt.Fprintf(&b, "\n📅 %s\n📝 %s\n🆔 %s\n",
			reminder.ScheduledFor.In(loc).Format("02.01.2006 15:04"),
			reminder.Text,
			reminder.ID,
		)
	}
	b.WriteString("\nDelete one with /delete_reminder <id>")
	rt.reply(ctx, userID, b.String())
}

func (rt *Router) handleDeleteReminder(ctx context.Context, userID int64, args string) {
	if args == "" {
		rt.reply(ctx, userID, "Give me the reminder id: /delete_reminder <id>")
		return
	}

	id, err := uuid.Parse(args)
	if err != nil {
		rt.reply(ctx, userID, "That doesn't look like a reminder id.")
		return
	}

	// Durable status first, then the in-memory timer: if delivery fires in
	// between, the pending-only update already decided who won.
	cancelled, err := rt.reminders.Cancel(ctx, id, userID)
	if err != nil {
		slog.Error("cancel reminder", "id", id, "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not delete the reminder, try again later.")
		return
	}
	if !cancelled {
		rt.reply(ctx, userID, "Reminder not found or already completed.")
		return
	}

	rt.scheduler.Cancel(id)
	rt.reply(ctx, userID, "✅ Reminder deleted.")
	slog.Info("reminder cancelled", "id", id, "userId", userID)
}

// userZone returns the user's stored IANA zone or the configured default.
func (rt *Router) userZone(ctx context.Context, userID int64) string {
	settings, err := rt.settings.Get(ctx, userID)
	if err != nil {
		slog.Warn("load settings for zone", "userId", userID, "error", err)
		return rt.defaultZone
	}
	if settings.Timezone != "" {
		return settings.Timezone
	}
	return rt.defaultZone
}
