package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deceser/astrobot/internal/content"
	"github.com/deceser/astrobot/internal/flow"
)

// Flow names used to dispatch completed forms.
const (
	flowIntake        = "intake"
	flowEditName      = "edit_name"
	flowEditBirthDate = "edit_birthdate"
	flowEditBirthTime = "edit_birthtime"
)

var intakeFlow = flow.Flow{
	Name: flowIntake,
	Fields: []flow.Field{
		{Key: "name", Prompt: "What is your name?", Validate: flow.ValidateName},
		{Key: "birthdate", Prompt: "Your birth date? (YYYY-MM-DD)", Validate: flow.ValidateDate},
		{Key: "birthtime", Prompt: "Your birth time? (HH:MM)", Validate: flow.ValidateTime},
	},
}

func (rt *Router) startIntake(ctx context.Context, userID int64) {
	first := rt.sessions.Start(userID, intakeFlow)
	rt.replyKeyboard(ctx, userID, first.Prompt, Keyboard{
		{{Text: "Cancel", Data: "intake:cancel"}},
	})
}

func (rt *Router) startSettingsEdit(ctx context.Context, userID int64, field string) {
	var editFlow flow.Flow
	switch field {
	case "name":
		editFlow = flow.Flow{Name: flowEditName, Fields: []flow.Field{
			{Key: "name", Prompt: "New name?", Validate: flow.ValidateName},
		}}
	case "birthdate":
		editFlow = flow.Flow{Name: flowEditBirthDate, Fields: []flow.Field{
			{Key: "birthdate", Prompt: "New birth date? (YYYY-MM-DD)", Validate: flow.ValidateDate},
		}}
	case "birthtime":
		editFlow = flow.Flow{Name: flowEditBirthTime, Fields: []flow.Field{
			{Key: "birthtime", Prompt: "New birth time? (HH:MM)", Validate: flow.ValidateTime},
		}}
	default:
		slog.Warn("unknown settings edit field", "userId", userID, "field", field)
		return
	}

	first := rt.sessions.Start(userID, editFlow)
	rt.reply(ctx, userID, first.Prompt)
}

// handleFormInput feeds mid-form text into the user's session and reacts to
// the outcome. Rejected input re-prompts without advancing.
func (rt *Router) handleFormInput(ctx context.Context, userID int64, text string) {
	result := rt.sessions.Submit(userID, text)
	switch result.Kind {
	case flow.Reject:
		rt.reply(ctx, userID, result.Reason)
	case flow.Advance:
		rt.reply(ctx, userID, result.Next.Prompt)
	case flow.Complete:
		name := rt.sessions.FlowName(userID)
		defer rt.sessions.End(userID)
		if name == flowIntake {
			rt.completeIntake(ctx, userID, result.Data)
		} else {
			rt.completeSettingsEdit(ctx, userID, name, result.Data)
		}
	case flow.NoSession:
		// Session vanished between the Active check and here (cancel race);
		// treat the text as a fresh message next time.
	}
}

func (rt *Router) completeIntake(ctx context.Context, userID int64, data map[string]string) {
	rt.reply(ctx, userID, "Fetching your astrology data... This can take a moment.")

	chart, err := rt.content.NatalChart(ctx, content.ChartRequest{
		Name:      data["name"],
		BirthDate: data["birthdate"],
		BirthTime: data["birthtime"],
	})
	if err != nil {
		slog.Error("natal chart fetch failed", "userId", userID, "error", err)
		rt.reply(ctx, userID, "The astrology service is unavailable right now, try again later.")
		return
	}

	settings, err := rt.settings.Get(ctx, userID)
	if err == nil {
		settings.Name = data["name"]
		settings.BirthDate = data["birthdate"]
		settings.BirthTime = data["birthtime"]
		settings.ZodiacSign = content.ZodiacForDate(data["birthdate"])
		if err := rt.settings.Save(ctx, settings); err != nil {
			slog.Error("save intake settings", "userId", userID, "error", err)
		}
	} else {
		slog.Error("load settings for intake", "userId", userID, "error", err)
	}

	rt.reply(ctx, userID, chart.Summary)
	rt.replyKeyboard(ctx, userID, "Choose an action:", Keyboard{
		{{Text: "📋 Menu", Data: "menu"}},
	})
}

func (rt *Router) completeSettingsEdit(ctx context.Context, userID int64, flowName string, data map[string]string) {
	settings, err := rt.settings.Get(ctx, userID)
	if err != nil {
		slog.Error("load settings for edit", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not update your profile, try again later.")
		return
	}

	switch flowName {
	case flowEditName:
		settings.Name = data["name"]
	case flowEditBirthDate:
		settings.BirthDate = data["birthdate"]
		settings.ZodiacSign = content.ZodiacForDate(data["birthdate"])
	case flowEditBirthTime:
		settings.BirthTime = data["birthtime"]
	}

	if err := rt.settings.Save(ctx, settings); err != nil {
		slog.Error("save settings edit", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not update your profile, try again later.")
		return
	}
	rt.reply(ctx, userID, "✅ Saved.")
	rt.sendSettings(ctx, userID)
}

func (rt *Router) sendSettings(ctx context.Context, userID int64) {
	settings, err := rt.settings.Get(ctx, userID)
	if err != nil {
		slog.Error("load settings", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not load your settings, try again later.")
		return
	}

	or := func(v string) string {
		if v == "" {
			return "—"
		}
		return v
	}
	auto := "off"
	autoToggle := Button{Text: "Enable daily horoscope", Data: "auto:on"}
	if settings.AutoHoroscope {
		auto = "on"
		autoToggle = Button{Text: "Disable daily horoscope", Data: "auto:off"}
	}

	profile := fmt.Sprintf("⚙️ Your profile:\nName: %s\nBirth date: %s\nBirth time: %s\nZodiac sign: %s\nDaily horoscope: %s",
		or(settings.Name), or(settings.BirthDate), or(settings.BirthTime), or(settings.ZodiacSign), auto)

	rt.replyKeyboard(ctx, userID, profile, Keyboard{
		{{Text: "Edit name", Data: "edit:name"}},
		{{Text: "Edit birth date", Data: "edit:birthdate"}},
		{{Text: "Edit birth time", Data: "edit:birthtime"}},
		{autoToggle},
		{{Text: "📋 Menu", Data: "menu"}},
	})
}

func (rt *Router) setAutoHoroscope(ctx context.Context, userID int64, enabled bool) {
	settings, err := rt.settings.Get(ctx, userID)
	if err != nil {
		slog.Error("load settings for auto toggle", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not update your settings, try again later.")
		return
	}
	settings.AutoHoroscope = enabled
	if err := rt.settings.Save(ctx, settings); err != nil {
		slog.Error("save auto toggle", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Could not update your settings, try again later.")
		return
	}
	if enabled {
		if settings.ZodiacSign == "" {
			rt.reply(ctx, userID, "Daily horoscope enabled. Set your birth date so I know your sign.")
			return
		}
		rt.reply(ctx, userID, "Daily horoscope enabled. See you every morning!")
		return
	}
	rt.reply(ctx, userID, "Daily horoscope disabled.")
}

func (rt *Router) sendSignPicker(ctx context.Context, userID int64) {
	var keyboard Keyboard
	var row []Button
	for _, sign := range content.ZodiacSigns {
		row = append(row, Button{Text: strings.ToUpper(sign[:1]) + sign[1:], Data: "sign:" + sign})
		if len(row) == 3 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}
	rt.replyKeyboard(ctx, userID, "Pick your zodiac sign:", keyboard)
}

func (rt *Router) sendHoroscope(ctx context.Context, userID int64, sign string) {
	text, err := rt.content.DailyHoroscope(ctx, sign)
	if err != nil {
		slog.Warn("horoscope request for unknown sign", "userId", userID, "sign", sign)
		rt.sendSignPicker(ctx, userID)
		return
	}
	rt.reply(ctx, userID, text)

	// Remember the sign so the digest and future requests know it.
	settings, err := rt.settings.Get(ctx, userID)
	if err == nil && settings.ZodiacSign != sign {
		settings.ZodiacSign = sign
		if err := rt.settings.Save(ctx, settings); err != nil {
			slog.Warn("save chosen sign", "userId", userID, "error", err)
		}
	}
}

func (rt *Router) sendTarotCard(ctx context.Context, userID int64) {
	settings, err := rt.settings.Get(ctx, userID)
	if err != nil {
		slog.Error("load settings for tarot", "userId", userID, "error", err)
		rt.reply(ctx, userID, "Something went wrong, try again later.")
		return
	}

	now := time.Now()
	if settings.LastCardDate != nil &&
		settings.LastCardDate.UTC().Format("2006-01-02") == now.UTC().Format("2006-01-02") &&
		settings.CardUsageToday >= 1 {
		rt.reply(ctx, userID, "You already drew your free card today. Come back tomorrow!")
		return
	}

	card := rt.content.DrawCard(ctx)
	rt.reply(ctx, userID, content.RenderCard(card))

	if err := rt.settings.RecordCardUsage(ctx, userID, now); err != nil {
		slog.Warn("record card usage", "userId", userID, "error", err)
	}
}
