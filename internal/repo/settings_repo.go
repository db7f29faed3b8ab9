package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/deceser/astrobot/internal/model"
)

// SettingsRepo defines the interface for user settings repository operations
type SettingsRepo interface {
	// Get returns the user's settings, or zero-value defaults when the user
	// has no stored row.
	Get(ctx context.Context, userID int64) (model.UserSettings, error)
	// Save upserts the full settings row.
	Save(ctx context.Context, settings model.UserSettings) error
	// ListAutoHoroscope returns settings for every user with the daily digest
	// enabled and a zodiac sign chosen.
	ListAutoHoroscope(ctx context.Context) ([]model.UserSettings, error)
	// RecordCardUsage bumps today's card counter, resetting it when the last
	// draw was on an earlier day.
	RecordCardUsage(ctx context.Context, userID int64, drawnAt time.Time) error
}

type settingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo creates a new SettingsRepo instance
func NewSettingsRepo(db *sql.DB) SettingsRepo {
	return &settingsRepo{db: db}
}

const settingsColumns = `user_id, name, zodiac_sign, birth_date, birth_time,
	       auto_horoscope, timezone, last_card_date, card_usage_today, updated_at`

func (r *settingsRepo) Get(ctx context.Context, userID int64) (model.UserSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM user_settings WHERE user_id = $1`

	settings, err := scanSettings(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.UserSettings{UserID: userID}, nil
		}
		return model.UserSettings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepo) Save(ctx context.Context, settings model.UserSettings) error {
	query := `
		INSERT INTO user_settings (user_id, name, zodiac_sign, birth_date, birth_time,
		                           auto_horoscope, timezone, last_card_date, card_usage_today, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			zodiac_sign = EXCLUDED.zodiac_sign,
			birth_date = EXCLUDED.birth_date,
			birth_time = EXCLUDED.birth_time,
			auto_horoscope = EXCLUDED.auto_horoscope,
			timezone = EXCLUDED.timezone,
			last_card_date = EXCLUDED.last_card_date,
			card_usage_today = EXCLUDED.card_usage_today,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		settings.UserID,
		settings.Name,
		settings.ZodiacSign,
		settings.BirthDate,
		settings.BirthTime,
		settings.AutoHoroscope,
		settings.Timezone,
		settings.LastCardDate,
		settings.CardUsageToday,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (r *settingsRepo) ListAutoHoroscope(ctx context.Context) ([]model.UserSettings, error) {
	query := `
		SELECT ` + settingsColumns + `
		FROM user_settings
		WHERE auto_horoscope = TRUE AND zodiac_sign <> ''
		ORDER BY user_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query digest users: %w", err)
	}
	defer rows.Close()

	var result []model.UserSettings
	for rows.Next() {
		settings, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		result = append(result, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}
	return result, nil
}

func (r *settingsRepo) RecordCardUsage(ctx context.Context, userID int64, drawnAt time.Time) error {
	// A draw on a new calendar day restarts the counter at 1.
	query := `
		INSERT INTO user_settings (user_id, last_card_date, card_usage_today, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (user_id) DO UPDATE SET
			card_usage_today = CASE
				WHEN user_settings.last_card_date IS NULL
				     OR user_settings.last_card_date::date < EXCLUDED.last_card_date::date
				THEN 1
				ELSE user_settings.card_usage_today + 1
			END,
			last_card_date = EXCLUDED.last_card_date,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, userID, drawnAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record card usage: %w", err)
	}
	return nil
}

func scanSettings(row rowScanner) (model.UserSettings, error) {
	var settings model.UserSettings
	var lastCard sql.NullTime
	err := row.Scan(
		&settings.UserID,
		&settings.Name,
		&settings.ZodiacSign,
		&settings.BirthDate,
		&settings.BirthTime,
		&settings.AutoHoroscope,
		&settings.Timezone,
		&lastCard,
		&settings.CardUsageToday,
		&settings.UpdatedAt,
	)
	if err != nil {
		return model.UserSettings{}, err
	}
	if lastCard.Valid {
		t := lastCard.Time
		settings.LastCardDate = &t
	}
	return settings, nil
}
