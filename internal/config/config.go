package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	BotToken    string
	DatabaseURL string
	Port        string

	// DefaultTimezone is the IANA zone used to resolve reminder times when a
	// user has not picked one ("" means the process-local zone).
	DefaultTimezone string

	// DigestHour is the local hour (0-23) at which the daily horoscope digest
	// is sent.
	DigestHour int

	HoroscopeAPIURL string
	TarotAPIURL     string
	AstrologyAPIURL string

	DevMode bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:       "8080", // default port
		DigestHour: 8,
	}

	// BOT_TOKEN is required: it is both the transport credential and the
	// webhook path secret.
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable is required")
	}
	cfg.BotToken = botToken

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.DefaultTimezone = os.Getenv("TZ_DEFAULT")

	if raw := os.Getenv("DIGEST_HOUR"); raw != "" {
		hour, err := strconv.Atoi(raw)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("DIGEST_HOUR must be an hour between 0 and 23, got %q", raw)
		}
		cfg.DigestHour = hour
	}

	cfg.HoroscopeAPIURL = os.Getenv("HOROSCOPE_API_URL")
	cfg.TarotAPIURL = os.Getenv("TAROT_API_URL")
	cfg.AstrologyAPIURL = os.Getenv("ASTROLOGY_API_URL")

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"

	return cfg, nil
}
