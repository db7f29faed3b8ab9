package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	_ "github.com/lib/pq"

	"github.com/deceser/astrobot/internal/bot"
	"github.com/deceser/astrobot/internal/config"
	"github.com/deceser/astrobot/internal/content"
	"github.com/deceser/astrobot/internal/db"
	httphandler "github.com/deceser/astrobot/internal/http"
	"github.com/deceser/astrobot/internal/http/handlers"
	"github.com/deceser/astrobot/internal/repo"
	"github.com/deceser/astrobot/internal/schedule"
)

func main() {
	// Load .env from CWD so the bot runs the same from repo root or a
	// deploy dir (env vars override).
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	reminderRepo := repo.NewReminderRepo(database)
	settingsRepo := repo.NewSettingsRepo(database)

	// Transport and content
	transport := bot.NewTelegramClient(cfg.BotToken)
	provider := content.NewHTTPProvider(cfg.HoroscopeAPIURL, cfg.TarotAPIURL, cfg.AstrologyAPIURL)
	contentSvc := content.NewService(provider)

	// Scheduler: reconcile durable pending reminders with live timers before
	// accepting traffic.
	scheduler := schedule.NewScheduler(reminderRepo, transport)
	if err := scheduler.Recover(ctx); err != nil {
		slog.Error("reminder recovery failed", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// Daily horoscope digest
	digestZone := time.Local
	if cfg.DefaultTimezone != "" {
		if loc, err := time.LoadLocation(cfg.DefaultTimezone); err == nil {
			digestZone = loc
		} else {
			slog.Warn("invalid TZ_DEFAULT, using local zone", "zone", cfg.DefaultTimezone)
		}
	}
	digest := schedule.NewDigest(settingsRepo, contentSvc, transport, cfg.DigestHour, digestZone)
	digest.Start(ctx)
	defer digest.Stop()

	// Update routing and HTTP surface
	botRouter := bot.NewRouter(transport, reminderRepo, settingsRepo, scheduler, contentSvc, cfg.DefaultTimezone)
	webhookHandler := handlers.NewWebhookHandler(cfg.BotToken, botRouter)
	router := httphandler.NewRouter(webhookHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
