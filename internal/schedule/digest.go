package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deceser/astrobot/internal/repo"
)

// HoroscopeSource supplies rendered daily horoscopes and owns a cache that
// needs periodic eviction. Satisfied by the content service.
type HoroscopeSource interface {
	DailyHoroscope(ctx context.Context, sign string) (string, error)
	EvictExpired() int
}

// Digest sends the daily horoscope to every opted-in user at a fixed local
// hour and evicts the stale horoscope cache each night.
type Digest struct {
	settings repo.SettingsRepo
	source   HoroscopeSource
	sender   Sender
	hour     int
	loc      *time.Location
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Cache eviction runs at 03:00 local, before the morning digest.
const cleanupHour = 3

// NewDigest creates the daily digest loop. hour is the local send hour (0-23).
func NewDigest(settings repo.SettingsRepo, source HoroscopeSource, sender Sender, hour int, loc *time.Location) *Digest {
	if loc == nil {
		loc = time.Local
	}
	return &Digest{
		settings: settings,
		source:   source,
		sender:   sender,
		hour:     hour,
		loc:      loc,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the digest goroutine. It runs until Stop or ctx cancellation.
func (d *Digest) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		slog.Info("daily digest started", "hour", d.hour, "zone", d.loc.String())
		for {
			next, runCleanup, runSend := d.nextWake()

			timer := time.NewTimer(next.Sub(d.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-d.stopCh:
				timer.Stop()
				return
			case <-timer.C:
				if runCleanup {
					evicted := d.source.EvictExpired()
					slog.Info("horoscope cache cleanup", "evicted", evicted)
				}
				if runSend {
					d.sendAll(ctx)
				}
			}
		}
	}()
}

// Stop halts the digest loop and waits for it to exit.
func (d *Digest) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// nextWake picks the earlier of the next send and cleanup instants. When the
// two coincide (send hour configured to the cleanup hour) both run at the
// same wake, so neither task starves the other.
func (d *Digest) nextWake() (next time.Time, runCleanup, runSend bool) {
	nextSend := d.nextAt(d.hour)
	nextCleanup := d.nextAt(cleanupHour)

	next = nextSend
	if nextCleanup.Before(next) {
		next = nextCleanup
	}
	return next, next.Equal(nextCleanup), next.Equal(nextSend)
}

// nextAt returns the next occurrence of hour:00 in the digest zone.
func (d *Digest) nextAt(hour int) time.Time {
	now := d.now().In(d.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, d.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// sendAll delivers the digest to every opted-in user; per-user failures are
// logged and do not stop the run.
func (d *Digest) sendAll(ctx context.Context) {
	users, err := d.settings.ListAutoHoroscope(ctx)
	if err != nil {
		slog.Error("digest: loading opted-in users failed", "error", err)
		return
	}

	sent := 0
	for _, user := range users {
		text, err := d.source.DailyHoroscope(ctx, user.ZodiacSign)
		if err != nil {
			slog.Error("digest: horoscope fetch failed", "userId", user.UserID, "sign", user.ZodiacSign, "error", err)
			continue
		}
		if err := d.sender.SendMessage(ctx, user.UserID, text); err != nil {
			slog.Error("digest: send failed", "userId", user.UserID, "error", err)
			continue
		}
		sent++
	}
	slog.Info("daily digest finished", "users", len(users), "sent", sent)
}
