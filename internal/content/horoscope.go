package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ZodiacSigns in calendar order.
var ZodiacSigns = []string{
	"aries", "taurus", "gemini", "cancer", "leo", "virgo",
	"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
}

// IsZodiacSign reports whether s names a known sign.
func IsZodiacSign(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sign := range ZodiacSigns {
		if sign == s {
			return true
		}
	}
	return false
}

const cacheTTL = 24 * time.Hour

type cachedHoroscope struct {
	text     string
	cachedAt time.Time
}

// Service layers the daily cache and local fallback generation on top of a
// Provider. Horoscopes degrade to a generated reading when the provider
// fails; natal charts do not (the error surfaces to the caller).
type Service struct {
	provider Provider
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedHoroscope // key: sign|YYYY-MM-DD
}

// NewService creates a content service over provider.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		now:      time.Now,
		cache:    make(map[string]cachedHoroscope),
	}
}

// DailyHoroscope returns the rendered horoscope for the sign, served from
// cache when fresh, from the provider otherwise, and from the local generator
// when the provider is down. It only errors on an unknown sign.
func (s *Service) DailyHoroscope(ctx context.Context, sign string) (string, error) {
	sign = strings.ToLower(strings.TrimSpace(sign))
	if !IsZodiacSign(sign) {
		return "", fmt.Errorf("unknown zodiac sign %q", sign)
	}

	day := s.now().Format("2006-01-02")
	cacheKey := sign + "|" + day

	s.mu.Lock()
	if entry, ok := s.cache[cacheKey]; ok && s.now().Sub(entry.cachedAt) < cacheTTL {
		s.mu.Unlock()
		return entry.text, nil
	}
	s.mu.Unlock()

	text := ""
	horoscope, err := s.provider.Horoscope(ctx, sign)
	if err != nil {
		slog.Warn("horoscope provider failed, using fallback", "sign", sign, "error", err)
		text = generateHoroscope(sign, day)
	} else {
		text = fmt.Sprintf("✨ Horoscope for %s:\n\n%s", titleSign(sign), horoscope.Text)
	}

	s.mu.Lock()
	s.cache[cacheKey] = cachedHoroscope{text: text, cachedAt: s.now()}
	s.mu.Unlock()

	return text, nil
}

// NatalChart proxies to the provider; ErrProvider surfaces unchanged so the
// handler can tell the user to retry later.
func (s *Service) NatalChart(ctx context.Context, req ChartRequest) (Chart, error) {
	return s.provider.NatalChart(ctx, req)
}

// EvictExpired drops cache entries older than the TTL and returns how many
// were removed.
func (s *Service) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, entry := range s.cache {
		if s.now().Sub(entry.cachedAt) >= cacheTTL {
			delete(s.cache, key)
			evicted++
		}
	}
	return evicted
}

var (
	moods = []string{
		"a day of steady progress", "an unexpected conversation", "a chance to slow down",
		"momentum in work matters", "clarity about an old question", "a small but real victory",
		"a push to finish what you started", "renewed energy for personal plans",
	}
	advices = []string{
		"Trust your first instinct.", "Say less, listen more.", "Put off big purchases.",
		"Reach out to someone you miss.", "Finish one thing before starting another.",
		"Let a minor annoyance go.", "Write the idea down before it fades.",
		"Take the walk you keep postponing.",
	}
)

// generateHoroscope is the deterministic offline fallback: the same sign and
// day always produce the same reading.
func generateHoroscope(sign, day string) string {
	h := fnv.New32a()
	h.Write([]byte(sign + day))
	seed := h.Sum32()

	mood := moods[int(seed)%len(moods)]
	advice := advices[int(seed>>8)%len(advices)]

	return fmt.Sprintf("✨ Horoscope for %s:\n\nToday brings %s. %s", titleSign(sign), mood, advice)
}

func titleSign(sign string) string {
	if sign == "" {
		return sign
	}
	return strings.ToUpper(sign[:1]) + sign[1:]
}
