// Package content supplies horoscope, tarot and natal-chart material from
// external HTTP providers, with bounded retries, a daily cache and local
// fallbacks for when the providers are down.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrProvider marks an upstream content source failure after retries were
// exhausted.
var ErrProvider = errors.New("content provider unavailable")

// Horoscope is one day's reading for a zodiac sign.
type Horoscope struct {
	Sign string `json:"sign"`
	Date string `json:"date"`
	Text string `json:"horoscope"`
}

// Card is a drawn tarot card.
type Card struct {
	Name     string `json:"name"`
	Meaning  string `json:"meaning"`
	Reversed bool   `json:"reversed"`
}

// ChartRequest carries the intake data for a natal chart.
type ChartRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	BirthTime string `json:"birth_time"` // HH:MM
}

// Chart is the provider's rendered natal chart summary.
type Chart struct {
	Summary string `json:"summary"`
}

// Provider fetches structured content or fails with an ErrProvider-wrapped
// error. Implementations retry internally; callers do not retry again.
type Provider interface {
	Horoscope(ctx context.Context, sign string) (Horoscope, error)
	DrawCard(ctx context.Context) (Card, error)
	NatalChart(ctx context.Context, req ChartRequest) (Chart, error)
}

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

// HTTPProvider talks to the horoscope/tarot/astrology HTTP APIs. Each call is
// retried up to maxRetries times with a fixed delay.
type HTTPProvider struct {
	horoscopeURL string
	tarotURL     string
	astrologyURL string
	client       *http.Client
}

// NewHTTPProvider creates a provider for the given base URLs. An empty URL
// disables that source, making its calls fail fast with ErrProvider.
func NewHTTPProvider(horoscopeURL, tarotURL, astrologyURL string) *HTTPProvider {
	return &HTTPProvider{
		horoscopeURL: horoscopeURL,
		tarotURL:     tarotURL,
		astrologyURL: astrologyURL,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *HTTPProvider) Horoscope(ctx context.Context, sign string) (Horoscope, error) {
	if p.horoscopeURL == "" {
		return Horoscope{}, fmt.Errorf("%w: horoscope API not configured", ErrProvider)
	}
	endpoint := fmt.Sprintf("%s?sign=%s&day=today", p.horoscopeURL, url.QueryEscape(sign))

	var result Horoscope
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return Horoscope{}, err
	}
	if result.Sign == "" {
		result.Sign = sign
	}
	return result, nil
}

func (p *HTTPProvider) DrawCard(ctx context.Context) (Card, error) {
	if p.tarotURL == "" {
		return Card{}, fmt.Errorf("%w: tarot API not configured", ErrProvider)
	}

	var result Card
	if err := p.getJSON(ctx, p.tarotURL, &result); err != nil {
		return Card{}, err
	}
	return result, nil
}

func (p *HTTPProvider) NatalChart(ctx context.Context, req ChartRequest) (Chart, error) {
	if p.astrologyURL == "" {
		return Chart{}, fmt.Errorf("%w: astrology API not configured", ErrProvider)
	}
	endpoint := fmt.Sprintf("%s?name=%s&date=%s&time=%s",
		p.astrologyURL,
		url.QueryEscape(req.Name),
		url.QueryEscape(req.BirthDate),
		url.QueryEscape(req.BirthTime),
	)

	var result Chart
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return Chart{}, err
	}
	return result, nil
}

// getJSON fetches endpoint into out with bounded fixed-delay retries. A 4xx
// status aborts immediately; network errors and 5xx are retried.
func (p *HTTPProvider) getJSON(ctx context.Context, endpoint string, out any) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(retryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return nil
}
