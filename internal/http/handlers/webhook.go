package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deceser/astrobot/internal/bot"
)

// WebhookHandler receives Telegram webhook calls. The bot token doubles as
// the path secret: a wrong token is a 404, the same as a missing route.
type WebhookHandler struct {
	token  string
	router *bot.Router
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(token string, router *bot.Router) *WebhookHandler {
	return &WebhookHandler{token: token, router: router}
}

// ServeHTTP handles POST /webhook/{token}.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != h.token {
		http.NotFound(w, r)
		return
	}

	var update bot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("webhook: undecodable update", "error", err)
		// 200 anyway: Telegram would retry a 4xx forever.
		w.WriteHeader(http.StatusOK)
		return
	}

	// Ack before processing: Telegram re-sends updates whose webhook call is
	// slow, and a provider outage can hold one for the full retry span.
	w.WriteHeader(http.StatusOK)
	h.router.Dispatch(update)
}
