package bot

import (
	"context"
	"errors"
)

// ErrDelivery marks a transport fault (blocked user, network error, rate
// limit). Delivery errors on reminders are recorded, never retried.
var ErrDelivery = errors.New("message delivery failed")

// Button is one inline keyboard button; Data is the callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// Transport sends messages to chat users. It must be safe to call from timer
// goroutines with no surrounding request context.
type Transport interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, userID int64, text string, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
