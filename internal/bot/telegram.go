package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramClient implements Transport against the Telegram Bot API.
type TelegramClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegramClient creates a Telegram transport for the bot token.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{},
	}
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessagePayload struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackPayload struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (c *TelegramClient) SendMessage(ctx context.Context, userID int64, text string) error {
	return c.call(ctx, "sendMessage", sendMessagePayload{ChatID: userID, Text: text})
}

func (c *TelegramClient) SendMessageWithKeyboard(ctx context.Context, userID int64, text string, keyboard Keyboard) error {
	markup := &inlineKeyboardMarkup{}
	for _, row := range keyboard {
		var line []inlineKeyboardButton
		for _, btn := range row {
			line = append(line, inlineKeyboardButton{Text: btn.Text, CallbackData: btn.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return c.call(ctx, "sendMessage", sendMessagePayload{ChatID: userID, Text: text, ReplyMarkup: markup})
}

func (c *TelegramClient) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackPayload{CallbackQueryID: callbackID, Text: text})
}

func (c *TelegramClient) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrDelivery, method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", ErrDelivery, method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDelivery, method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrDelivery, method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%w: %s: %s", ErrDelivery, method, apiResp.Description)
	}
	return nil
}
