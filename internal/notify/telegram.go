package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string // overridable for tests; defaults to the Bot API
	Silent   bool
}

// Telegram sends events as Bot API messages.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot_token and chat_id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification"`
}

// Notify posts the event text to sendMessage.
func (t *Telegram) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(telegramMessage{
		ChatID:              t.cfg.ChatID,
		Text:                event.Text(),
		ParseMode:           "HTML",
		DisableNotification: t.cfg.Silent,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}
	return nil
}
