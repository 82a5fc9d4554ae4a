package notify

import (
	"context"
	"fmt"

	"net/http"
	"net/url"
	"strings"
	"time"
)

// TelegramSender posts messages to a chat through the Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a sender for the given bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send calls sendMessage with the title bolded in Markdown.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	endpoint := "https://api.telegram.org/bot" + t.token + "/sendMessage"

	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {fmt.Sprintf("*%s*\n%s", title, message)},
		"parse_mode": {"Markdown"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkSendStatus(resp); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

func (t *TelegramSender) Name() string { return "telegram" }
