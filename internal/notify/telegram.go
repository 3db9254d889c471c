package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(),
	}
}

// Send posts msg with sendMessage using HTML formatting.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.apiBase, "/"), t.token)
	return postJSON(ctx, t.client, "telegram", endpoint, map[string]any{
		"chat_id":                  t.chatID,
		"text":                     telegramText(msg),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// telegramMax is the sendMessage text limit.
const telegramMax = 4096

func telegramText(msg Message) string {
	body := clip(msg.Body, telegramMax-len([]rune(msg.Title))-len([]rune(msg.URL))-16)
	text := "<b>" + htmlEscaper.Replace(msg.Title) + "</b>\n" + htmlEscaper.Replace(body)
	if msg.URL != "" {
		text += "\n" + htmlEscaper.Replace(msg.URL)
	}
	return text
}
