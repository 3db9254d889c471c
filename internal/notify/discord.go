package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Embed limits enforced by Discord.
const (
	discordTitleMax       = 256
	discordDescriptionMax = 4096
)

// DiscordSender posts each message to a Discord webhook as one embed,
// colored by verdict.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
		now:        time.Now,
	}
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	embed := discordEmbed{
		Title:       clip(msg.Title, discordTitleMax),
		Description: clip(msg.Body, discordDescriptionMax),
		URL:         msg.URL,
		Color:       verdictColor(msg.Verdict),
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	if msg.Verdict != "" {
		embed.Footer = &discordFooter{Text: "Verdict " + string(msg.Verdict)}
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, discordPayload{
		Username: "Polyseek",
		Embeds:   []discordEmbed{embed},
	})
}

func (d *DiscordSender) Name() string { return "discord" }

func verdictColor(v domain.Verdict) int {
	switch v {
	case domain.VerdictYes:
		return 0x2ecc71
	case domain.VerdictNo:
		return 0xe74c3c
	default:
		return 0x95a5a6
	}
}
