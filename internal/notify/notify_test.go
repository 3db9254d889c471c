package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name string
	err  error
	got  []Message
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.got = append(f.got, msg)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func report() domain.Report {
	return domain.Report{
		ID:          "r1",
		MarketURL:   "https://polymarket.com/event/x",
		MarketTitle: "Will X <happen>?",
		Depth:       domain.DepthDeep,
		Result: domain.AnalysisResult{
			Verdict:       domain.VerdictNo,
			ConfidencePct: 64.3,
			Summary:       "Unlikely.",
			KeyDrivers: []domain.Driver{
				{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
			},
		},
	}
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(report())
	require.Equal(t, "Will X <happen>?", msg.Title)
	require.Equal(t, "Verdict: NO (64.3%) · deep mode\nUnlikely.\n- a\n- b\n- c", msg.Body)
	require.Equal(t, domain.VerdictNo, msg.Verdict)

	r := report()
	r.MarketTitle = ""
	require.Equal(t, r.MarketURL, FormatReport(r).Title)
}

func TestNotifierFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"other.event"}, testLogger())

	require.NoError(t, n.Publish(context.Background(), report()))
	require.Empty(t, s.got)

	n = NewNotifier([]Sender{s}, []string{" analysis.completed "}, testLogger())
	require.NoError(t, n.Publish(context.Background(), report()))
	require.Len(t, s.got, 1)

	n = NewNotifier([]Sender{s}, nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), "anything", Message{Title: "t"}))
	require.Len(t, s.got, 2)
}

func TestNotifierContinuesAfterFailure(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("down")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Publish(context.Background(), report())
	require.ErrorContains(t, err, "1 sender(s) failed")
	require.ErrorContains(t, err, "bad: down")
	require.Len(t, good.got, 1)
	require.Equal(t, "notifier", n.Name())
}

func TestDiscordSender(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	d.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, d.Send(context.Background(), FormatReport(report())))
	require.Equal(t, "Polyseek", payload.Username)
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]
	require.Equal(t, 0xe74c3c, embed.Color)
	require.Equal(t, "https://polymarket.com/event/x", embed.URL)
	require.Equal(t, "2025-03-01T12:00:00Z", embed.Timestamp)
	require.NotNil(t, embed.Footer)
	require.Equal(t, "Verdict NO", embed.Footer.Text)
}

func TestClip(t *testing.T) {
	require.Equal(t, "short", clip("short", 10))
	require.Equal(t, "abc…", clip("abcdef", 4))
	require.Equal(t, "", clip("abcdef", 0))
	require.Equal(t, "héllo", clip("héllo", 5))
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), Message{Title: "t"})
	require.ErrorContains(t, err, "unexpected status 404")
}

func TestTelegramSender(t *testing.T) {
	var gotPath string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), FormatReport(report())))

	require.Equal(t, "/bottok/sendMessage", gotPath)
	require.Equal(t, "42", body["chat_id"])
	require.Equal(t, "HTML", body["parse_mode"])
	require.Contains(t, body["text"], "<b>Will X &lt;happen&gt;?</b>")
}
