// Package notify pushes a short summary of every completed analysis to chat
// channels (Discord, Telegram), filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Message is a channel-neutral notification.
type Message struct {
	Title string
	Body  string
	URL   string
	// Verdict drives per-channel decoration such as embed colour.
	Verdict domain.Verdict
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Notifier fans a report summary out to every Sender. It implements
// domain.ReportSink.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over senders. Only events listed in events
// are forwarded; an empty list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Name identifies the sink in logs.
func (n *Notifier) Name() string { return "notifier" }

// Publish sends the analysis.completed summary of r.
func (n *Notifier) Publish(ctx context.Context, r domain.Report) error {
	return n.Notify(ctx, domain.EventAnalysisCompleted, FormatReport(r))
}

// Notify delivers msg when event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event string, msg Message) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// FormatReport renders the chat summary of r: verdict, confidence, summary
// and up to three drivers.
func FormatReport(r domain.Report) Message {
	title := r.MarketTitle
	if title == "" {
		title = r.MarketURL
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Verdict: %s (%.1f%%) · %s mode\n", r.Result.Verdict, r.Result.ConfidencePct, r.Depth)
	if r.Result.Summary != "" {
		b.WriteString(r.Result.Summary)
		b.WriteString("\n")
	}
	for i, d := range r.Result.KeyDrivers {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", d.Text)
	}

	return Message{
		Title:   title,
		Body:    strings.TrimRight(b.String(), "\n"),
		URL:     r.MarketURL,
		Verdict: r.Result.Verdict,
	}
}
