package kafkastream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func report() domain.Report {
	return domain.Report{
		ID:          "run-9",
		MarketURL:   "https://kalshi.com/markets/FED",
		MarketID:    "FED-25DEC",
		MarketTitle: "Fed cut?",
		Venue:       domain.VenueKalshi,
		Depth:       domain.DepthDeep,
		Perspective: domain.PerspectiveNeutral,
		Result:      domain.AnalysisResult{Verdict: domain.VerdictNo, ConfidencePct: 61.5, Summary: "unlikely"},
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProducerPublish(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "polyseek.analysis", testLogger())

	require.Equal(t, "event_stream", p.Name())
	require.NoError(t, p.Publish(context.Background(), report()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "FED-25DEC", string(msg.Key))

	var ev domain.AnalysisCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	require.Equal(t, domain.EventAnalysisCompleted, ev.Event)
	require.Equal(t, "run-9", ev.ReportID)
	require.Equal(t, domain.VerdictNo, ev.Verdict)
	require.InDelta(t, 61.5, ev.ConfidencePct, 1e-9)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "analysis.completed", headers["event"])
	require.Equal(t, "2026-05-01T12:00:00Z", headers["timestamp"])

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestProducerWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	err := newProducer(w, "t", testLogger()).Publish(context.Background(), report())
	require.ErrorContains(t, err, "broker down")
}

func TestMessageKeyFallsBackToURL(t *testing.T) {
	r := report()
	r.MarketID = ""
	msg, err := Message(r)
	require.NoError(t, err)
	require.Equal(t, r.MarketURL, string(msg.Key))
}
