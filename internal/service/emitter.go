package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Event names emitted during an analysis run.
const (
	EventReceived         = "RECEIVED"
	EventMarketMetadata   = "MARKET_METADATA"
	EventDeepMode         = "DEEP_MODE"
	EventAnalysisJSON     = "ANALYSIS_JSON"
	EventAnalysisMarkdown = "ANALYSIS_MARKDOWN"
	EventComplete         = "COMPLETE"
)

// EventKind is the shape of an emitted event.
type EventKind string

const (
	KindText      EventKind = "text"
	KindJSON      EventKind = "json"
	KindChunk     EventKind = "chunk"
	KindStreamEnd EventKind = "stream_end"
	KindComplete  EventKind = "complete"
)

// Event is one progress notification of an analysis run.
type Event struct {
	RunID string    `json:"run_id"`
	Name  string    `json:"event"`
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Data  any       `json:"data,omitempty"`
}

// Emitter receives progress events. The CLI prints them, the WebSocket
// streams them and the plain HTTP handler discards them.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, evt Event) error

func (f EmitterFunc) Emit(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, Event) error { return nil })

// TextEmitter writes events as bracketed text lines.
type TextEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextEmitter creates a TextEmitter writing to w.
func NewTextEmitter(w io.Writer) *TextEmitter {
	return &TextEmitter{w: w}
}

func (e *TextEmitter) Emit(_ context.Context, evt Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch evt.Kind {
	case KindJSON:
		var data []byte
		data, err = json.MarshalIndent(evt.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("service: encode %s: %w", evt.Name, err)
		}
		_, err = fmt.Fprintf(e.w, "[%s] %s\n", evt.Name, data)
	case KindStreamEnd:
		_, err = fmt.Fprintf(e.w, "[%s] (end)\n", evt.Name)
	case KindComplete:
		_, err = fmt.Fprintf(e.w, "[%s]\n", EventComplete)
	default:
		_, err = fmt.Fprintf(e.w, "[%s] %s\n", evt.Name, evt.Text)
	}
	return err
}
