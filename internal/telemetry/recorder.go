package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// Recorder is the per-turn telemetry handle:
// `start(session, mode, question, forward?)` returning an object with
// `emit`/`complete`/`fail`. Every event it emits carries
// {sessionId, turn, timestamp} and is forwarded to the sink and (if a
// span is active) attached as a span event.
type Recorder struct {
	sink      interfaces.TelemetrySink
	span      trace.Span
	sessionID string
	turn      int
	mode      string
	question  string
	forward   func(kind string, fields map[string]interface{})

	mu       sync.Mutex
	done     bool
}

// Start begins a new turn's telemetry recording. forward, if non-nil,
// receives every emitted event in addition to the sink — the
// orchestrator uses this to also push telemetry onto the session's
// event bus for streaming `telemetry{aggregates}` events.
func Start(ctx context.Context, sink interfaces.TelemetrySink, span trace.Span, sessionID string, turn int, mode, question string, forward func(kind string, fields map[string]interface{})) *Recorder {
	return &Recorder{sink: sink, span: span, sessionID: sessionID, turn: turn, mode: mode, question: question, forward: forward}
}

// Emit records one telemetry event.
func (r *Recorder) Emit(ctx context.Context, kind string, fields map[string]interface{}) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.emit(ctx, kind, fields)
}

// emit records one event without the done check, so Complete and Fail
// can record their own final event after closing the recorder.
func (r *Recorder) emit(ctx context.Context, kind string, fields map[string]interface{}) {
	record := types.TelemetryRecord{
		SessionID: r.sessionID,
		Turn:      r.turn,
		Timestamp: time.Now().Unix(),
		Kind:      kind,
		Fields:    fields,
	}
	if r.span != nil {
		r.span.AddEvent(kind)
	}
	if r.sink != nil {
		_ = r.sink.Emit(ctx, record)
	}
	if r.forward != nil {
		r.forward(kind, fields)
	}
}

// Complete finalizes the recording with a successful response.
func (r *Recorder) Complete(ctx context.Context, response types.Response) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()

	r.emit(ctx, "complete", map[string]interface{}{
		"usage":              response.Usage,
		"reference_count":    len(response.References),
		"critic_unresolved":  response.Diagnostics.CriticUnresolved,
	})
	if r.span != nil {
		r.span.End()
	}
}

// Fail finalizes the recording with a classified error.
func (r *Recorder) Fail(ctx context.Context, err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()

	r.emit(ctx, "error", map[string]interface{}{"error": err.Error()})
	if r.span != nil {
		r.span.RecordError(err)
		r.span.End()
	}
}
