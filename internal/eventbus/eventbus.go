// Package eventbus makes event emission a typed, tagged channel owned
// by the orchestrator for the duration of one turn, not a callback
// list. Consumers (a future HTTP/SSE transport, tests) read the one
// channel returned by Events(), so each event reaches a single reader;
// the telemetry recorder feeds the bus through the orchestrator's
// forward callback rather than reading it. Backpressure is
// explicit because the channel is bounded and Publish blocks when it's
// full.
package eventbus

import (
	"context"

	"github.com/groundedqa/sentra/internal/types"
)

// Bus is a single-turn event stream. It is created fresh per turn and
// closed by the orchestrator once `done` has been published.
type Bus struct {
	ch     chan types.Event
	closed chan struct{}
}

// New creates a Bus with the given buffer size. A size of 0 makes
// Publish synchronous with the consumer, which is the correct choice
// for sync-mode turns that only use the bus for telemetry fan-out.
func New(buffer int) *Bus {
	return &Bus{
		ch:     make(chan types.Event, buffer),
		closed: make(chan struct{}),
	}
}

// Publish sends ev to subscribers. It blocks if the buffer is full
// (backpressure) and returns early if ctx is cancelled. A Publish
// racing a concurrent Close can still select the send case on an
// already-closed channel; the recover turns that race into the same
// nil-error outcome as the closed case instead of a panic.
func (b *Bus) Publish(ctx context.Context, ev types.Event) (err error) {
	defer func() {
		if recover() != nil {
			err = nil
		}
	}()
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closed:
		return nil
	}
}

// Events returns the read side of the bus for a consumer to range over.
func (b *Bus) Events() <-chan types.Event {
	return b.ch
}

// Close signals no further events will be published and closes the
// channel. Safe to call once; a second call panics, matching the
// invariant that `done` terminates exactly one stream.
func (b *Bus) Close() {
	close(b.closed)
	close(b.ch)
}
