package telemetry

import (
	"context"
	"sync"

	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// MemorySink is an in-process append-only event log plus aggregate
// counters, implementing interfaces.TelemetrySink. It's the default
// sink for single-replica deployments; a durable sink (e.g. backed by
// the same Postgres the long-term memory store uses) can implement the
// same interface without the orchestrator changing.
type MemorySink struct {
	mu         sync.Mutex
	events     []types.TelemetryRecord
	aggregates map[string]int64
	maxEvents  int
}

// NewMemorySink builds a MemorySink retaining at most maxEvents most
// recent records (0 means unbounded).
func NewMemorySink(maxEvents int) *MemorySink {
	return &MemorySink{aggregates: make(map[string]int64), maxEvents: maxEvents}
}

// Emit implements interfaces.TelemetrySink.
func (s *MemorySink) Emit(ctx context.Context, event types.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if s.maxEvents > 0 && len(s.events) > s.maxEvents {
		s.events = s.events[len(s.events)-s.maxEvents:]
	}
	s.aggregates[event.Kind]++
	s.aggregates["total"]++
	return nil
}

// Aggregates implements interfaces.TelemetrySink.
func (s *MemorySink) Aggregates(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.aggregates))
	for k, v := range s.aggregates {
		out[k] = v
	}
	return out, nil
}

var _ interfaces.TelemetrySink = (*MemorySink)(nil)
