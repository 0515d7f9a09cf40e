package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/types"
)

func TestRecorder_emitForwardsToSink(t *testing.T) {
	sink := NewMemorySink(0)
	r := Start(context.Background(), sink, nil, "sess-1", 3, "chat", "what is go?", nil)

	r.Emit(context.Background(), "retrieval", map[string]interface{}{"hits": 4})

	agg, err := sink.Aggregates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg["retrieval"])
}

func TestRecorder_emitInvokesForwardWithSameKindAndFields(t *testing.T) {
	sink := NewMemorySink(0)
	var gotKind string
	var gotFields map[string]interface{}
	r := Start(context.Background(), sink, nil, "sess-1", 0, "chat", "q", func(kind string, fields map[string]interface{}) {
		gotKind = kind
		gotFields = fields
	})

	r.Emit(context.Background(), "status", map[string]interface{}{"stage": types.StageContext})

	assert.Equal(t, "status", gotKind)
	assert.Equal(t, types.StageContext, gotFields["stage"])
}

func TestRecorder_failBlocksForwardAfterFirstCall(t *testing.T) {
	sink := NewMemorySink(0)
	calls := 0
	r := Start(context.Background(), sink, nil, "sess-1", 0, "chat", "q", func(string, map[string]interface{}) { calls++ })

	r.Fail(context.Background(), errors.New("boom"))
	r.Emit(context.Background(), "status", nil)

	assert.Equal(t, 1, calls)
}

func TestRecorder_completeEmitsOnceAndThenIgnoresFurtherCalls(t *testing.T) {
	sink := NewMemorySink(0)
	r := Start(context.Background(), sink, nil, "sess-1", 1, "chat", "q", nil)

	r.Complete(context.Background(), types.Response{})
	r.Complete(context.Background(), types.Response{})
	r.Emit(context.Background(), "late", nil)

	agg, err := sink.Aggregates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg["complete"])
	assert.Equal(t, int64(1), agg["total"])
}

func TestRecorder_failEmitsErrorEventAndBlocksLaterEmits(t *testing.T) {
	sink := NewMemorySink(0)
	r := Start(context.Background(), sink, nil, "sess-1", 1, "chat", "q", nil)

	r.Fail(context.Background(), errors.New("upstream down"))
	r.Emit(context.Background(), "retrieval", nil)

	agg, err := sink.Aggregates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg["error"])
	assert.Equal(t, int64(1), agg["total"])
}
