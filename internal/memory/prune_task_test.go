package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/types"
)

type fakeLongTermStore struct {
	pruneMaxAgeDays int
	pruneMinUsage   int
	pruneRemoved    int64
	pruneErr        error
}

func (f *fakeLongTermStore) Add(context.Context, *types.LongTermMemory) error { panic("not used") }
func (f *fakeLongTermStore) Recall(context.Context, string, string, []float32, float64, int, types.LongTermMemoryType, []string) ([]types.LongTermMemory, error) {
	panic("not used")
}
func (f *fakeLongTermStore) Prune(ctx context.Context, maxAgeDays, minUsage int) (int64, error) {
	f.pruneMaxAgeDays = maxAgeDays
	f.pruneMinUsage = minUsage
	return f.pruneRemoved, f.pruneErr
}
func (f *fakeLongTermStore) Stats(context.Context) (int64, error) { panic("not used") }

func newPruneTask(t *testing.T, payload PrunePayload) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePruneLongTerm, b)
}

func TestNewPruneTask_carriesTheGivenPayload(t *testing.T) {
	task, err := NewPruneTask(30, 2)

	require.NoError(t, err)
	assert.Equal(t, TaskTypePruneLongTerm, task.Type())
	var p PrunePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, PrunePayload{MaxAgeDays: 30, MinUsage: 2}, p)
}

func TestPruneTaskHandler_Handle_forwardsPayloadToStore(t *testing.T) {
	store := &fakeLongTermStore{pruneRemoved: 7}
	h := NewPruneTaskHandler(store)
	task := newPruneTask(t, PrunePayload{MaxAgeDays: 45, MinUsage: 3})

	err := h.Handle(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 45, store.pruneMaxAgeDays)
	assert.Equal(t, 3, store.pruneMinUsage)
}

func TestPruneTaskHandler_Handle_defaultsMaxAgeDaysWhenNotPositive(t *testing.T) {
	store := &fakeLongTermStore{}
	h := NewPruneTaskHandler(store)
	task := newPruneTask(t, PrunePayload{MaxAgeDays: 0, MinUsage: 1})

	err := h.Handle(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 90, store.pruneMaxAgeDays)
}

func TestPruneTaskHandler_Handle_returnsStoreError(t *testing.T) {
	store := &fakeLongTermStore{pruneErr: errors.New("db unreachable")}
	h := NewPruneTaskHandler(store)
	task := newPruneTask(t, PrunePayload{MaxAgeDays: 10, MinUsage: 1})

	err := h.Handle(context.Background(), task)

	assert.Error(t, err)
}

func TestPruneTaskHandler_Handle_malformedPayloadReturnsError(t *testing.T) {
	store := &fakeLongTermStore{}
	h := NewPruneTaskHandler(store)
	task := asynq.NewTask(TaskTypePruneLongTerm, []byte("not json"))

	err := h.Handle(context.Background(), task)

	assert.Error(t, err)
}
