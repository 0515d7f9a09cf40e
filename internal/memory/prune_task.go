package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// TaskTypePruneLongTerm is the asynq task type for scheduled long-term
// memory pruning, run as a background job rather than sync-on-write:
// pruning touches every row in the table and has no business running
// inline on a turn's write path.
const TaskTypePruneLongTerm = "memory:prune_long_term"

// PrunePayload is the asynq task payload for TaskTypePruneLongTerm.
type PrunePayload struct {
	MaxAgeDays int `json:"max_age_days"`
	MinUsage   int `json:"min_usage"`
}

// NewPruneTask builds the asynq.Task for a long-term memory prune run.
func NewPruneTask(maxAgeDays, minUsage int) (*asynq.Task, error) {
	payload, err := json.Marshal(PrunePayload{MaxAgeDays: maxAgeDays, MinUsage: minUsage})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePruneLongTerm, payload, asynq.MaxRetry(2), asynq.Timeout(5*time.Minute)), nil
}

// PruneTaskHandler implements interfaces.TaskHandler, running the
// configured LongTermMemoryStore's Prune against the task's payload.
type PruneTaskHandler struct {
	store interfaces.LongTermMemoryStore
}

// NewPruneTaskHandler builds a PruneTaskHandler bound to store.
func NewPruneTaskHandler(store interfaces.LongTermMemoryStore) *PruneTaskHandler {
	return &PruneTaskHandler{store: store}
}

// Handle implements interfaces.TaskHandler.
func (h *PruneTaskHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var p PrunePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if p.MaxAgeDays <= 0 {
		p.MaxAgeDays = 90
	}

	removed, err := h.store.Prune(ctx, p.MaxAgeDays, p.MinUsage)
	if err != nil {
		common.PipelineWarn(ctx, "memory", "prune_failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"removed":      removed,
		"max_age_days": p.MaxAgeDays,
		"min_usage":    p.MinUsage,
	}).Info("pruned long-term memory")
	return nil
}

var _ interfaces.TaskHandler = (*PruneTaskHandler)(nil)

// Scheduler wraps an asynq.Scheduler to enqueue the prune task on a
// recurring cron schedule.
type Scheduler struct {
	inner *asynq.Scheduler
}

// NewScheduler builds a Scheduler against the given asynq redis
// connection options.
func NewScheduler(redisOpt asynq.RedisConnOpt) *Scheduler {
	return &Scheduler{inner: asynq.NewScheduler(redisOpt, nil)}
}

// RegisterPrune schedules the long-term memory prune job on cronSpec
// (standard 5-field cron syntax, e.g. "0 3 * * *" for daily at 03:00).
func (s *Scheduler) RegisterPrune(cronSpec string, maxAgeDays, minUsage int) error {
	task, err := NewPruneTask(maxAgeDays, minUsage)
	if err != nil {
		return err
	}
	_, err = s.inner.Register(cronSpec, task)
	return err
}

// Run starts the scheduler loop; it blocks until asynq stops the
// scheduler (on a termination signal) or returns its start error. It
// takes no context.
func (s *Scheduler) Run() error {
	return s.inner.Run()
}
