package interfaces

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskHandler handles one asynq-scheduled background task. Used by the
// long-term memory pruning job and any future scheduled maintenance
// task.
type TaskHandler interface {
	Handle(ctx context.Context, t *asynq.Task) error
}
