// Package common holds small cross-cutting helpers shared by every pipeline
// stage (logging shape, mostly) so stage code doesn't each re-derive the
// same field layout.
package common

import (
	"context"

	"github.com/groundedqa/sentra/internal/logger"
)

// PipelineInfo logs a structured info-level entry for a named pipeline stage.
func PipelineInfo(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.FromContext(ctx).WithFields(toLogrusFields(stage, action, fields)).Info(action)
}

// PipelineWarn logs a structured warning-level entry for a named pipeline stage.
func PipelineWarn(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.FromContext(ctx).WithFields(toLogrusFields(stage, action, fields)).Warn(action)
}

// PipelineError logs a structured error-level entry for a named pipeline stage.
func PipelineError(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.FromContext(ctx).WithFields(toLogrusFields(stage, action, fields)).Error(action)
}

func toLogrusFields(stage, action string, fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+2)
	out["stage"] = stage
	out["action"] = action
	for k, v := range fields {
		out[k] = v
	}
	return out
}
