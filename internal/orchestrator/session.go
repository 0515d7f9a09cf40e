// Package orchestrator implements the session pipeline: a sequence of
// named stages wiring every other component (config, context, memory,
// planner, retrieval, web, critic, llm, telemetry) behind the
// eventbus, each stage checked for error and logged via
// common.PipelineInfo/PipelineWarn before the next runs, generalized
// into a branching, escalating, revision-looping pipeline rather than
// a fixed linear sequence.
package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/groundedqa/sentra/internal/types"
)

// DeriveSessionID hashes the first two non-system messages when no
// sessionId is supplied, so the same opening exchange always maps to
// the same session, independent of anything that follows.
func DeriveSessionID(messages []types.Message) string {
	h := sha256.New()
	count := 0
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			continue
		}
		h.Write([]byte(string(m.Role)))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		count++
		if count == 2 {
			break
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
