package critic

import (
	"context"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
)

// Synthesizer regenerates an answer given revision notes appended to
// the prior attempt's context; the orchestrator supplies the closure
// since it owns the context pack and the LLM call.
type Synthesizer func(ctx context.Context, revisionNotes []string) (string, error)

// Loop runs the bounded critic revision loop: it grades synth's first
// output, and if the critic returns revise and budget remains,
// regenerates with accumulated revision notes. It
// terminates on accept or after maxRevisions regenerations, whichever
// comes first; a non-accepted final answer is still returned, with
// criticUnresolved signaling the orchestrator should flag it.
func Loop(ctx context.Context, critic *Critic, question string, references []types.Reference, webContext []types.WebResult, maxRevisions int, synth Synthesizer, firstAnswer string) (answer string, reports []types.CriticReport, criticUnresolved bool, err error) {
	answer = firstAnswer
	var notes []string

	for attempt := 0; attempt <= maxRevisions; attempt++ {
		report, gradeErr := critic.Grade(ctx, question, answer, references, webContext)
		if gradeErr != nil {
			return answer, reports, true, gradeErr
		}
		reports = append(reports, report)

		if report.Action == types.CriticAccept {
			return answer, reports, false, nil
		}
		if attempt == maxRevisions {
			common.PipelineWarn(ctx, "critic", "revision_budget_exhausted", map[string]interface{}{
				"attempts": attempt + 1, "issues": report.Issues,
			})
			return answer, reports, true, nil
		}

		notes = append(notes, report.Issues...)
		revised, synthErr := synth(ctx, notes)
		if synthErr != nil {
			return answer, reports, true, synthErr
		}
		answer = revised
	}
	return answer, reports, true, nil
}
