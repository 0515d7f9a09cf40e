package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/config"
	"github.com/groundedqa/sentra/internal/critic"
	"github.com/groundedqa/sentra/internal/ctxpipeline"
	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/eventbus"
	"github.com/groundedqa/sentra/internal/planner"
	"github.com/groundedqa/sentra/internal/retrieval"
	"github.com/groundedqa/sentra/internal/telemetry"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/web"
)

// Orchestrator wires every pipeline component and implements the
// runSession public contract, both in sync and streaming mode.
type Orchestrator struct {
	llm         interfaces.LLMClient
	retrieval   *retrieval.Engine
	web         interfaces.WebSearchClient
	memory      interfaces.MemoryStore
	longTerm    interfaces.LongTermMemoryStore // optional; nil disables long-term recall/write
	ctxPipeline *ctxpipeline.Pipeline
	router      *planner.Router
	planner     *planner.Planner
	decomposer  *planner.Decomposer
	critic      *critic.Critic
	crag        *critic.CRAG
	sink        interfaces.TelemetrySink
	tracer      *telemetry.TracerProvider
	pool        *concurrency.Pool
	retryCfg    concurrency.RetryConfig
	turnBudget  time.Duration
	persisted   map[string]config.Override // session-persisted feature overrides, the config merge's middle layer
}

// Deps collects every collaborator the orchestrator needs.
type Deps struct {
	LLM         interfaces.LLMClient
	Retrieval   *retrieval.Engine
	Web         interfaces.WebSearchClient
	Memory      interfaces.MemoryStore
	LongTerm    interfaces.LongTermMemoryStore
	CtxPipeline *ctxpipeline.Pipeline
	Router      *planner.Router
	Planner     *planner.Planner
	Decomposer  *planner.Decomposer
	Critic      *critic.Critic
	CRAG        *critic.CRAG
	Sink        interfaces.TelemetrySink
	Tracer      *telemetry.TracerProvider
	Pool        *concurrency.Pool
	TurnBudget  time.Duration
}

// New builds an Orchestrator from Deps.
func New(d Deps) *Orchestrator {
	budget := d.TurnBudget
	if budget <= 0 {
		budget = 60 * time.Second
	}
	return &Orchestrator{
		llm: d.LLM, retrieval: d.Retrieval, web: d.Web, memory: d.Memory, longTerm: d.LongTerm,
		ctxPipeline: d.CtxPipeline, router: d.Router, planner: d.Planner, decomposer: d.Decomposer,
		critic: d.Critic, crag: d.CRAG, sink: d.Sink, tracer: d.Tracer, pool: d.Pool,
		retryCfg: concurrency.DefaultRetryConfig(), turnBudget: budget,
		persisted: map[string]config.Override{},
	}
}

// turnState accumulates everything steps 1-9 produce, shared by both
// the sync and streaming synthesis paths.
type turnState struct {
	sessionID string
	turn      int
	mode      types.Mode
	features  config.FeatureSet
	question  string
	history   []types.Message

	compact  *ctxpipeline.CompactResult
	salience []types.SalienceNote

	intent types.Intent
	plan   types.Plan

	decomposed     *types.DecomposedQuery
	decompDiag     *types.DecompositionDiagnostics

	references []types.Reference
	webResults []types.WebResult
	activity   []types.ActivityStep
	retrieveDiag types.RetrievalDiagnostics
	webFilterDiag *types.WebFilterDiagnostics

	cragEval *types.CRAGEvaluation

	partial bool
}

func requestOverrides(overrides map[string]types.FeatureOverrideValue) map[string]config.Override {
	out := make(map[string]config.Override, len(overrides))
	for name, v := range overrides {
		out[name] = config.Override{Bool: v.Bool, Num: v.Num}
	}
	return out
}

// RunSession is the sync entry point.
func (o *Orchestrator) RunSession(ctx context.Context, req types.Request) (*types.Response, error) {
	st, rec, span, err := o.prepare(ctx, req, nil)
	if err != nil {
		if rec != nil {
			rec.Fail(ctx, err)
		}
		return nil, err
	}
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	answer, usage, criticReports, unresolved, err := o.synthesizeAndRevise(ctx, st, rec, nil)
	if err != nil {
		rec.Fail(ctx, err)
		return nil, err
	}

	rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StagePersisting})
	o.writeMemory(ctx, st, answer)

	resp := o.buildResponse(st, answer, usage, criticReports, unresolved)
	rec.Complete(ctx, *resp)
	return resp, nil
}

func (o *Orchestrator) buildResponse(st *turnState, answer string, usage types.Usage, criticReports []types.CriticReport, unresolved bool) *types.Response {
	var route *types.RouteInfo
	if st.features.EnableIntentRouting {
		route = &types.RouteInfo{Intent: st.intent.Label, Confidence: st.intent.Confidence, Profile: st.intent.Profile}
	}
	diag := types.Diagnostics{
		Retrieval:        &st.retrieveDiag,
		WebFilter:        st.webFilterDiag,
		Decomposition:    st.decompDiag,
		Partial:          st.partial,
		CriticUnresolved: unresolved,
	}
	return &types.Response{
		Answer:      answer,
		References:  st.references,
		WebResults:  st.webResults,
		Activity:    st.activity,
		Plan:        st.plan,
		Critic:      criticReports,
		Route:       route,
		Diagnostics: diag,
		Usage:       usage,
		SessionID:   st.sessionID,
		Turn:        st.turn,
	}
}

// prepare runs configuration resolution, session derivation, context
// compaction, memory recall, intent routing, planning, decomposition,
// dispatch, and the CRAG gate. It returns the
// accumulated turnState plus the telemetry recorder and root span both
// RunSession and RunSessionStream finalize. forward, when non-nil, is
// wired into the recorder so RunSessionStream can mirror `status`
// events onto its event bus; RunSession passes nil.
func (o *Orchestrator) prepare(ctx context.Context, req types.Request, forward func(kind string, fields map[string]interface{})) (*turnState, *telemetry.Recorder, trace.Span, error) {
	// Step 1: resolve effective configuration.
	features := config.Merge(config.Defaults(), o.persisted, requestOverrides(req.FeatureOverrides))

	// Step 2: session derivation + telemetry span.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DeriveSessionID(req.Messages)
	}
	mode := req.Mode
	if mode == "" {
		mode = types.ModeSync
	}
	question := lastUserMessage(req.Messages)

	deadline := concurrency.NewDeadline(o.turnBudget)
	ctx, cancel := deadline.WithContext(ctx)
	_ = cancel // cancel fires on context teardown by the caller; deadline enforcement is what matters here

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.StartTurnSpan(ctx, sessionID, 0, string(mode))
	}
	rec := telemetry.Start(ctx, o.sink, span, sessionID, 0, string(mode), question, forward)

	st := &turnState{sessionID: sessionID, mode: mode, features: features, question: question, history: req.Messages}

	// Step 3: context pipeline.
	compact, err := o.ctxPipeline.Compact(ctx, req.Messages, st.turn)
	if err != nil {
		return st, rec, span, err
	}
	st.compact = compact
	st.salience = compact.Salience
	rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StageContext})

	// Step 4: memory recall.
	_, shortSalience, turn, memErr := o.memory.Get(ctx, sessionID)
	if memErr != nil {
		common.PipelineWarn(ctx, "orchestrator", "memory_recall_failed", map[string]interface{}{"error": memErr.Error()})
	} else {
		st.salience = append(st.salience, shortSalience...)
		st.turn = turn + 1
	}
	if features.EnableSemanticMemory && o.longTerm != nil {
		if vecs, embErr := o.llm.Embed(ctx, []string{question}); embErr == nil && len(vecs) == 1 {
			recalled, recErr := o.longTerm.Recall(ctx, sessionID, "", vecs[0], features.MinSimilarity, 5, "", nil)
			if recErr != nil {
				common.PipelineWarn(ctx, "orchestrator", "long_term_recall_failed", map[string]interface{}{"error": recErr.Error()})
			}
			for _, m := range recalled {
				st.salience = append(st.salience, types.SalienceNote{Fact: m.Text, Topic: string(m.Type), LastSeenTurn: st.turn})
			}
		}
	}

	// Step 5: intent routing.
	if features.EnableIntentRouting {
		intent, intentErr := o.router.Classify(ctx, question, st.compact.RecentMessages)
		if intentErr != nil {
			return st, rec, span, intentErr
		}
		st.intent = intent
		rec.Emit(ctx, "route", map[string]interface{}{"intent": intent.Label, "confidence": intent.Confidence})
	} else {
		st.intent = types.Intent{Label: types.IntentConversational}
	}

	// Step 6: planning + escalation.
	rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StagePlan})
	plan, planErr := o.planner.Plan(ctx, question, st.intent)
	if planErr != nil {
		return st, rec, span, planErr
	}
	st.plan = plan
	rec.Emit(ctx, "plan", map[string]interface{}{"confidence": plan.Confidence, "steps": plan.Steps, "escalated": plan.Escalated})

	// Step 7: optional decomposition.
	if features.EnableQueryDecomposition {
		assessment, assessErr := o.decomposer.Assess(ctx, question)
		if assessErr == nil && assessment.NeedsDecomposition {
			rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StageReformulating})
			dq, decompErr := o.decomposer.Decompose(ctx, question)
			if decompErr == nil {
				st.decomposed = &dq
			}
		}
	}

	// Step 8: dispatch (retrieval + web augmentation + fusion).
	if plan.HasStep(types.StepVectorSearch) {
		rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StageRetrieving})
	}
	if plan.HasStep(types.StepWebSearch) {
		rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StageWebSearching})
	}
	if err := o.dispatch(ctx, st); err != nil {
		if !errs.Recoverable(err) {
			return st, rec, span, err
		}
		st.partial = true
		common.PipelineWarn(ctx, "orchestrator", "dispatch_partial", map[string]interface{}{"error": err.Error()})
	}
	if plan.HasStep(types.StepVectorSearch) {
		rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StageReranking})
	}
	rec.Emit(ctx, "citations", map[string]interface{}{"count": len(st.references)})

	// Step 9: CRAG gate.
	if features.EnableCRAG && len(st.references) > 0 {
		eval, cragErr := o.crag.Evaluate(ctx, question, st.references)
		if cragErr == nil {
			st.cragEval = &eval
			switch eval.Action {
			case types.CRAGWebFallback:
				o.runWebFallback(ctx, st)
			case types.CRAGRefine:
				st.references = critic.Refine(st.references, question, 0.15)
			}
			rec.Emit(ctx, "status", map[string]interface{}{"stage": "crag", "confidence": eval.Confidence})
		}
	}

	return st, rec, span, nil
}

func lastUserMessage(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func (o *Orchestrator) runWebFallback(ctx context.Context, st *turnState) {
	if o.web == nil {
		return
	}
	results, err := o.web.WebSearch(ctx, st.question, 10)
	if err != nil {
		common.PipelineWarn(ctx, "orchestrator", "crag_web_fallback_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	o.scoreWeb(ctx, st, results, st.question)
	filtered := web.Filter(results)
	st.webResults = filtered.Kept
	st.webFilterDiag = &types.WebFilterDiagnostics{Kept: len(filtered.Kept), Removed: len(filtered.Removed)}
	st.references = nil
	st.activity = append(st.activity, types.ActivityStep{
		Type: types.ActivityCRAG, Description: "crag graded retrieval incorrect; falling back to web search only",
	})
}
