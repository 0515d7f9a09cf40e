package orchestrator

import (
	"context"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/eventbus"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// synthesizeStream runs one streaming completion over the context pack,
// forwarding each token to tokenSink as it arrives, and returns the
// concatenated text plus final usage once the stream closes.
func (o *Orchestrator) synthesizeStream(ctx context.Context, st *turnState, revisionNotes []string, tokenSink func(string)) (string, types.Usage, error) {
	if len(st.references) == 0 && len(st.webResults) == 0 {
		tokenSink(insufficientEvidenceAnswer)
		return insufficientEvidenceAnswer, types.Usage{}, nil
	}

	msgs := o.buildContextPack(st, revisionNotes)
	stream, err := o.llm.CompleteStream(ctx, msgs, interfaces.ChatOptions{
		Temperature: 0.2,
		MaxTokens:   st.intent.Profile.MaxTokens,
		Metadata:    map[string]string{"session_id": st.sessionID, "intent": string(st.intent.Label)},
	})
	if err != nil {
		return "", types.Usage{}, err
	}

	var text string
	var usage types.Usage
	for ev := range stream {
		switch ev.Kind {
		case interfaces.StreamToken:
			text += ev.Token
			tokenSink(ev.Token)
		case interfaces.StreamUsage:
			usage = ev.Usage
		}
	}
	return text, usage, nil
}

// RunSessionStream is the streaming entry point: it shares prepare()
// with RunSession, then publishes the ordered event sequence onto a
// fresh per-turn Bus. The caller consumes bus.Events() until the
// channel closes (which always follows a `done` event).
func (o *Orchestrator) RunSessionStream(ctx context.Context, req types.Request) (*eventbus.Bus, error) {
	bus := eventbus.New(32)

	go func() {
		defer bus.Close()

		forward := func(kind string, fields map[string]interface{}) {
			if kind != "status" {
				return
			}
			stage, ok := fields["stage"].(types.StageLabel)
			if !ok {
				return
			}
			_ = bus.Publish(ctx, types.Event{Kind: types.EventStatus, Stage: stage})
		}

		st, rec, span, err := o.prepare(ctx, req, forward)
		if err != nil {
			if rec != nil {
				rec.Fail(ctx, err)
			}
			publishError(ctx, bus, err)
			_ = bus.Publish(ctx, types.Event{Kind: types.EventDone})
			return
		}
		defer func() {
			if span != nil {
				span.End()
			}
		}()

		_ = bus.Publish(ctx, types.Event{Kind: types.EventPlan, Plan: &st.plan})
		if st.features.EnableIntentRouting {
			_ = bus.Publish(ctx, types.Event{Kind: types.EventRoute, Route: &types.RouteInfo{
				Intent: st.intent.Label, Confidence: st.intent.Confidence, Profile: st.intent.Profile,
			}})
		}
		_ = bus.Publish(ctx, types.Event{Kind: types.EventContext, Context: &types.ContextEvent{
			Summary: st.compact.Summary, Salience: st.salience, HistoryPreview: st.compact.RecentMessages,
		}})
		for _, step := range st.activity {
			stepCopy := step
			_ = bus.Publish(ctx, types.Event{Kind: types.EventActivity, Activity: &stepCopy})
		}
		_ = bus.Publish(ctx, types.Event{Kind: types.EventCitations, References: st.references})
		if len(st.webResults) > 0 {
			_ = bus.Publish(ctx, types.Event{Kind: types.EventWebResults, WebResults: st.webResults})
		}

		tokenSink := func(tok string) {
			_ = bus.Publish(ctx, types.Event{Kind: types.EventToken, Token: tok})
		}

		answer, usage, criticReports, unresolved, err := o.synthesizeAndRevise(ctx, st, rec, tokenSink)
		if err != nil {
			rec.Fail(ctx, err)
			publishError(ctx, bus, err)
			_ = bus.Publish(ctx, types.Event{Kind: types.EventDone})
			return
		}

		for _, report := range criticReports {
			reportCopy := report
			_ = bus.Publish(ctx, types.Event{Kind: types.EventCritique, Critique: &reportCopy})
		}

		rec.Emit(ctx, "status", map[string]interface{}{"stage": types.StagePersisting})
		o.writeMemory(ctx, st, answer)

		resp := o.buildResponse(st, answer, usage, criticReports, unresolved)
		rec.Complete(ctx, *resp)

		if aggregates, aggErr := o.sinkAggregates(ctx); aggErr == nil {
			_ = bus.Publish(ctx, types.Event{Kind: types.EventTelemetry, Telemetry: aggregates})
		}
		_ = bus.Publish(ctx, types.Event{Kind: types.EventUsage, Usage: &usage})
		_ = bus.Publish(ctx, types.Event{Kind: types.EventComplete, Answer: answer})
		_ = bus.Publish(ctx, types.Event{Kind: types.EventDone})
	}()

	return bus, nil
}

func (o *Orchestrator) sinkAggregates(ctx context.Context) (map[string]int64, error) {
	if o.sink == nil {
		return nil, nil
	}
	return o.sink.Aggregates(ctx)
}

// publishError sends an `error` event carrying the classified kind
// and retryability for any failure of a streaming turn, cancellation
// mid-stream included. Its callers publish `done` after it, never
// `complete`.
func publishError(ctx context.Context, bus *eventbus.Bus, err error) {
	kind := errs.KindOf(err)
	_ = bus.Publish(ctx, types.Event{
		Kind: types.EventError, ErrorKind: string(kind), ErrorMessage: err.Error(), ErrorRetryable: errs.Retryable(err),
	})
}
