package ctxpipeline

import (
	"context"
	"encoding/json"

	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// fakeStructuredLLM answers CompleteStructured calls from a queue of
// pre-baked JSON payloads, in call order.
type fakeStructuredLLM struct {
	payloads [][]byte
	calls    int
	err      error
}

func (f *fakeStructuredLLM) Complete(context.Context, []interfaces.ChatMessage, interfaces.ChatOptions) (*interfaces.CompletionResult, error) {
	panic("not used")
}

func (f *fakeStructuredLLM) CompleteStream(context.Context, []interfaces.ChatMessage, interfaces.ChatOptions) (<-chan interfaces.StreamEvent, error) {
	panic("not used")
}

func (f *fakeStructuredLLM) CompleteStructured(_ context.Context, _ []interfaces.ChatMessage, _ []byte, out interface{}, _ interfaces.ChatOptions) error {
	if f.err != nil {
		return f.err
	}
	payload := f.payloads[f.calls]
	f.calls++
	return json.Unmarshal(payload, out)
}

func (f *fakeStructuredLLM) Embed(context.Context, []string) ([][]float32, error) {
	panic("not used")
}
