package llm

import (
	"context"
	"encoding/json"
	"fmt"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// OllamaClient talks to a local Ollama server via its native API,
// generalized behind interfaces.LLMClient instead of a bespoke
// Chat/ChatStream pair with no shared contract with the remote
// backends.
type OllamaClient struct {
	cli        *ollamaapi.Client
	model      string
	embedModel string
	retryCfg   concurrency.RetryConfig
}

// NewOllamaClient wraps an existing ollama API client (normally built
// with ollamaapi.ClientFromEnvironment at composition-root time).
func NewOllamaClient(cli *ollamaapi.Client, model, embedModel string) *OllamaClient {
	return &OllamaClient{cli: cli, model: model, embedModel: embedModel, retryCfg: concurrency.DefaultRetryConfig()}
}

func toOllamaMessages(messages []interfaces.ChatMessage) []ollamaapi.Message {
	out := make([]ollamaapi.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollamaapi.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Complete implements interfaces.LLMClient.
func (c *OllamaClient) Complete(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (*interfaces.CompletionResult, error) {
	var result *interfaces.CompletionResult
	err := concurrency.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		streamFlag := false
		req := &ollamaapi.ChatRequest{
			Model:    c.model,
			Messages: toOllamaMessages(messages),
			Stream:   &streamFlag,
			Options:  optsToOllama(opts),
		}
		var content string
		var promptTokens, evalTokens int
		err := c.cli.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
			content = resp.Message.Content
			if resp.EvalCount > 0 {
				promptTokens = resp.PromptEvalCount
				evalTokens = resp.EvalCount
			}
			return nil
		})
		if err != nil {
			return errs.New(errs.UpstreamTransient, err)
		}
		result = &interfaces.CompletionResult{
			Text: content,
			Usage: types.Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: evalTokens,
				TotalTokens:      promptTokens + evalTokens,
			},
		}
		return nil
	})
	return result, err
}

func optsToOllama(opts interfaces.ChatOptions) map[string]interface{} {
	m := make(map[string]interface{})
	if opts.Temperature > 0 {
		m["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		m["top_p"] = opts.TopP
	}
	if opts.MaxTokens > 0 {
		m["num_predict"] = opts.MaxTokens
	}
	return m
}

// CompleteStream implements interfaces.LLMClient.
func (c *OllamaClient) CompleteStream(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (<-chan interfaces.StreamEvent, error) {
	streamFlag := true
	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   &streamFlag,
		Options:  optsToOllama(opts),
	}

	out := make(chan interfaces.StreamEvent)
	go func() {
		defer close(out)
		var promptTokens, evalTokens int
		err := c.cli.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
			if resp.Message.Content != "" {
				out <- interfaces.StreamEvent{Kind: interfaces.StreamToken, Token: resp.Message.Content}
			}
			if resp.EvalCount > 0 {
				promptTokens = resp.PromptEvalCount
				evalTokens = resp.EvalCount
			}
			if resp.Done {
				out <- interfaces.StreamEvent{Kind: interfaces.StreamUsage, Usage: types.Usage{
					PromptTokens:     promptTokens,
					CompletionTokens: evalTokens,
					TotalTokens:      promptTokens + evalTokens,
				}}
			}
			return nil
		})
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("ollama stream failed")
		}
		out <- interfaces.StreamEvent{Kind: interfaces.StreamDone}
	}()
	return out, nil
}

// CompleteStructured implements interfaces.LLMClient using Ollama's
// format-constrained generation, with the same retry-once-then-fail
// policy as the OpenAI-compatible client.
func (c *OllamaClient) CompleteStructured(ctx context.Context, messages []interfaces.ChatMessage, schema []byte, out interface{}, opts interfaces.ChatOptions) error {
	attempt := func(msgs []interfaces.ChatMessage) (string, error) {
		streamFlag := false
		req := &ollamaapi.ChatRequest{
			Model:    c.model,
			Messages: toOllamaMessages(msgs),
			Stream:   &streamFlag,
			Format:   json.RawMessage(schema),
			Options:  optsToOllama(opts),
		}
		var content string
		err := c.cli.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
			content = resp.Message.Content
			return nil
		})
		if err != nil {
			return "", errs.New(errs.UpstreamTransient, err)
		}
		return content, nil
	}

	text, err := attempt(messages)
	if err == nil {
		if uerr := json.Unmarshal([]byte(text), out); uerr == nil {
			return nil
		}
	}
	retryMessages := append(append([]interfaces.ChatMessage{}, messages...), interfaces.ChatMessage{
		Role:    "user",
		Content: "Your previous response was not valid JSON matching the required schema. Respond again with ONLY valid JSON matching the schema, no prose.",
	})
	text, err = attempt(retryMessages)
	if err != nil {
		return errs.New(errs.SchemaError, err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return errs.New(errs.SchemaError, fmt.Errorf("structured output did not parse after retry: %w", err))
	}
	return nil
}

// Embed implements interfaces.LLMClient via Ollama's embedding API.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := concurrency.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		for i, text := range texts {
			resp, err := c.cli.Embeddings(ctx, &ollamaapi.EmbeddingRequest{
				Model:  c.embedModel,
				Prompt: text,
			})
			if err != nil {
				return errs.New(errs.UpstreamTransient, err)
			}
			vec := make([]float32, len(resp.Embedding))
			for j, v := range resp.Embedding {
				vec[j] = float32(v)
			}
			out[i] = vec
		}
		return nil
	})
	return out, err
}
