// Package llm is the LLM client abstraction: an interfaces.LLMClient
// per backend plus the structured-output and retry middleware every
// backend shares, unified behind one interface instead of a
// per-backend struct with no common contract.
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// OpenAICompatClient talks to any OpenAI-wire-compatible chat+embedding
// endpoint (hosted OpenAI, DeepSeek, a generic gateway). It's the one
// client shape nearly every provider in the registry resolves to.
type OpenAICompatClient struct {
	cli        *openai.Client
	model      string
	embedModel string
	retryCfg   concurrency.RetryConfig
}

// NewOpenAICompatClient builds a client against baseURL using apiKey,
// defaulting to the hosted OpenAI endpoint when baseURL is empty.
func NewOpenAICompatClient(baseURL, apiKey, model, embedModel string) *OpenAICompatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatClient{
		cli:        openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
		retryCfg:   concurrency.DefaultRetryConfig(),
	}
}

// NewOpenAICompatClientWithBearer builds a client the same way as
// NewOpenAICompatClient, but authenticates every outbound request with a
// JWT minted by signer instead of a static API key, for gateways that
// front an OpenAI-compatible endpoint with bearer-token auth.
func NewOpenAICompatClientWithBearer(baseURL, model, embedModel string, signer *BearerSigner) *OpenAICompatClient {
	cfg := openai.DefaultConfig("")
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Transport: &bearerTransport{signer: signer, base: http.DefaultTransport}}
	return &OpenAICompatClient{
		cli:        openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
		retryCfg:   concurrency.DefaultRetryConfig(),
	}
}

// bearerTransport injects a freshly-minted bearer token into every
// request's Authorization header, overriding the static placeholder the
// openai client would otherwise send.
type bearerTransport struct {
	signer *BearerSigner
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.signer.Token()
	if err != nil {
		return nil, fmt.Errorf("mint bearer token: %w", err)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}

func toOpenAIMessages(messages []interfaces.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		})
	}
	return out
}

func classifyOpenAIErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return errs.RateLimited(err, 1)
		case 408:
			return errs.New(errs.UpstreamTimeout, err)
		case 500, 502, 503, 504:
			return errs.New(errs.UpstreamTransient, err)
		case 400, 422:
			return errs.New(errs.UpstreamInvalidReq, err)
		case 401, 403:
			return errs.New(errs.AuthError, err)
		}
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return errs.New(errs.DeadlineExceeded, err)
	}
	return errs.New(errs.UpstreamTransient, err)
}

// Complete implements interfaces.LLMClient.
func (c *OpenAICompatClient) Complete(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (*interfaces.CompletionResult, error) {
	var result *interfaces.CompletionResult
	err := concurrency.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		req := openai.ChatCompletionRequest{
			Model:            c.model,
			Messages:         toOpenAIMessages(messages),
			Temperature:      float32(opts.Temperature),
			TopP:             float32(opts.TopP),
			MaxTokens:        opts.MaxTokens,
			FrequencyPenalty: float32(opts.FrequencyPenalty),
			PresencePenalty:  float32(opts.PresencePenalty),
		}
		if opts.Seed != 0 {
			seed := opts.Seed
			req.Seed = &seed
		}
		resp, err := c.cli.CreateChatCompletion(ctx, req)
		if err != nil {
			return classifyOpenAIErr(err)
		}
		if len(resp.Choices) == 0 {
			return errs.New(errs.InternalInvariant, fmt.Errorf("no choices returned"))
		}
		result = &interfaces.CompletionResult{
			Text:       resp.Choices[0].Message.Content,
			ResponseID: resp.ID,
			Usage: types.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	return result, err
}

// CompleteStream implements interfaces.LLMClient.
func (c *OpenAICompatClient) CompleteStream(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (<-chan interfaces.StreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	stream, err := c.cli.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}

	out := make(chan interfaces.StreamEvent)
	go func() {
		defer close(out)
		defer stream.Close()
		var usage types.Usage
		for {
			resp, err := stream.Recv()
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					out <- interfaces.StreamEvent{Kind: interfaces.StreamUsage, Usage: usage}
					out <- interfaces.StreamEvent{Kind: interfaces.StreamDone}
					return
				}
				logger.FromContext(ctx).WithError(err).Warn("stream recv failed")
				out <- interfaces.StreamEvent{Kind: interfaces.StreamDone}
				return
			}
			if resp.Usage != nil {
				usage = types.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				out <- interfaces.StreamEvent{Kind: interfaces.StreamToken, Token: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}

// CompleteStructured implements interfaces.LLMClient: one attempt with
// the schema as a response_format, a single retry with a stricter
// reminder appended on parse failure, else errs.SchemaError.
func (c *OpenAICompatClient) CompleteStructured(ctx context.Context, messages []interfaces.ChatMessage, schema []byte, out interface{}, opts interfaces.ChatOptions) error {
	attempt := func(msgs []interfaces.ChatMessage) (string, error) {
		var schemaMap map[string]interface{}
		if err := json.Unmarshal(schema, &schemaMap); err != nil {
			return "", errs.New(errs.InternalInvariant, err)
		}
		req := openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    toOpenAIMessages(msgs),
			Temperature: float32(opts.Temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   "structured_output",
					Schema: json.RawMessage(schema),
					Strict: true,
				},
			},
		}
		resp, err := c.cli.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyOpenAIErr(err)
		}
		if len(resp.Choices) == 0 {
			return "", errs.New(errs.SchemaError, fmt.Errorf("no choices returned"))
		}
		return resp.Choices[0].Message.Content, nil
	}

	text, err := attempt(messages)
	if err == nil {
		if err := json.Unmarshal([]byte(text), out); err == nil {
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

// Embed implements interfaces.LLMClient.
func (c *OpenAICompatClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := concurrency.Retry(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.cli.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			return classifyOpenAIErr(err)
		}
		out = make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			out[d.Index] = d.Embedding
		}
		return nil
	})
	return out, err
}
