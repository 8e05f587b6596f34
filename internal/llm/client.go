// Package llm wraps the OpenAI-compatible chat API used as the fact
// extraction oracle, and the embeddings API used for fact search.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultCompletionModel is the model used for fact extraction calls
	DefaultCompletionModel = openai.GPT4oMini
	// DefaultMaxOutputTokens bounds a single extraction response
	DefaultMaxOutputTokens = 16384
)

var (
	// ErrOutputTooLong is returned when the model's response was truncated
	// by its completion token budget. Callers recover by splitting input.
	ErrOutputTooLong = errors.New("model output truncated by completion token limit")
	// ErrMalformedResponse is returned when the model's response body is
	// not a JSON object. Callers recover with a bounded retry.
	ErrMalformedResponse = errors.New("model returned a malformed response")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// ChatAPI defines the chat-completion surface the client depends on
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Request describes one structured-output call to the oracle.
type Request struct {
	System      string
	User        string
	Scope       string // tag identifying the calling operation, for diagnostics
	Temperature float32
	MaxTokens   int
	SchemaName  string
	Schema      json.RawMessage // JSON schema the response must satisfy
}

// Client wraps an OpenAI-compatible chat completion API
type Client struct {
	api   ChatAPI
	model string
}

// Config holds configuration for the oracle client
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new oracle client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new oracle client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultCompletionModel
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: model,
	}
}

// NewClientFromEnv creates a new oracle client using OPENAI_API_KEY
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Complete performs one structured-output chat call and returns the
// decoded response object without validating it against the schema,
// so callers can parse leniently. A response truncated by the token
// budget yields ErrOutputTooLong; an undecodable response body yields
// ErrMalformedResponse. Any other failure is a provider error.
func (c *Client) Complete(ctx context.Context, req Request) (map[string]any, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature:         req.Temperature,
		MaxCompletionTokens: maxTokens,
	}

	if len(req.Schema) > 0 {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
			},
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("oracle call failed (scope %s): %w", req.Scope, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned (scope %s)", ErrMalformedResponse, req.Scope)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, ErrOutputTooLong
	}

	var decoded any
	if err := json.Unmarshal([]byte(choice.Message.Content), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformedResponse, decoded)
	}

	return obj, nil
}
