package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/clausa-ai/clausa/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the model used for answer generation
	DefaultChatModel = openai.GPT4oMini
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when a completion is requested in fallback mode
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set, completions unavailable")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionAPI defines the interface for chat completion generation
type CompletionAPI interface {
	CreateCompletion(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error)
}

// Client wraps the OpenAI API for embeddings and completions. Without an
// API key it runs in fallback mode: embeddings are derived deterministically
// from the text (see fallback.go) and completions return ErrNoAPIKey.
// Fallback mode is a first-class operating mode, not an error path.
type Client struct {
	embeddings  EmbeddingAPI
	completions CompletionAPI
	dimensions  int
	degraded    bool
}

type openAIAdapter struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	chatModel string
	breaker   *gobreaker.CircuitBreaker
}

func newOpenAIAdapter(apiKey string, model openai.EmbeddingModel, chatModel string) *openAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OpenAIChat",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
	return &openAIAdapter{
		client:    openai.NewClient(apiKey),
		model:     model,
		chatModel: chatModel,
		breaker:   breaker,
	}
}

// CreateEmbeddings calls the OpenAI API, one vector per input in input order.
func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// CreateCompletion calls the OpenAI chat API behind a circuit breaker.
func (a *openAIAdapter) CreateCompletion(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.chatModel,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no completion choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", domain.NewTransientError("completion circuit open", err)
		}
		return "", err
	}
	return result.(string), nil
}

// classifyError maps API failures onto the domain taxonomy so retry policies
// can distinguish transient from permanent failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransientError("openai request deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTransientError("openai connection timeout", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return domain.NewTransientError(fmt.Sprintf("openai returned %d", apiErr.HTTPStatusCode), err)
		}
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.NewTransientError("openai connection error", err)
	}
	return err
}

// Config holds client configuration.
type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
// An empty API key yields a client in fallback mode.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	if cfg.APIKey == "" {
		return &Client{
			dimensions: dimensions,
			degraded:   true,
		}
	}
	adapter := newOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel)
	return &Client{
		embeddings:  adapter,
		completions: adapter,
		dimensions:  dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using the OPENAI_API_KEY
// environment variable, degraded when unset.
func NewClientFromEnv() *Client {
	return NewClient(os.Getenv("OPENAI_API_KEY"))
}

// Degraded reports whether the client runs without a live API and serves
// deterministic fallback embeddings instead.
func (c *Client) Degraded() bool {
	return c.degraded
}

// Dimensions returns the embedding dimension this client produces.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings generates one embedding per input, in input order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	if c.degraded {
		vectors := make([][]float32, len(texts))
		for i, t := range texts {
			vectors[i] = FallbackVector(t, c.dimensions)
		}
		return vectors, nil
	}

	vectors, err := c.embeddings.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for _, v := range vectors {
		if len(v) != c.dimensions {
			return nil, ErrWrongDimensions
		}
	}
	return vectors, nil
}

// GenerateCompletion generates an answer for the given prompt.
func (c *Client) GenerateCompletion(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}
	if c.degraded {
		return "", ErrNoAPIKey
	}
	return c.completions.CreateCompletion(ctx, prompt, opts)
}
