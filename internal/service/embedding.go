package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/clausa-ai/clausa/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Degraded() bool
}

const (
	// DefaultEmbedBatchSize bounds the number of texts per upstream call.
	DefaultEmbedBatchSize = 16
	// DefaultInterBatchDelay spaces batches out as rate-limit courtesy.
	DefaultInterBatchDelay = 500 * time.Millisecond
	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 15 * time.Second
)

// EmbeddingService wraps the embedding client with per-call timeouts and
// deliberately serialized, rate-limited batch processing.
type EmbeddingService struct {
	client    EmbeddingClient
	batchSize int
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewEmbeddingService creates an EmbeddingService. batchSize and delay
// fall back to defaults when non-positive.
func NewEmbeddingService(client EmbeddingClient, batchSize int, delay time.Duration) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if delay <= 0 {
		delay = DefaultInterBatchDelay
	}
	return &EmbeddingService{
		client:    client,
		batchSize: batchSize,
		timeout:   DefaultEmbedTimeout,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Degraded reports whether embeddings come from the deterministic fallback
// instead of a live API.
func (s *EmbeddingService) Degraded() bool {
	return s.client.Degraded()
}

// Embed embeds a single text under the configured timeout.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyEmbedText
	}
	return CallWithTimeout(ctx, s.timeout, func(ctx context.Context) ([]float32, error) {
		return s.client.GenerateEmbedding(ctx, text)
	})
}

// EmbedBatch embeds texts in fixed-size batches executed sequentially with
// an inter-batch delay, returning one vector per input in input order. A
// failure in any batch aborts the whole call; callers never receive
// misaligned text/vector pairs.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := CallWithTimeout(ctx, s.timeout, func(ctx context.Context) ([][]float32, error) {
			return s.client.GenerateEmbeddings(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end-1, err)
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}
