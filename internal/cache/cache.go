// Package cache provides the TTL result cache injected into the query
// pipeline. Entries are complete pipeline results; a hit always returns a
// full prior result or nothing at all.
package cache

import (
	"context"
	"time"

	"github.com/clausa-ai/clausa/internal/domain"
)

// Cache stores complete pipeline results under content-addressed keys.
// Implementations must support concurrent reads and safe concurrent
// writes; last-writer-wins is acceptable.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.PipelineResult, bool)
	Set(ctx context.Context, key string, result *domain.PipelineResult, ttl time.Duration)
}

// Noop is a Cache that never hits, for pipelines without caching.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (*domain.PipelineResult, bool) {
	return nil, false
}

func (Noop) Set(ctx context.Context, key string, result *domain.PipelineResult, ttl time.Duration) {
}
