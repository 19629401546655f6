package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/clausa-ai/clausa/internal/domain"
)

// Memory is an in-process TTL cache used when Redis is not configured.
// Expired entries are dropped lazily on read and during Set sweeps.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns a deep copy of the cached result, so callers can mutate the
// returned value without corrupting the cache.
func (m *Memory) Get(ctx context.Context, key string) (*domain.PipelineResult, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(entry.payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a complete result with the given TTL.
func (m *Memory) Set(ctx context.Context, key string, result *domain.PipelineResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{payload: payload, expiresAt: now.Add(ttl)}
}
