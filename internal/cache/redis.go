package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clausa-ai/clausa/internal/domain"
)

const redisKeyPrefix = "clausa:result:"

// Redis backs the result cache with a shared Redis instance so multiple
// pipeline replicas see the same entries. Cache errors are logged and
// treated as misses; the pipeline never fails because the cache is down.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed cache from a URL (redis:// or rediss://)
// or a plain host:port address.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	var client *redis.Client
	opt, err := redis.ParseURL(url)
	if err == nil {
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: url})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*domain.PipelineResult, bool) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis cache get failed: %v", err)
		}
		return nil, false
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Printf("redis cache entry corrupt, dropping: %v", err)
		r.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return &result, true
}

func (r *Redis) Set(ctx context.Context, key string, result *domain.PipelineResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil {
		log.Printf("redis cache set failed: %v", err)
	}
}

// Close releases the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
