package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisURL string `envconfig:"REDIS_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"clausa-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"eu-central-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL"`

	// Chunking
	ChunkTargetTokens  int `envconfig:"CHUNK_TARGET_TOKENS" default:"800"`
	ChunkOverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"80"`
	ChunkMinTokens     int `envconfig:"CHUNK_MIN_TOKENS" default:"100"`
	ChunkMaxTokens     int `envconfig:"CHUNK_MAX_TOKENS" default:"1000"`

	// Retrieval
	SimilarityThreshold float32 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	MaxResults          int     `envconfig:"MAX_RESULTS" default:"5"`
	MaxContextChars     int     `envconfig:"MAX_CONTEXT_CHARS" default:"6000"`

	// Embedding batches
	EmbedBatchSize  int           `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	EmbedBatchDelay time.Duration `envconfig:"EMBED_BATCH_DELAY" default:"500ms"`

	// Answer generation
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
	LLMMaxRetries  int           `envconfig:"LLM_MAX_RETRIES" default:"3"`
	LLMRetryDelay  time.Duration `envconfig:"LLM_RETRY_DELAY" default:"1s"`
	LLMTemperature float32       `envconfig:"LLM_TEMPERATURE" default:"0.2"`

	// Result cache
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Ingest worker
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CLAUSA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}
