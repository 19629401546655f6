package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clausa-ai/clausa/internal/cache"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/telemetry"
)

// QueryLogRecorder persists answered queries for analytics. A nil recorder
// disables logging.
type QueryLogRecorder interface {
	RecordQuery(ctx context.Context, query domain.Query, result *domain.PipelineResult) error
}

// PipelineConfig tunes the orchestrator. Threshold and MaxResults apply
// when a query carries no override of its own.
type PipelineConfig struct {
	MaxContextChars int
	CacheTTL        time.Duration
	Threshold       float32
	MaxResults      int
}

// DefaultPipelineConfig caches results for five minutes.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxContextChars: DefaultMaxContextChars,
		CacheTTL:        5 * time.Minute,
	}
}

// degradedAnswer is returned when neither retrieval nor generation could be
// completed; the caller gets a clearly marked message instead of a crash.
const degradedAnswer = "Die Anfrage kann derzeit nicht beantwortet werden, da die Wissensbasis " +
	"vorübergehend nicht erreichbar ist. Bitte versuchen Sie es in einigen Minuten erneut."

// PipelineService composes embed, retrieve, assemble and generate into the
// end-to-end query pipeline. Stages run sequentially; each external call
// carries its own timeout. The cache is the only shared mutable state and
// is injected, never global.
type PipelineService struct {
	embedder  *EmbeddingService
	retriever *RetrieverService
	answerer  *AnswerService
	cache     cache.Cache
	recorder  QueryLogRecorder
	cfg       PipelineConfig
}

// NewPipelineService wires the pipeline. A nil cache disables caching.
func NewPipelineService(
	embedder *EmbeddingService,
	retriever *RetrieverService,
	answerer *AnswerService,
	resultCache cache.Cache,
	cfg PipelineConfig,
) *PipelineService {
	if resultCache == nil {
		resultCache = cache.Noop{}
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	return &PipelineService{
		embedder:  embedder,
		retriever: retriever,
		answerer:  answerer,
		cache:     resultCache,
		cfg:       cfg,
	}
}

// WithRecorder attaches a query log recorder.
func (s *PipelineService) WithRecorder(recorder QueryLogRecorder) *PipelineService {
	s.recorder = recorder
	return s
}

// CacheKey derives the deterministic cache key from normalized question
// text plus filters. Queries carry no identity beyond their content.
func CacheKey(q domain.Query) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(q.Text), " "))
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", normalized, q.Filters.Category, q.Filters.InsurerID)
	return hex.EncodeToString(h.Sum(nil))
}

// Run executes the pipeline for one query: embed the question, retrieve
// candidates through the fallback cascade, assemble a bounded context and
// generate the answer. Timings are reported per stage even on partial
// failure; errors past the component retry budgets degrade into a marked
// answer rather than propagate.
func (s *PipelineService) Run(ctx context.Context, query domain.Query) (*domain.PipelineResult, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "PipelineService.Run", telemetry.SpanAttributes{
		Category:  query.Filters.Category,
		InsurerID: query.Filters.InsurerID,
	})
	defer span.End()

	totalStart := time.Now()
	key := CacheKey(query)
	if cached, ok := s.cache.Get(ctx, key); ok {
		cached.Cached = true
		cached.Timings.TotalMs = time.Since(totalStart).Milliseconds()
		return cached, nil
	}

	result := &domain.PipelineResult{Sources: []*domain.RetrievalResult{}}

	embedStart := time.Now()
	embedding, err := s.embedder.Embed(ctx, query.Text)
	result.Timings.EmbedMs = time.Since(embedStart).Milliseconds()
	if err != nil {
		if domain.IsValidation(err) {
			return nil, err
		}
		log.Printf("question embedding failed, degrading: %v", err)
		return s.degrade(ctx, query, result, totalStart), nil
	}

	threshold := query.Threshold
	if threshold == 0 {
		threshold = s.cfg.Threshold
	}
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}

	searchStart := time.Now()
	retrieved, strategy, err := s.retriever.Search(ctx, SearchRequest{
		QueryText:  query.Text,
		Embedding:  embedding,
		Filters:    query.Filters,
		Threshold:  threshold,
		MaxResults: maxResults,
	})
	result.Timings.SearchMs = time.Since(searchStart).Milliseconds()
	if err != nil {
		log.Printf("retrieval exhausted, degrading: %v", err)
		return s.degrade(ctx, query, result, totalStart), nil
	}
	result.Strategy = strategy
	result.Degraded = strategy == StrategyReference
	span.SetTag("strategy", strategy)

	assembled := AssembleContext(retrieved, s.cfg.MaxContextChars)
	result.Sources = assembled

	llmStart := time.Now()
	answer, err := s.answerer.Generate(ctx, query.Text, assembled)
	result.Timings.LLMMs = time.Since(llmStart).Milliseconds()
	if err != nil {
		log.Printf("generation failed after retries, degrading: %v", err)
		return s.degrade(ctx, query, result, totalStart), nil
	}

	result.Answer = answer
	result.Timings.TotalMs = time.Since(totalStart).Milliseconds()

	if !result.Degraded && s.cfg.CacheTTL > 0 {
		s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	}
	s.record(ctx, query, result)
	return result, nil
}

// degrade fills the result with the technical-difficulty answer. Degraded
// results are never cached.
func (s *PipelineService) degrade(ctx context.Context, query domain.Query, result *domain.PipelineResult, totalStart time.Time) *domain.PipelineResult {
	result.Answer = degradedAnswer
	result.Sources = []*domain.RetrievalResult{}
	result.Degraded = true
	result.Timings.TotalMs = time.Since(totalStart).Milliseconds()
	s.record(ctx, query, result)
	return result
}

func (s *PipelineService) record(ctx context.Context, query domain.Query, result *domain.PipelineResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordQuery(ctx, query, result); err != nil {
		log.Printf("failed to record query log: %v", err)
	}
}
