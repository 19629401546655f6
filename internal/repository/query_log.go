package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausa-ai/clausa/internal/domain"
)

// QueryLogRepository persists answered queries for analytics and quality
// monitoring. Implements service.QueryLogRecorder.
type QueryLogRepository struct {
	db dbtx
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: pool}
}

func (r *QueryLogRepository) RecordQuery(ctx context.Context, query domain.Query, result *domain.PipelineResult) error {
	sourceIDs := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		sourceIDs = append(sourceIDs, s.Chunk.ID)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO query_logs
			(id, question, category, insurer_id, strategy, degraded, cached, source_chunk_ids, embed_ms, search_ms, llm_ms, total_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.NewString(),
		query.Text,
		nullableString(query.Filters.Category),
		nullableString(query.Filters.InsurerID),
		result.Strategy,
		result.Degraded,
		result.Cached,
		sourceIDs,
		result.Timings.EmbedMs,
		result.Timings.SearchMs,
		result.Timings.LLMMs,
		result.Timings.TotalMs,
		time.Now().UTC(),
	)
	return err
}
