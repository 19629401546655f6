package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clausa-ai/clausa/internal/domain"
)

// ChunkRepository handles persistence and similarity search of document
// chunks. Similarity is cosine, computed by pgvector as 1 - (a <=> b).
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts the new
// set. Documents are re-chunked wholesale; there is no partial update.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, insurer_id, chunk_index, content, token_count, title, category, source_url, section, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id,
			c.DocumentID,
			nullableString(c.InsurerID),
			c.Index,
			c.Text,
			c.TokenCount,
			c.Metadata.Title,
			nullableString(c.Metadata.Category),
			nullableString(c.Metadata.SourceURL),
			nullableString(c.Metadata.Section),
			embedding,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

const chunkColumns = `id, document_id, insurer_id, chunk_index, content, token_count, title, category, source_url, section`

// SearchChunksSemantic runs the primary similarity query. A negative
// threshold disables the cutoff and returns the top candidates regardless
// of score.
func (r *ChunkRepository) SearchChunksSemantic(ctx context.Context, embedding []float32, filters domain.SearchFilters, threshold float32, limit int) ([]*domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	query := `
		SELECT ` + chunkColumns + `,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		  AND ($3::text IS NULL OR category = $3)
		  AND ($4::text IS NULL OR insurer_id = $4)
		ORDER BY embedding <=> $1
		LIMIT $5`

	rows, err := r.db.Query(ctx, query, vec, threshold,
		nullableString(filters.Category), nullableString(filters.InsurerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRetrievalRows(rows)
}

// SearchChunksSemanticLegacy calls the older match_document_chunks SQL
// function kept for backends still running the previous schema. Identical
// semantics to SearchChunksSemantic.
func (r *ChunkRepository) SearchChunksSemanticLegacy(ctx context.Context, embedding []float32, filters domain.SearchFilters, threshold float32, limit int) ([]*domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, similarity
		 FROM match_document_chunks($1, $2, $3, $4, $5)`,
		vec, threshold, nullableString(filters.Category), nullableString(filters.InsurerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRetrievalRows(rows)
}

// SearchChunksLexical runs a full-text search over the same corpus, used
// when both vector strategies fail. ts_rank scores are not cosine
// similarities but preserve relative order.
func (r *ChunkRepository) SearchChunksLexical(ctx context.Context, keywords string, filters domain.SearchFilters, limit int) ([]*domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT ` + chunkColumns + `,
		       ts_rank_cd(tsv, websearch_to_tsquery('german', $1)) AS similarity
		FROM document_chunks
		WHERE tsv @@ websearch_to_tsquery('german', $1)
		  AND ($2::text IS NULL OR category = $2)
		  AND ($3::text IS NULL OR insurer_id = $3)
		ORDER BY similarity DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, keywords,
		nullableString(filters.Category), nullableString(filters.InsurerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRetrievalRows(rows)
}

// ListByDocument returns a document's chunks in index order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`,
		documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk, err := scanChunkInto(rows, nil)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func scanRetrievalRows(rows pgx.Rows) ([]*domain.RetrievalResult, error) {
	results := make([]*domain.RetrievalResult, 0)
	for rows.Next() {
		var result domain.RetrievalResult
		chunk, err := scanChunkInto(rows, &result.Similarity)
		if err != nil {
			return nil, err
		}
		result.Chunk = *chunk
		results = append(results, &result)
	}
	return results, rows.Err()
}

func scanChunkInto(rows pgx.Rows, similarity *float32) (*domain.Chunk, error) {
	var c domain.Chunk
	var insurerID, category, sourceURL, section *string

	dest := []any{&c.ID, &c.DocumentID, &insurerID, &c.Index, &c.Text, &c.TokenCount,
		&c.Metadata.Title, &category, &sourceURL, &section}
	if similarity != nil {
		dest = append(dest, similarity)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	if insurerID != nil {
		c.InsurerID = *insurerID
	}
	if category != nil {
		c.Metadata.Category = *category
	}
	if sourceURL != nil {
		c.Metadata.SourceURL = *sourceURL
	}
	if section != nil {
		c.Metadata.Section = *section
	}
	return &c, nil
}
