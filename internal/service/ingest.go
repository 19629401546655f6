package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/telemetry"
)

// IngestDocumentRepository defines the repository interface for loading
// documents during ingestion.
type IngestDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// IngestChunkRepository defines the repository interface for persisting
// chunk sets. ReplaceChunks discards and replaces all chunks of a document
// so re-chunking on update never leaves stale fragments behind.
type IngestChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.Chunk) error
}

// DocumentFetcher loads raw document text from object storage when the
// document row only carries a storage key.
type DocumentFetcher interface {
	FetchText(ctx context.Context, key string) (string, error)
}

// IngestService chunks a document, embeds every chunk in rate-limited
// batches and replaces the persisted chunk set. Called by the background
// worker, once per ingest job.
type IngestService struct {
	docs     IngestDocumentRepository
	chunks   IngestChunkRepository
	embedder *EmbeddingService
	fetcher  DocumentFetcher
	opts     ChunkOptions
}

// NewIngestService creates an IngestService. fetcher may be nil when all
// documents carry inline text.
func NewIngestService(
	docs IngestDocumentRepository,
	chunks IngestChunkRepository,
	embedder *EmbeddingService,
	fetcher DocumentFetcher,
	opts ChunkOptions,
) *IngestService {
	if opts.TargetTokens <= 0 {
		opts = DefaultChunkOptions()
	}
	return &IngestService{
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		fetcher:  fetcher,
		opts:     opts,
	}
}

// IngestDocument runs the full chunk-and-embed pass for one document.
func (s *IngestService) IngestDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(doc.Text) == "" && doc.StorageKey != "" {
		if s.fetcher == nil {
			return fmt.Errorf("document %s has no inline text and no fetcher is configured", documentID)
		}
		text, err := s.fetcher.FetchText(ctx, doc.StorageKey)
		if err != nil {
			return fmt.Errorf("failed to fetch document %s from storage: %w", documentID, err)
		}
		doc.Text = text
	}

	chunks, err := ChunkDocument(doc, s.opts)
	if err != nil {
		return fmt.Errorf("failed to chunk document %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		log.Printf("document %s produced no chunks, clearing stored set", documentID)
		return s.chunks.ReplaceChunks(ctx, documentID, nil)
	}

	stats := ValidateChunks(chunks, s.opts)
	for _, warning := range stats.Warnings {
		log.Printf("document %s: %s", documentID, warning)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		err = fmt.Errorf("failed to embed chunks for document %s: %w", documentID, err)
		span.SetError(err)
		return err
	}

	now := time.Now().UTC()
	for i, c := range chunks {
		c.Embedding = vectors[i]
		c.CreatedAt = now
	}

	if err := s.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("failed to store chunks for document %s: %w", documentID, err)
	}

	log.Printf("document %s ingested: %d chunks, avg %.0f tokens", documentID, stats.Count, stats.AvgTokens)
	return nil
}
