package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausa-ai/clausa/internal/domain"
)

// DocumentRepository handles persistence of source documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, insurer_id, title, category, source_url, content, storage_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, nullableString(d.InsurerID), d.Metadata.Title, nullableString(d.Metadata.Category),
		nullableString(d.Metadata.SourceURL), d.Text, nullableString(d.StorageKey), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var insurerID, category, sourceURL, storageKey *string
	err := r.db.QueryRow(ctx,
		`SELECT id, insurer_id, title, category, source_url, content, storage_key, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &insurerID, &d.Metadata.Title, &category, &sourceURL, &d.Text, &storageKey, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if insurerID != nil {
		d.InsurerID = *insurerID
	}
	if category != nil {
		d.Metadata.Category = *category
	}
	if sourceURL != nil {
		d.Metadata.SourceURL = *sourceURL
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	return &d, nil
}

// UpdateContent replaces the document text and bumps updated_at; the
// worker re-chunks on the next ingest job.
func (r *DocumentRepository) UpdateContent(ctx context.Context, id, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET content = $1, updated_at = $2 WHERE id = $3`,
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
