package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausa-ai/clausa/internal/domain"
)

// IngestJobRepository handles persistence of document ingest jobs.
type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, document_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DocumentID, job.Status, job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

// GetPendingJobs retrieves and claims pending ingest jobs, marking them
// processing so concurrent workers never pick the same job twice.
func (r *IngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE ingest_jobs SET status = $1
		 WHERE id IN (
			SELECT id FROM ingest_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 10
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, document_id, status, retries, error, created_at, processed_at`,
		domain.IngestJobStatusProcessing, domain.IngestJobStatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		var errMsg *string
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			job.Error = *errMsg
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus updates a job's status, error message and processed time.
func (r *IngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errMsg, now, jobID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

// IncrementRetries increments the retry count for a job.
func (r *IngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}
