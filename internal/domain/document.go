package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentMetadata carries the known descriptive fields of a source
// document plus an open extension map for anything the ingest source adds.
type DocumentMetadata struct {
	Title     string            `json:"title"`
	Category  string            `json:"category"`
	SourceURL string            `json:"sourceUrl"`
	Page      int               `json:"page,omitempty"`
	Section   string            `json:"section,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Document is a source text to be chunked and indexed.
type Document struct {
	ID         string
	InsurerID  string
	Text       string
	Metadata   DocumentMetadata
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is a contiguous span of a source document prepared for embedding.
// Index values within a document are 0-based, strictly increasing and
// gap-free. The embedding is attached after chunking, not by the chunker.
type Chunk struct {
	ID         string           `json:"id,omitempty"`
	DocumentID string           `json:"documentId"`
	InsurerID  string           `json:"insurerId"`
	Text       string           `json:"chunkText"`
	Index      int              `json:"chunkIndex"`
	TokenCount int              `json:"tokenCount"`
	Embedding  []float32        `json:"-"`
	Metadata   DocumentMetadata `json:"metadata"`
	CreatedAt  time.Time        `json:"-"`
}

// SourceLabel returns the label used to tag this chunk when it is cited
// as context, preferring section references over titles.
func (c *Chunk) SourceLabel() string {
	if c.Metadata.Section != "" {
		if c.Metadata.Title != "" {
			return fmt.Sprintf("%s, %s", c.Metadata.Title, c.Metadata.Section)
		}
		return c.Metadata.Section
	}
	if c.Metadata.Title != "" {
		return c.Metadata.Title
	}
	return fmt.Sprintf("Dokument %s, Abschnitt %d", c.DocumentID, c.Index)
}

// ValidateDocument checks a document before it enters the ingest pipeline.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return NewDomainError(ErrCodeValidation, "document ID is required")
	}
	if strings.TrimSpace(d.Text) == "" && d.StorageKey == "" {
		return ErrEmptyDocument
	}
	return nil
}

// IngestJobStatus represents the status of a document ingest job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob represents an async chunk-and-embed job for one document.
type IngestJob struct {
	ID          string
	DocumentID  string
	Status      IngestJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}
	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "ingest job ID is required")
	}
	if j.DocumentID == "" {
		return NewDomainError(ErrCodeValidation, "ingest job document ID is required")
	}
	if !isValidIngestJobStatus(j.Status) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("ingest job status is invalid: %s", j.Status))
	}
	if j.Retries < 0 {
		return NewDomainError(ErrCodeValidation, "ingest job retries cannot be negative")
	}
	return nil
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
