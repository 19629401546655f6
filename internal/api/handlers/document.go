package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clausa-ai/clausa/internal/api"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

type IngestJobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

type ChunkLister interface {
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
}

type DocumentHandler struct {
	docs   DocumentStore
	jobs   IngestJobStore
	chunks ChunkLister
}

func NewDocumentHandler(docs DocumentStore, jobs IngestJobStore, chunks ChunkLister) *DocumentHandler {
	return &DocumentHandler{docs: docs, jobs: jobs, chunks: chunks}
}

type CreateDocumentRequest struct {
	InsurerID string                  `json:"insurerId"`
	Text      string                  `json:"text"`
	Metadata  domain.DocumentMetadata `json:"metadata"`
}

type CreateDocumentResponse struct {
	DocumentID string `json:"documentId"`
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
}

type DocumentResponse struct {
	ID         string                  `json:"id"`
	InsurerID  string                  `json:"insurerId"`
	Metadata   domain.DocumentMetadata `json:"metadata"`
	ChunkCount int                     `json:"chunkCount"`
	CreatedAt  string                  `json:"createdAt"`
}

// Create stores a document and enqueues an ingest job that chunks and
// embeds it asynchronously.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	doc := &domain.Document{
		ID:        uuid.NewString(),
		InsurerID: req.InsurerID,
		Text:      req.Text,
		Metadata:  req.Metadata,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.docs.Create(r.Context(), doc); err != nil {
		api.HandleError(w, err)
		return
	}

	job := &domain.IngestJob{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     domain.IngestJobStatusPending,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, CreateDocumentResponse{
		DocumentID: doc.ID,
		JobID:      job.ID,
		Status:     string(job.Status),
	})
}

// Get returns one document with its chunk count.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	doc, err := h.docs.GetByID(r.Context(), documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	chunks, err := h.chunks.ListByDocument(r.Context(), documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DocumentResponse{
		ID:         doc.ID,
		InsurerID:  doc.InsurerID,
		Metadata:   doc.Metadata,
		ChunkCount: len(chunks),
		CreatedAt:  doc.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Delete removes a document together with its chunks.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	if err := h.docs.Delete(r.Context(), documentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
