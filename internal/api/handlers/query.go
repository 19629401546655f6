package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clausa-ai/clausa/internal/api"
	"github.com/clausa-ai/clausa/internal/domain"
)

type QueryService interface {
	Run(ctx context.Context, query domain.Query) (*domain.PipelineResult, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Question   string  `json:"question"`
	Category   string  `json:"category,omitempty"`
	InsurerID  string  `json:"insurerId,omitempty"`
	Threshold  float32 `json:"threshold,omitempty"`
	MaxResults int     `json:"maxResults,omitempty"`
}

type SourceResponse struct {
	DocumentID     string  `json:"documentId"`
	ChunkIndex     int     `json:"chunkIndex"`
	Text           string  `json:"text"`
	Title          string  `json:"title,omitempty"`
	Section        string  `json:"section,omitempty"`
	Similarity     float32 `json:"similarity"`
	BelowThreshold bool    `json:"belowThreshold,omitempty"`
}

type QueryResponse struct {
	Answer   string              `json:"answer"`
	Sources  []SourceResponse    `json:"sources"`
	Strategy string              `json:"strategy"`
	Degraded bool                `json:"degraded,omitempty"`
	Cached   bool                `json:"cached,omitempty"`
	Timings  domain.StageTimings `json:"timings"`
}

func resultToResponse(res *domain.PipelineResult) *QueryResponse {
	sources := make([]SourceResponse, 0, len(res.Sources))
	for _, src := range res.Sources {
		sources = append(sources, SourceResponse{
			DocumentID:     src.Chunk.DocumentID,
			ChunkIndex:     src.Chunk.Index,
			Text:           src.Chunk.Text,
			Title:          src.Chunk.Metadata.Title,
			Section:        src.Chunk.Metadata.Section,
			Similarity:     src.Similarity,
			BelowThreshold: src.BelowThreshold,
		})
	}

	return &QueryResponse{
		Answer:   res.Answer,
		Sources:  sources,
		Strategy: res.Strategy,
		Degraded: res.Degraded,
		Cached:   res.Cached,
		Timings:  res.Timings,
	}
}

// Ask runs the full question-answering pipeline for one request.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := domain.Query{
		Text: req.Question,
		Filters: domain.SearchFilters{
			Category:  req.Category,
			InsurerID: req.InsurerID,
		},
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
	}

	result, err := h.svc.Run(r.Context(), query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resultToResponse(result))
}
