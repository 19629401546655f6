package service

import (
	"context"
	"log"
	"sort"

	"github.com/clausa-ai/clausa/internal/domain"
)

const (
	// DefaultSimilarityThreshold filters semantic candidates unless the
	// query overrides it.
	DefaultSimilarityThreshold = 0.5
	// DefaultMaxResults caps returned candidates.
	DefaultMaxResults = 5
)

// Strategy names, reported on PipelineResult for observability.
const (
	StrategyVector       = "vector"
	StrategyVectorLegacy = "vector-legacy"
	StrategyText         = "text"
	StrategyReference    = "reference"
)

// ChunkSearchRepository defines the store-side search operations the
// retriever cascades over. A transport/RPC failure is an error; zero rows
// is a valid result.
type ChunkSearchRepository interface {
	// SearchChunksSemantic runs the primary similarity search. Threshold
	// and limit are applied as store-level cutoffs.
	SearchChunksSemantic(ctx context.Context, embedding []float32, filters domain.SearchFilters, threshold float32, limit int) ([]*domain.RetrievalResult, error)

	// SearchChunksSemanticLegacy runs the alternately-named similarity
	// procedure with identical semantics, tolerated for backend API drift.
	SearchChunksSemanticLegacy(ctx context.Context, embedding []float32, filters domain.SearchFilters, threshold float32, limit int) ([]*domain.RetrievalResult, error)

	// SearchChunksLexical runs a keyword/full-text search over the same corpus.
	SearchChunksLexical(ctx context.Context, keywords string, filters domain.SearchFilters, limit int) ([]*domain.RetrievalResult, error)
}

// SearchRequest is the uniform input every retrieval strategy accepts.
type SearchRequest struct {
	QueryText  string
	Embedding  []float32
	Filters    domain.SearchFilters
	Threshold  float32
	MaxResults int
}

// retrievalStrategy is one step of the fallback cascade. Adding, removing
// or reordering strategies is a data change to the strategies slice, not a
// control-flow rewrite.
type retrievalStrategy struct {
	name string
	run  func(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, error)
}

// RetrieverService searches the chunk corpus through an ordered cascade of
// strategies, degrading from semantic search over a legacy procedure and
// full-text search down to a locally-held reference set.
type RetrieverService struct {
	repo       ChunkSearchRepository
	reference  *ReferenceSet
	strategies []retrievalStrategy
}

// NewRetrieverService creates a RetrieverService with the default cascade.
func NewRetrieverService(repo ChunkSearchRepository, reference *ReferenceSet) *RetrieverService {
	s := &RetrieverService{
		repo:      repo,
		reference: reference,
	}
	s.strategies = []retrievalStrategy{
		{name: StrategyVector, run: s.searchVector},
		{name: StrategyVectorLegacy, run: s.searchVectorLegacy},
		{name: StrategyText, run: s.searchText},
		{name: StrategyReference, run: s.searchReference},
	}
	return s
}

// Search tries each strategy in order until one succeeds, returning its
// results and the strategy name. Only when every strategy errors does it
// return ErrRetrievalExhausted.
func (s *RetrieverService) Search(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, string, error) {
	if req.Threshold <= 0 {
		req.Threshold = DefaultSimilarityThreshold
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}

	var lastErr error
	for _, strategy := range s.strategies {
		results, err := strategy.run(ctx, req)
		if err != nil {
			log.Printf("retrieval strategy %s failed: %v", strategy.name, err)
			lastErr = err
			continue
		}
		sortResults(results)
		if len(results) > req.MaxResults {
			results = results[:req.MaxResults]
		}
		return results, strategy.name, nil
	}

	return nil, "", domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalExhausted, "all retrieval strategies failed", lastErr)
}

func (s *RetrieverService) searchVector(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, error) {
	return s.searchSemantic(ctx, req, s.repo.SearchChunksSemantic)
}

func (s *RetrieverService) searchVectorLegacy(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, error) {
	return s.searchSemantic(ctx, req, s.repo.SearchChunksSemanticLegacy)
}

type semanticSearchFn func(ctx context.Context, embedding []float32, filters domain.SearchFilters, threshold float32, limit int) ([]*domain.RetrievalResult, error)

// searchSemantic applies the threshold non-starvation policy: when the
// similarity cutoff would eliminate every candidate, return the top
// unfiltered candidates marked BelowThreshold instead of an empty array.
func (s *RetrieverService) searchSemantic(ctx context.Context, req SearchRequest, search semanticSearchFn) ([]*domain.RetrievalResult, error) {
	results, err := search(ctx, req.Embedding, req.Filters, req.Threshold, req.MaxResults)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	unfiltered, err := search(ctx, req.Embedding, req.Filters, -1, req.MaxResults)
	if err != nil {
		return nil, err
	}
	for _, r := range unfiltered {
		r.BelowThreshold = true
	}
	return unfiltered, nil
}

func (s *RetrieverService) searchText(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, error) {
	keywords := keywordQuery(req.QueryText)
	if keywords == "" {
		return []*domain.RetrievalResult{}, nil
	}
	return s.repo.SearchChunksLexical(ctx, keywords, req.Filters, req.MaxResults)
}

func (s *RetrieverService) searchReference(ctx context.Context, req SearchRequest) ([]*domain.RetrievalResult, error) {
	if s.reference == nil || s.reference.Size() == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInternalError, "reference set unavailable")
	}
	return s.reference.Rank(req.QueryText, req.MaxResults), nil
}

// sortResults orders by descending similarity, stable on ties so original
// index order is preserved.
func sortResults(results []*domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}
