package domain

import "strings"

// MaxQuestionLength bounds accepted question text.
const MaxQuestionLength = 2000

// SearchFilters narrows retrieval to a category and/or insurer.
type SearchFilters struct {
	Category  string `json:"category,omitempty"`
	InsurerID string `json:"insurerId,omitempty"`
}

// Query is the stateless input to the pipeline. Threshold and MaxResults
// override the configured defaults when > 0.
type Query struct {
	Text       string        `json:"text"`
	Filters    SearchFilters `json:"filters"`
	Threshold  float32       `json:"threshold,omitempty"`
	MaxResults int           `json:"maxResults,omitempty"`
}

// ValidateQuery checks the question text bounds.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return ErrEmptyQuestion
	}
	if len([]rune(text)) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	return nil
}

// RetrievalResult pairs a chunk with its similarity to the query vector.
// BelowThreshold marks candidates returned by the unfiltered fallback when
// nothing cleared the nominal similarity cutoff; the caller is responsible
// for conveying the reduced confidence.
type RetrievalResult struct {
	Chunk          Chunk   `json:"chunk"`
	Similarity     float32 `json:"similarity"`
	BelowThreshold bool    `json:"belowThreshold,omitempty"`
}

// StageTimings reports per-stage durations in milliseconds.
type StageTimings struct {
	EmbedMs  int64 `json:"embedMs"`
	SearchMs int64 `json:"searchMs"`
	LLMMs    int64 `json:"llmMs"`
	TotalMs  int64 `json:"totalMs"`
}

// PipelineResult is the answer to one query. Strategy names the retrieval
// strategy that produced the sources; Degraded marks answers that are not
// backed by real semantic search or a live model.
type PipelineResult struct {
	Answer   string             `json:"answer"`
	Sources  []*RetrievalResult `json:"sources"`
	Strategy string             `json:"strategy"`
	Degraded bool               `json:"degraded,omitempty"`
	Cached   bool               `json:"cached,omitempty"`
	Timings  StageTimings       `json:"timings"`
}

// GenerationOptions tune one language-model call.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}
