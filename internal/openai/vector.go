package openai

import (
	"math"

	"github.com/clausa-ai/clausa/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|) in [-1, 1]. Vectors of
// different length are a programming error and raise ErrDimensionMismatch;
// a zero-magnitude vector yields 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against float drift outside the mathematical range.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return float32(sim), nil
}
