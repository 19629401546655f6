package service

import (
	"unicode/utf8"

	"github.com/clausa-ai/clausa/internal/domain"
)

const (
	// DefaultMaxContextChars bounds the text volume admitted into a prompt.
	DefaultMaxContextChars = 6000
	// minUsefulChars is the smallest remaining budget worth filling with a
	// truncated chunk; anything less is discarded instead.
	minUsefulChars = 100

	truncationMarker = " [...]"
)

// AssembleContext greedily accepts chunks in ranked order until the
// character budget is spent. A chunk that no longer fits whole is truncated
// with an explicit marker if the remaining budget clears the usefulness
// floor, otherwise dropped along with the rest. Never reorders, never
// returns an empty fragment; the concatenated text never exceeds maxChars.
func AssembleContext(results []*domain.RetrievalResult, maxChars int) []*domain.RetrievalResult {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	assembled := make([]*domain.RetrievalResult, 0, len(results))
	used := 0
	for _, r := range results {
		if r == nil || r.Chunk.Text == "" {
			continue
		}
		remaining := maxChars - used
		length := len(r.Chunk.Text)

		if length <= remaining {
			assembled = append(assembled, r)
			used += length
			continue
		}

		if remaining >= minUsefulChars && remaining > len(truncationMarker) {
			cut := remaining - len(truncationMarker)
			// Back off to a rune boundary so umlauts are never split.
			for cut > 0 && !utf8.RuneStart(r.Chunk.Text[cut]) {
				cut--
			}
			truncated := *r
			truncated.Chunk.Text = r.Chunk.Text[:cut] + truncationMarker
			assembled = append(assembled, &truncated)
			used = maxChars
		}
		break
	}
	return assembled
}
