package service

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clausa-ai/clausa/internal/domain"
)

// ChunkOptions controls chunking for document embeddings.
type ChunkOptions struct {
	TargetTokens  int
	OverlapTokens int
	MinTokens     int
	MaxTokens     int
}

// DefaultChunkOptions provides sane defaults for insurance/legal documents.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetTokens:  800,
		OverlapTokens: 80,
		MinTokens:     100,
		MaxTokens:     1000,
	}
}

func (o ChunkOptions) validate() error {
	if o.TargetTokens <= 0 || o.MaxTokens <= 0 || o.MinTokens < 0 || o.OverlapTokens < 0 {
		return domain.ErrInvalidChunkOpts
	}
	if o.TargetTokens > o.MaxTokens {
		return domain.ErrInvalidChunkOpts
	}
	return nil
}

// EstimateTokens estimates the token count of a text span without a real
// tokenizer: the average of a character-based estimate (chars/4) and a
// word-based estimate (words * 1.3, compensating for compound-heavy German).
// Deterministic and monotonic in input length.
func EstimateTokens(text string) int {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return 0
	}
	chars := float64(utf8.RuneCountInString(clean))
	words := float64(len(strings.Fields(clean)))
	return int(math.Ceil((chars/4 + words*1.3) / 2))
}

// Abbreviations that must not terminate a sentence. They are masked before
// splitting and restored afterwards.
var sentenceAbbreviations = []string{
	"z.B.", "d.h.", "u.a.", "u.U.", "i.d.R.", "i.S.d.", "bzw.", "bzgl.",
	"ca.", "etc.", "evtl.", "ggf.", "inkl.", "insb.", "max.", "min.",
	"Nr.", "Abs.", "Art.", "Ziff.", "Kap.", "Dr.", "Prof.", "Co.",
	"Mr.", "Mrs.", "e.g.", "i.e.", "vs.",
}

const abbrevMask = ''

// SplitSentences splits text at sentence punctuation (., !, ?) followed by
// whitespace or end of input. Protected abbreviations never cause a break.
func SplitSentences(text string) []string {
	masked := text
	for _, abbr := range sentenceAbbreviations {
		replacement := strings.ReplaceAll(abbr, ".", string(abbrevMask))
		masked = strings.ReplaceAll(masked, abbr, replacement)
	}

	var sentences []string
	var b strings.Builder
	runes := []rune(masked)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := restoreAbbreviations(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if s := restoreAbbreviations(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func restoreAbbreviations(s string) string {
	s = strings.ReplaceAll(s, string(abbrevMask), ".")
	return strings.TrimSpace(s)
}

// ChunkDocument splits a document into overlapping, token-bounded,
// sentence-respecting chunks. An empty document yields an empty list; a
// document below MinTokens yields a single chunk kept regardless of the
// minimum. Sentences are atomic: neither chunk boundaries nor overlap
// ever split one.
func ChunkDocument(doc *domain.Document, opts ChunkOptions) ([]*domain.Chunk, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return []*domain.Chunk{}, nil
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return []*domain.Chunk{}, nil
	}

	var chunkSentences [][]string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunkSentences = append(chunkSentences, current)
		current = overlapSeed(current, opts.OverlapTokens)
	}

	for _, sentence := range sentences {
		if len(current) > 0 {
			joined := joinSentences(append(current, sentence))
			if EstimateTokens(joined) > opts.MaxTokens {
				if len(chunkSentences) == 0 || hasNewContent(current, chunkSentences[len(chunkSentences)-1]) {
					flush()
				} else {
					// current is pure carried overlap; emitting it alone
					// would duplicate the previous chunk's tail as an
					// undersized fragment. Drop the seed instead.
					current = nil
				}
			}
		}
		current = append(current, sentence)
		if len(current) >= 2 && EstimateTokens(joinSentences(current)) >= opts.TargetTokens {
			flush()
		}
	}
	if len(current) > 0 {
		// The trailing seed alone is pure overlap, not new content.
		if len(chunkSentences) == 0 || hasNewContent(current, chunkSentences[len(chunkSentences)-1]) {
			chunkSentences = append(chunkSentences, current)
		}
	}

	// Drop an orphaned trailing fragment unless it is the sole chunk.
	if len(chunkSentences) > 1 {
		last := joinSentences(chunkSentences[len(chunkSentences)-1])
		if EstimateTokens(last) < opts.MinTokens {
			chunkSentences = chunkSentences[:len(chunkSentences)-1]
		}
	}

	chunks := make([]*domain.Chunk, 0, len(chunkSentences))
	for i, group := range chunkSentences {
		chunkText := joinSentences(group)
		chunks = append(chunks, &domain.Chunk{
			DocumentID: doc.ID,
			InsurerID:  doc.InsurerID,
			Text:       chunkText,
			Index:      i,
			TokenCount: EstimateTokens(chunkText),
			Metadata:   doc.Metadata,
		})
	}
	return chunks, nil
}

// overlapSeed selects the trailing sentences of a closed chunk whose
// cumulative token estimate stays within the overlap budget.
func overlapSeed(closed []string, overlapTokens int) []string {
	if overlapTokens <= 0 {
		return nil
	}
	var seed []string
	for i := len(closed) - 1; i >= 0; i-- {
		candidate := append([]string{closed[i]}, seed...)
		if EstimateTokens(joinSentences(candidate)) > overlapTokens {
			break
		}
		seed = candidate
	}
	return seed
}

// hasNewContent reports whether current contains sentences beyond the
// overlap carried over from the previous chunk.
func hasNewContent(current, previous []string) bool {
	prevSet := make(map[string]struct{}, len(previous))
	for _, s := range previous {
		prevSet[s] = struct{}{}
	}
	for _, s := range current {
		if _, ok := prevSet[s]; !ok {
			return true
		}
	}
	return false
}

func joinSentences(sentences []string) string {
	return strings.Join(sentences, " ")
}

// ChunkStats carries aggregate quality numbers for a produced chunk set.
type ChunkStats struct {
	Count     int      `json:"count"`
	AvgTokens float64  `json:"avgTokens"`
	MinTokens int      `json:"minTokens"`
	MaxTokens int      `json:"maxTokens"`
	Warnings  []string `json:"warnings,omitempty"`
}

const anomalouslyLowTokens = 50

// ValidateChunks inspects a produced chunk set and flags, without failing,
// chunks whose token count is anomalously low or high relative to the
// configured maximum. Used for quality monitoring after ingestion.
func ValidateChunks(chunks []*domain.Chunk, opts ChunkOptions) ChunkStats {
	stats := ChunkStats{Count: len(chunks)}
	if len(chunks) == 0 {
		return stats
	}

	high := int(float64(opts.MaxTokens) * 1.5)
	total := 0
	stats.MinTokens = chunks[0].TokenCount
	for _, c := range chunks {
		total += c.TokenCount
		if c.TokenCount < stats.MinTokens {
			stats.MinTokens = c.TokenCount
		}
		if c.TokenCount > stats.MaxTokens {
			stats.MaxTokens = c.TokenCount
		}
		if c.TokenCount < anomalouslyLowTokens {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("chunk %d: token count %d is anomalously low", c.Index, c.TokenCount))
		} else if c.TokenCount > high {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("chunk %d: token count %d exceeds 1.5x the maximum", c.Index, c.TokenCount))
		}
	}
	stats.AvgTokens = float64(total) / float64(len(chunks))
	return stats
}
