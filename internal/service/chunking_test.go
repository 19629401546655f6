package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSentence builds a 30-word sentence of 6-character words, estimating
// to 46 tokens. Sentence i is distinct from sentence j for i != j.
func makeSentence(i int) string {
	words := make([]string, 30)
	for j := range words {
		words[j] = fmt.Sprintf("wo%02d%02d", i%100, j)
	}
	return strings.Join(words, " ") + "."
}

func makeDocument(sentenceCount int) *domain.Document {
	sentences := make([]string, sentenceCount)
	for i := range sentences {
		sentences[i] = makeSentence(i)
	}
	return &domain.Document{
		ID:        "doc-1",
		InsurerID: "ins-1",
		Text:      strings.Join(sentences, " "),
		Metadata:  domain.DocumentMetadata{Title: "AVB Haftpflicht", Category: "haftpflicht"},
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "   \n\t ", want: 0},
		{name: "single word", text: "Vertrag", want: 2},
		{name: "short sentence", text: "Der Vertrag endet.", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	text := ""
	prev := 0
	for i := 0; i < 50; i++ {
		text += "Versicherungsschutz besteht im vereinbarten Umfang. "
		est := EstimateTokens(text)
		assert.GreaterOrEqual(t, est, prev)
		prev = est
	}
}

func TestEstimateTokensDeterministic(t *testing.T) {
	text := makeSentence(7)
	first := EstimateTokens(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EstimateTokens(text))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain sentences",
			text: "Der Vertrag beginnt am Montag. Er endet am Freitag. Danach erlischt der Schutz.",
			want: []string{
				"Der Vertrag beginnt am Montag.",
				"Er endet am Freitag.",
				"Danach erlischt der Schutz.",
			},
		},
		{
			name: "abbreviations are protected",
			text: "Gemäß Abs. 2 gilt z.B. eine Frist von ca. zwei Wochen. Dr. Meier wurde informiert.",
			want: []string{
				"Gemäß Abs. 2 gilt z.B. eine Frist von ca. zwei Wochen.",
				"Dr. Meier wurde informiert.",
			},
		},
		{
			name: "question and exclamation marks",
			text: "Gilt der Schutz im Ausland? Ja! Die Deckung ist weltweit.",
			want: []string{
				"Gilt der Schutz im Ausland?",
				"Ja!",
				"Die Deckung ist weltweit.",
			},
		},
		{
			name: "no trailing punctuation keeps remainder",
			text: "Erster Satz. Zweiter Satz ohne Punkt",
			want: []string{"Erster Satz.", "Zweiter Satz ohne Punkt"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestChunkDocumentEmpty(t *testing.T) {
	chunks, err := ChunkDocument(&domain.Document{ID: "doc-1", Text: "   "}, DefaultChunkOptions())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkDocumentInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts ChunkOptions
	}{
		{name: "zero target", opts: ChunkOptions{TargetTokens: 0, MaxTokens: 100}},
		{name: "target above max", opts: ChunkOptions{TargetTokens: 200, MaxTokens: 100}},
		{name: "negative overlap", opts: ChunkOptions{TargetTokens: 100, MaxTokens: 200, OverlapTokens: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChunkDocument(makeDocument(4), tt.opts)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkOpts)
		})
	}
}

func TestChunkDocumentSoleShortChunkKept(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Text: "Ein einziger kurzer Satz."}
	chunks, err := ChunkDocument(doc, DefaultChunkOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Less(t, chunks[0].TokenCount, DefaultChunkOptions().MinTokens)
}

func TestChunkDocumentThreeChunkScenario(t *testing.T) {
	// 52 thirty-word sentences estimate to roughly 2400 tokens. With a
	// target of 800 and an overlap budget of 75 this must produce exactly
	// three chunks, each within 700..900 tokens.
	doc := makeDocument(52)
	opts := ChunkOptions{TargetTokens: 800, OverlapTokens: 75, MinTokens: 100, MaxTokens: 1000}

	chunks, err := ChunkDocument(doc, opts)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.TokenCount, 700)
		assert.LessOrEqual(t, c.TokenCount, 900)
	}
}

func TestChunkDocumentIndicesAndMetadata(t *testing.T) {
	doc := makeDocument(52)
	chunks, err := ChunkDocument(doc, DefaultChunkOptions())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, "ins-1", c.InsurerID)
		assert.Equal(t, "AVB Haftpflicht", c.Metadata.Title)
		assert.Positive(t, c.TokenCount)
		assert.Equal(t, EstimateTokens(c.Text), c.TokenCount)
	}
}

func TestChunkDocumentOverlap(t *testing.T) {
	doc := makeDocument(52)
	opts := ChunkOptions{TargetTokens: 800, OverlapTokens: 75, MinTokens: 100, MaxTokens: 1000}

	chunks, err := ChunkDocument(doc, opts)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevSentences := SplitSentences(chunks[i-1].Text)
		currSentences := SplitSentences(chunks[i].Text)

		// The successor starts with trailing sentences of its predecessor,
		// and their combined estimate stays within the overlap budget.
		var shared []string
		for _, s := range currSentences {
			if s == prevSentences[len(prevSentences)-len(shared)-1] {
				shared = append(shared, s)
			} else {
				break
			}
		}
		require.NotEmpty(t, shared, "chunk %d carries no overlap", i)
		assert.LessOrEqual(t, EstimateTokens(strings.Join(shared, " ")), opts.OverlapTokens)
	}
}

func TestChunkDocumentSentencesNeverSplit(t *testing.T) {
	doc := makeDocument(52)
	chunks, err := ChunkDocument(doc, DefaultChunkOptions())
	require.NoError(t, err)

	original := SplitSentences(doc.Text)
	originalSet := make(map[string]struct{}, len(original))
	for _, s := range original {
		originalSet[s] = struct{}{}
	}

	for _, c := range chunks {
		for _, s := range SplitSentences(c.Text) {
			_, ok := originalSet[s]
			assert.True(t, ok, "chunk sentence %q not found verbatim in document", s)
		}
	}
}

func TestChunkDocumentMaxTokenBound(t *testing.T) {
	doc := makeDocument(80)
	opts := ChunkOptions{TargetTokens: 300, OverlapTokens: 50, MinTokens: 50, MaxTokens: 400}

	chunks, err := ChunkDocument(doc, opts)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, opts.MaxTokens)
	}
}

func TestChunkDocumentOversizedSentenceAfterTargetClose(t *testing.T) {
	// When a chunk closes at the target, the carried overlap seeds the next
	// chunk. An oversized sentence arriving right after must not force that
	// seed out as its own chunk: the seed is pure duplicated overlap and
	// lies below the minimum.
	words := make([]string, 1450)
	for j := range words {
		words[j] = fmt.Sprintf("la%04d", j)
	}
	huge := strings.Join(words, " ") + "."

	sentences := make([]string, 0, 19)
	for i := 0; i < 18; i++ {
		sentences = append(sentences, makeSentence(i))
	}
	sentences = append(sentences, huge)

	doc := &domain.Document{ID: "doc-1", InsurerID: "ins-1", Text: strings.Join(sentences, " ")}
	opts := ChunkOptions{TargetTokens: 800, OverlapTokens: 75, MinTokens: 100, MaxTokens: 1000}

	chunks, err := ChunkDocument(doc, opts)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, c.TokenCount, opts.MinTokens,
			"chunk %d is an undersized overlap fragment", c.Index)
	}
	assert.Contains(t, chunks[len(chunks)-1].Text, "la1449")
}

func TestValidateChunks(t *testing.T) {
	opts := DefaultChunkOptions()

	t.Run("empty set", func(t *testing.T) {
		stats := ValidateChunks(nil, opts)
		assert.Zero(t, stats.Count)
		assert.Empty(t, stats.Warnings)
	})

	t.Run("healthy chunks produce no warnings", func(t *testing.T) {
		chunks := []*domain.Chunk{
			{Index: 0, TokenCount: 750},
			{Index: 1, TokenCount: 820},
		}
		stats := ValidateChunks(chunks, opts)
		assert.Equal(t, 2, stats.Count)
		assert.Equal(t, 750, stats.MinTokens)
		assert.Equal(t, 820, stats.MaxTokens)
		assert.InDelta(t, 785.0, stats.AvgTokens, 0.01)
		assert.Empty(t, stats.Warnings)
	})

	t.Run("anomalous chunks are flagged", func(t *testing.T) {
		chunks := []*domain.Chunk{
			{Index: 0, TokenCount: 12},
			{Index: 1, TokenCount: 2000},
		}
		stats := ValidateChunks(chunks, opts)
		require.Len(t, stats.Warnings, 2)
		assert.Contains(t, stats.Warnings[0], "anomalously low")
		assert.Contains(t, stats.Warnings[1], "exceeds 1.5x")
	})
}
