package service

import (
	"sort"
	"strings"

	"github.com/clausa-ai/clausa/internal/domain"
)

// ReferenceSet is a small locally-held corpus used by the last retrieval
// strategy when every remote strategy errors. It is seeded explicitly at
// construction time; there is no lazy module-level initialization.
type ReferenceSet struct {
	chunks []*domain.Chunk
}

// NewReferenceSet builds a reference set from the given chunks, falling
// back to the built-in excerpts when none are provided.
func NewReferenceSet(chunks []*domain.Chunk) *ReferenceSet {
	if len(chunks) == 0 {
		chunks = builtinReferenceChunks()
	}
	return &ReferenceSet{chunks: chunks}
}

// Size returns the number of reference chunks held.
func (r *ReferenceSet) Size() int {
	return len(r.chunks)
}

// Rank orders the reference chunks by naive keyword overlap with the query
// and returns up to limit results. Scores are the fraction of query
// keywords found in the chunk, so they live in [0, 1].
func (r *ReferenceSet) Rank(query string, limit int) []*domain.RetrievalResult {
	if limit <= 0 {
		limit = 5
	}
	keywords := ExtractKeywords(query, 12)

	results := make([]*domain.RetrievalResult, 0, len(r.chunks))
	for _, c := range r.chunks {
		lower := strings.ToLower(c.Text + " " + c.Metadata.Title)
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		var score float32
		if len(keywords) > 0 {
			score = float32(matched) / float32(len(keywords))
		}
		results = append(results, &domain.RetrievalResult{
			Chunk:          *c,
			Similarity:     score,
			BelowThreshold: true,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// builtinReferenceChunks holds a handful of insurance-contract-law excerpts
// so the pipeline can still cite something when the store is unreachable.
func builtinReferenceChunks() []*domain.Chunk {
	entries := []struct {
		section string
		title   string
		text    string
	}{
		{
			section: "§ 8 VVG",
			title:   "Widerrufsrecht des Versicherungsnehmers",
			text: "Der Versicherungsnehmer kann seine Vertragserklärung innerhalb von 14 Tagen widerrufen. " +
				"Der Widerruf ist in Textform gegenüber dem Versicherer zu erklären und muss keine Begründung enthalten; " +
				"zur Fristwahrung genügt die rechtzeitige Absendung.",
		},
		{
			section: "§ 19 VVG",
			title:   "Anzeigepflicht",
			text: "Der Versicherungsnehmer hat bis zur Abgabe seiner Vertragserklärung die ihm bekannten Gefahrumstände, " +
				"die für den Entschluss des Versicherers erheblich sind und nach denen der Versicherer in Textform gefragt hat, " +
				"dem Versicherer anzuzeigen. Verletzt der Versicherungsnehmer seine Anzeigepflicht, kann der Versicherer vom Vertrag zurücktreten.",
		},
		{
			section: "§ 28 VVG",
			title:   "Verletzung einer vertraglichen Obliegenheit",
			text: "Bei Verletzung einer vertraglichen Obliegenheit, die vor Eintritt des Versicherungsfalles zu erfüllen ist, " +
				"kann der Versicherer den Vertrag innerhalb eines Monats ohne Einhaltung einer Frist kündigen, " +
				"es sei denn, die Verletzung beruht nicht auf Vorsatz oder grober Fahrlässigkeit.",
		},
		{
			section: "§ 37 VVG",
			title:   "Zahlungsverzug bei Erstprämie",
			text: "Wird die einmalige oder die erste Prämie nicht rechtzeitig gezahlt, ist der Versicherer, " +
				"solange die Zahlung nicht bewirkt ist, zum Rücktritt vom Vertrag berechtigt, " +
				"es sei denn, der Versicherungsnehmer hat die Nichtzahlung nicht zu vertreten.",
		},
		{
			section: "§ 86 VVG",
			title:   "Übergang von Ersatzansprüchen",
			text: "Steht dem Versicherungsnehmer ein Ersatzanspruch gegen einen Dritten zu, geht dieser Anspruch auf den " +
				"Versicherer über, soweit der Versicherer den Schaden ersetzt. Der Übergang kann nicht zum Nachteil des " +
				"Versicherungsnehmers geltend gemacht werden.",
		},
		{
			section: "§ 163 VVG",
			title:   "Prämien- und Leistungsänderung",
			text: "Der Versicherer ist zu einer Neufestsetzung der vereinbarten Prämie berechtigt, wenn sich der Leistungsbedarf " +
				"nicht nur vorübergehend und nicht voraussehbar gegenüber den Rechnungsgrundlagen der vereinbarten Prämie geändert hat " +
				"und die neue Prämie angemessen und erforderlich ist.",
		},
	}

	chunks := make([]*domain.Chunk, 0, len(entries))
	for i, e := range entries {
		chunks = append(chunks, &domain.Chunk{
			DocumentID: "reference-vvg",
			Text:       e.text,
			Index:      i,
			TokenCount: EstimateTokens(e.text),
			Metadata: domain.DocumentMetadata{
				Title:    e.title,
				Category: "gesetz",
				Section:  e.section,
			},
		})
	}
	return chunks
}
