package openai

import (
	"math"
	"strings"
)

// semanticAnchors seed dedicated leading dimensions for known domain terms
// so that fallback vectors of related texts land near each other. The exact
// values are arbitrary; they only need to be stable.
var semanticAnchors = map[string]int{
	"haftpflicht":        0,
	"hausrat":            1,
	"kasko":              2,
	"unfall":             3,
	"berufsunfähigkeit":  4,
	"rechtsschutz":       5,
	"krankenversicherung": 6,
	"selbstbeteiligung":  7,
	"franchise":          7,
	"prämie":             8,
	"beitrag":            8,
	"kündigung":          9,
	"kündigungsfrist":    9,
	"schaden":            10,
	"deckung":            11,
	"versicherungssumme": 12,
	"elementarschaden":   13,
	"leistungsausschluss": 14,
	"wartezeit":          15,
	"vvg":                16,
	"obliegenheit":       17,
}

const anchorWeight = 4.0

// FallbackVector derives a deterministic embedding from the text itself:
// character codes spread across the dimensions plus semantic anchors for
// known domain terms, normalized to unit length. It is used when no
// embedding API is configured and guarantees reproducible vectors for
// integration tests.
func FallbackVector(text string, dimensions int) []float32 {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	v := make([]float32, dimensions)
	lower := strings.ToLower(text)

	for i, r := range lower {
		idx := (i*31 + int(r)) % dimensions
		if idx < 0 {
			idx += dimensions
		}
		v[idx] += float32(int(r)%13) + 1
	}

	for term, anchor := range semanticAnchors {
		if anchor >= dimensions {
			continue
		}
		if strings.Contains(lower, term) {
			v[anchor] += anchorWeight
		}
	}

	normalize(v)
	return v
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
