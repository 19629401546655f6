package service

import (
	"regexp"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	// German
	"der": {}, "die": {}, "das": {}, "und": {}, "oder": {}, "ein": {}, "eine": {},
	"einer": {}, "einem": {}, "einen": {}, "ist": {}, "sind": {}, "war": {}, "waren": {},
	"wird": {}, "werden": {}, "wurde": {}, "hat": {}, "haben": {}, "kann": {}, "können": {},
	"muss": {}, "müssen": {}, "soll": {}, "sollen": {}, "darf": {}, "dürfen": {},
	"nicht": {}, "kein": {}, "keine": {}, "auch": {}, "noch": {}, "nur": {}, "schon": {},
	"für": {}, "von": {}, "mit": {}, "bei": {}, "nach": {}, "aus": {}, "auf": {}, "über": {},
	"unter": {}, "zwischen": {}, "durch": {}, "gegen": {}, "ohne": {}, "um": {}, "zum": {},
	"zur": {}, "im": {}, "in": {}, "an": {}, "am": {}, "als": {}, "wie": {}, "was": {},
	"wer": {}, "wann": {}, "wo": {}, "warum": {}, "wieso": {}, "welche": {}, "welcher": {},
	"welches": {}, "ich": {}, "wir": {}, "sie": {}, "es": {}, "man": {}, "mein": {},
	"meine": {}, "dass": {}, "wenn": {}, "dann": {}, "denn": {}, "aber": {}, "doch": {},
	// English ("an" and "was" already appear above)
	"a": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"were": {}, "be": {}, "been": {}, "it": {}, "this": {}, "that": {},
	"do": {}, "does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {},
	"where": {}, "which": {}, "can": {}, "could": {}, "should": {}, "would": {},
	"may": {}, "might": {}, "will": {}, "shall": {}, "my": {}, "i": {},
}

// paragraphRef matches legal paragraph and article references such as
// "§ 19", "§19a" or "Art. 74".
var paragraphRef = regexp.MustCompile(`(§\s*\d+[a-z]?)|\b(Art\.?|Artikel|Abs\.?|Ziffer)\s*\d+[a-z]?`)

// ExtractKeywords returns the salient terms of a query for full-text
// search: stopword-filtered tokens with numeric paragraph references moved
// to the front, capped at max.
func ExtractKeywords(query string, max int) []string {
	if max <= 0 {
		max = 8
	}

	refs := paragraphRef.FindAllString(query, -1)

	seen := make(map[string]struct{})
	var keywords []string
	add := func(token string) {
		key := strings.ToLower(strings.TrimSpace(token))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keywords = append(keywords, token)
	}

	for _, ref := range refs {
		add(strings.Join(strings.Fields(ref), " "))
	}

	for _, token := range strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '§'
	}) {
		clean := strings.ToLower(token)
		if clean == "§" {
			continue
		}
		if len([]rune(clean)) < 3 && !strings.ContainsRune(clean, '§') {
			continue
		}
		if _, ok := stopwords[clean]; ok {
			continue
		}
		add(token)
	}

	if len(keywords) > max {
		keywords = keywords[:max]
	}
	return keywords
}

// keywordQuery joins extracted keywords for the full-text search backend.
func keywordQuery(query string) string {
	return strings.Join(ExtractKeywords(query, 8), " ")
}
