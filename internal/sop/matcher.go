// Package sop ranks Standard Operating Procedure documents against message
// text. SOPs guide the chatbot's response for a topic cluster; matching is a
// deterministic keyword-overlap ranking.
package sop

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Doc is a matcher view of a stored SOP document.
type Doc struct {
	ID          string
	Title       string
	Category    string
	Content     string
	Keywords    []string
	EffectiveAt time.Time
}

// ParseKeywords decodes the stored JSON keyword array, treating malformed
// data as an empty list rather than an error.
func ParseKeywords(raw string) []string {
	var kw []string
	if err := json.Unmarshal([]byte(raw), &kw); err != nil {
		return nil
	}
	return kw
}

// Match returns the doc whose keywords overlap the text the most. Ties break
// toward the most recently effective doc, then the lowest id, so ranking is
// fully deterministic. Docs with zero overlap are never matched; ok is false
// when nothing overlaps.
func Match(docs []Doc, text string) (Doc, bool) {
	if len(docs) == 0 {
		return Doc{}, false
	}

	words := tokenize(strings.ToLower(text))

	type scored struct {
		doc     Doc
		overlap int
	}
	ranked := make([]scored, 0, len(docs))
	for _, d := range docs {
		overlap := 0
		for _, kw := range d.Keywords {
			kw = strings.ToLower(kw)
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(strings.ToLower(text), kw) {
					overlap++
				}
			} else if words[kw] {
				overlap++
			}
		}
		if overlap > 0 {
			ranked = append(ranked, scored{doc: d, overlap: overlap})
		}
	}
	if len(ranked) == 0 {
		return Doc{}, false
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].overlap != ranked[j].overlap {
			return ranked[i].overlap > ranked[j].overlap
		}
		if !ranked[i].doc.EffectiveAt.Equal(ranked[j].doc.EffectiveAt) {
			return ranked[i].doc.EffectiveAt.After(ranked[j].doc.EffectiveAt)
		}
		return ranked[i].doc.ID < ranked[j].doc.ID
	})
	return ranked[0].doc, true
}

func tokenize(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}) {
		words[strings.Trim(w, "'")] = true
	}
	return words
}
