// Package snippet cuts highlighted passages around query matches out of a
// document's raw text.
package snippet

import (
	"sort"
	"strings"
)

// DefaultContext is the number of words kept on each side of a match.
const DefaultContext = 20

// Ellipsis marks a first snippet that does not start at the beginning of
// the document.
const Ellipsis = "..."

type span struct{ start, end int }

// Generate returns the passages of text around words that contain any of
// tokens, case-insensitively. Windows of context words on each side are
// merged into the first accumulated range they touch; the result is ordered
// by position. ok is false when nothing matched.
func Generate(text string, tokens []string, context int) (snippets []string, ok bool) {
	if context < 0 {
		context = 0
	}
	words := strings.Fields(text)
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}

	var spans []span
	for _, token := range tokens {
		needle := strings.ToLower(token)
		for i, w := range lowered {
			if !strings.Contains(w, needle) {
				continue
			}
			s := span{start: max(0, i-context), end: min(len(words), i+context+1)}
			spans = merge(spans, s)
		}
	}
	if len(spans) == 0 {
		return nil, false
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	snippets = make([]string, len(spans))
	for i, s := range spans {
		snippets[i] = strings.Join(words[s.start:s.end], " ")
	}
	if spans[0].start > 0 {
		snippets[0] = Ellipsis + snippets[0]
	}
	return snippets, true
}

// merge widens the first span that overlaps or touches s, or appends s.
func merge(spans []span, s span) []span {
	for i := range spans {
		r := &spans[i]
		if s.start <= r.end && s.end >= r.start {
			r.start = min(r.start, s.start)
			r.end = max(r.end, s.end)
			return spans
		}
	}
	return append(spans, s)
}
