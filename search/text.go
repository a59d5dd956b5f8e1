package search

import "strings"

const wordTrimCutset = ".,!?;:'\"-()[]{}"

// Common English words that carry no signal for verbatim matching.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// significantWords lowercases s, strips surrounding punctuation from each
// word and drops stop words and empties.
func significantWords(s string) []string {
	fields := strings.Fields(s)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		w := strings.ToLower(strings.Trim(field, wordTrimCutset))
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

// containsAllQueryWords reports whether every significant word of the query
// occurs somewhere in text. A query reduced to nothing by the stop-word
// filter matches no text at all.
func containsAllQueryWords(text, query string) bool {
	wanted := significantWords(query)
	if len(wanted) == 0 {
		return false
	}

	have := make(map[string]bool)
	for _, w := range significantWords(text) {
		have[w] = true
	}
	for _, w := range wanted {
		if !have[w] {
			return false
		}
	}
	return true
}
