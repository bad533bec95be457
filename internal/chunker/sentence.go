// Package chunker splits raw document text into bounded, semantically
// coherent segments and filters duplicates across a build run.
package chunker

import (
	"strings"
	"unicode"
)

// abbreviations that end with a period mid-sentence. A period after one of
// these (or after a single letter, as in initials) does not end a sentence.
var abbreviations = map[string]struct{}{
	// Russian
	"г": {}, "гг": {}, "др": {}, "изм": {}, "им": {}, "коп": {},
	"млн": {}, "млрд": {}, "п": {}, "пр": {}, "ред": {}, "рис": {},
	"руб": {}, "см": {}, "ст": {}, "стр": {}, "т": {}, "тыс": {},
	"ул": {}, "ч": {},
	// English
	"dr": {}, "etc": {}, "inc": {}, "ltd": {}, "mr": {}, "mrs": {},
	"prof": {}, "vs": {},
}

// Sentences splits text into sentences. The splitter is rune-aware so it
// handles Cyrillic corpora, treats runs of terminators ("?!", "...") as one
// boundary, keeps closing quotes and brackets with their sentence, and does
// not break on decimal points, initials or common abbreviations.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string

	flush := func(start, end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, s)
		}
	}

	start := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		if !isTerminator(r) {
			i++
			continue
		}

		// Swallow the whole terminator run plus trailing closers.
		j := i
		for j+1 < len(runes) && isTerminator(runes[j+1]) {
			j++
		}
		for j+1 < len(runes) && isCloser(runes[j+1]) {
			j++
		}

		if r == '.' && !periodEndsSentence(runes, start, i) {
			i = j + 1
			continue
		}

		if j+1 >= len(runes) {
			flush(start, j+1)
			start = j + 1
			i = j + 1
			continue
		}

		if unicode.IsSpace(runes[j+1]) {
			k := j + 1
			for k < len(runes) && unicode.IsSpace(runes[k]) {
				k++
			}
			if k >= len(runes) || startsSentence(runes[k]) {
				flush(start, j+1)
				start = k
				i = k
				continue
			}
		}

		i = j + 1
	}

	if start < len(runes) {
		flush(start, len(runes))
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	switch r {
	case '»', '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

func startsSentence(r rune) bool {
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '«', '"', '\'', '(', '[', '“', '‘', '—', '-', '•':
		return true
	}
	return false
}

// periodEndsSentence reports whether the period at position i is a real
// sentence boundary rather than a decimal point, an initial or an
// abbreviation.
func periodEndsSentence(runes []rune, start, i int) bool {
	if i > 0 && i+1 < len(runes) &&
		unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
		return false
	}

	// Collect the word immediately before the period.
	w := i
	for w > start && unicode.IsLetter(runes[w-1]) {
		w--
	}
	word := strings.ToLower(string(runes[w:i]))
	if word == "" {
		return true
	}
	if len([]rune(word)) == 1 {
		return false // initials: "А. Петров"
	}
	_, abbr := abbreviations[word]
	return !abbr
}
