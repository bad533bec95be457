package rag

import (
	"fmt"
	"strings"
	"unicode"

	"ragbot/internal/domain"
)

// ValidateQuery rejects queries that cannot produce a meaningful retrieval:
// too short, bot commands, no letters, punctuation-only noise, or a lone
// short word. Returns ErrInvalidQuery with a reason; valid queries return
// the trimmed text.
func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if runeLen(trimmed) < 5 {
		return "", fmt.Errorf("query shorter than 5 characters: %w", domain.ErrInvalidQuery)
	}
	if strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("query looks like a command: %w", domain.ErrInvalidQuery)
	}
	if !containsLetter(trimmed) {
		return "", fmt.Errorf("query contains no letters: %w", domain.ErrInvalidQuery)
	}
	if punctuationOnly(trimmed) {
		return "", fmt.Errorf("query is punctuation only: %w", domain.ErrInvalidQuery)
	}
	words := strings.Fields(trimmed)
	if len(words) == 1 && runeLen(words[0]) <= 4 {
		return "", fmt.Errorf("single short word: %w", domain.ErrInvalidQuery)
	}
	return trimmed, nil
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// punctuationOnly reports whether s has no letters, digits or whitespace at
// all, e.g. "???" or "!!!...".
func punctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return false
		}
	}
	return true
}
