package rag

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it on runs of non letter/digit runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
