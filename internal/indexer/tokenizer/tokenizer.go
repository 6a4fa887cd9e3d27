// Package tokenizer converts raw text into the token strings that every
// frequency statistic is keyed by. Documents and queries go through the same
// function so their vectors share coordinates.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits text into tokens:
//
//   - whitespace separates tokens and is never emitted;
//   - a word starts with an alphabetic rune and continues over alphabetic
//     runes and apostrophes; it is lower-cased;
//   - a number starts with a numeric rune and continues over alphabetic runes and
//     dots, so "2nd" and "3." are single tokens but "42" is two; it keeps
//     its case;
//   - any other rune is a token on its own.
//
// Tokenize is pure and safe for concurrent use.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/6)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isAlpha(r):
			end := scan(text, i+size, isWordRune)
			tokens = append(tokens, strings.ToLower(text[i:end]))
			i = end
		case unicode.IsNumber(r):
			end := scan(text, i+size, isNumberRune)
			tokens = append(tokens, text[i:end])
			i = end
		default:
			tokens = append(tokens, text[i:i+size])
			i += size
		}
	}
	return tokens
}

// scan returns the byte offset of the first rune at or after start that
// does not satisfy keep.
func scan(text string, start int, keep func(rune) bool) int {
	for start < len(text) {
		r, size := utf8.DecodeRuneInString(text[start:])
		if !keep(r) {
			break
		}
		start += size
	}
	return start
}

// isAlpha reports the Unicode Alphabetic property. Combining vowel signs
// and letter numerals such as Roman numerals count, so "हिंदी" and "Ⅻ" stay
// whole words.
func isAlpha(r rune) bool {
	return unicode.In(r, unicode.L, unicode.Nl, unicode.Other_Alphabetic)
}

func isWordRune(r rune) bool {
	return isAlpha(r) || r == '\''
}

func isNumberRune(r rune) bool {
	return isAlpha(r) || r == '.'
}
