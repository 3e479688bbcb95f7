// Package runes contains the character classes of the clause language.
package runes

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// First returns the first rune of s. If the string is empty or not proper UTF-8, returns false.
func First(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size < 2 {
		return 0, false
	}
	return r, true
}

// Single returns the single rune of s. If the string doesn't have exactly one rune, returns
// false.
func Single(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	return r, size > 0 && size == len(s)
}

const separators = "()[],.|=<>%\\+-*/!:"

// IsSeparator returns whether ch is a single-character token.
func IsSeparator(ch rune) bool {
	return strings.ContainsRune(separators, ch)
}

// IsIdent returns whether ch may appear in an identifier.
func IsIdent(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

// IsIdents returns whether every rune of s may appear in an identifier.
func IsIdents(s string) bool {
	for _, ch := range s {
		if !IsIdent(ch) {
			return false
		}
	}
	return true
}

// IsVarFirst returns whether ch may start a variable name.
func IsVarFirst(ch rune) bool {
	return ch == '_' || unicode.IsUpper(ch)
}

// IsDigits returns whether s is a non-empty sequence of decimal digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
