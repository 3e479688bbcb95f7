package logic

import (
	"strings"
	"unicode"

	"github.com/brunokim/prolog-wam/runes"
)

// IsVar returns whether text is a variable name: '_', or an identifier starting
// with an uppercase letter or an underscore.
func IsVar(text string) bool {
	ch, ok := runes.First(text)
	if !ok || !runes.IsVarFirst(ch) {
		return false
	}
	return runes.IsIdents(text)
}

// IsInt returns whether text is a decimal integer, with an optional leading '-'.
func IsInt(text string) bool {
	return runes.IsDigits(strings.TrimPrefix(text, "-"))
}

// symbolAtoms are atoms that can be written without quotes, despite not being
// identifiers.
var symbolAtoms = map[string]bool{
	"[]": true,
	";":  true,
	"+":  true,
	"#":  true,
}

// IsPlainAtom returns whether text can be written as an atom without quotes.
func IsPlainAtom(text string) bool {
	if symbolAtoms[text] {
		return true
	}
	ch, ok := runes.First(text)
	if !ok || !unicode.IsLower(ch) {
		return false
	}
	return runes.IsIdents(text)
}

// FormatAtom returns text as it should be written in source, quoting it if necessary.
//
// Atoms can't contain single quotes, since the language doesn't support escapes.
func FormatAtom(text string) string {
	if IsPlainAtom(text) {
		return text
	}
	return "'" + text + "'"
}
