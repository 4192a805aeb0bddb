package capsule

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Name length bounds for families, children and display names.
const (
	MinNameChars = 1
	MaxNameChars = 100
)

// NormalizeName trims a display name and collapses internal whitespace to
// single spaces. Case is preserved.
func NormalizeName(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// ValidName reports whether a normalized name is within the length bounds.
func ValidName(name string) bool {
	n := CountChars(name)
	return n >= MinNameChars && n <= MaxNameChars
}
