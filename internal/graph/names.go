package graph

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	suffixTokens = map[string]bool{
		"CO": true, "INC": true, "LTD": true, "LLP": true, "LIMITED": true, "COM": true,
	}
	honorificTokens = map[string]bool{
		"MR": true, "DR": true, "PROF": true, "MS": true, "MISS": true, "MDM": true, "MRS": true,
	}
	punctReplacer = strings.NewReplacer(",", " ", ".", " ", "-", " ", `"`, " ")
)

// CleanName normalizes an entity name for storage and comparison:
// punctuation becomes whitespace, corporate suffixes and honorifics are
// dropped, and whitespace is collapsed.
func CleanName(name string) string {
	name = punctReplacer.Replace(name)

	var kept []string
	for _, part := range strings.Fields(name) {
		upper := strings.ToUpper(part)
		if suffixTokens[upper] || honorificTokens[upper] {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, " ")
}

// Acronym forms an acronym from the first letter of each token. Returns ""
// for single-token names, where an acronym would just be the first letter.
func Acronym(name string) string {
	words := strings.Fields(name)
	if len(words) < 2 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(r)
	}
	return b.String()
}

// SubName returns the first token longer than one character, used for
// substring candidate lookup. Returns "" when no such token exists.
func SubName(name string) string {
	for _, part := range strings.Fields(name) {
		if len(part) > 1 {
			return part
		}
	}
	return ""
}

// AcronymPattern builds a regex that matches names the input could be an
// acronym of: each letter anchors a word, e.g. "AMD" matches
// "ADVANCED MICRO DEVICES".
func AcronymPattern(name string) string {
	var b strings.Builder
	for _, letter := range name {
		b.WriteString(regexp.QuoteMeta(string(letter)))
		b.WriteString(`\w*\s+`)
	}
	pattern := strings.TrimSuffix(b.String(), `\s+`)
	return `\b` + pattern + `\b`
}
