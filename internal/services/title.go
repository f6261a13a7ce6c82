package services

import (
	"strings"
	"unicode/utf8"
)

const (
	untitledResource = "Untitled Resource"
	minTitleRunes    = 3
	maxTitleRunes    = 120
)

// ValidTitle reports whether s fits the title length contract.
func ValidTitle(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= minTitleRunes && n <= maxTitleRunes
}

// ResolveTitle picks the final title by fixed precedence: verbatim title from
// the source text, then the document's own title, then a lazy vision-based
// exact title (image uploads only), then the model's general suggestion, then
// the literal fallback. visionTitle is a thunk so the extra inference call is
// only paid when the cheaper candidates are missing.
func ResolveTitle(exactFromText, nativeTitle string, visionTitle func() string, generalTitle string) string {
	if t := strings.TrimSpace(exactFromText); ValidTitle(t) {
		return t
	}
	if t := strings.TrimSpace(nativeTitle); ValidTitle(t) {
		return t
	}
	if visionTitle != nil {
		if t := strings.TrimSpace(visionTitle()); ValidTitle(t) {
			return t
		}
	}
	if t := strings.TrimSpace(generalTitle); ValidTitle(t) {
		return t
	}
	return untitledResource
}
