package extract

import (
	"regexp"
	"strings"
)

// firstMatch tries each pattern in order and returns the first capture
// group of the first one that hits. Layouts drift between document
// vintages, so every anchor carries its fallback spellings.
func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if matches := re.FindStringSubmatch(text); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}

// optional returns nil for an empty capture so unset stays distinguishable
// from empty.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
