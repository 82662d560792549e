package match

import "strings"

// NormalizePlate strips separators the source documents sprinkle into
// plates ("GZ 605 WM", "gz-605-wm") down to the canonical form used in
// match keys and invoice filenames.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.ToUpper(plate) {
		switch r {
		case ' ', '\t', '-', '.', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeKey builds the join key for a rental case. Two documents with
// the same key refer to the same case regardless of casing or spacing
// drift between layouts.
func NormalizeKey(pratica, plate string) string {
	p := strings.Join(strings.Fields(strings.ToUpper(pratica)), "")
	return p + "|" + NormalizePlate(plate)
}
