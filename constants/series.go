package constants

import "strings"

// Series is an invoice numbering series. Mechanical work bills on HM,
// tyre work on HG. Each series carries its own gap-free counter.
type Series string

const (
	SeriesHM Series = "HM"
	SeriesHG Series = "HG"
)

var allSeries = []Series{SeriesHM, SeriesHG}

// AllSeries returns the known series in stable order.
func AllSeries() []Series {
	out := make([]Series, len(allSeries))
	copy(out, allSeries)
	return out
}

// Numbering returns the Easyfatt numbering tag for the series ("/HM", "/HG").
func (s Series) Numbering() string {
	return "/" + string(s)
}

// ParseSeries canonicalizes user or stored input into a Series.
func ParseSeries(input string) (Series, bool) {
	normalized := Series(strings.ToUpper(strings.TrimSpace(input)))
	for _, s := range allSeries {
		if normalized == s {
			return s, true
		}
	}
	return "", false
}
