package sheets

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader folds a header cell for comparison:
// "  Tamaño: " -> "tamano", "Ticket Promedio" -> "ticket promedio", "% " -> "%".
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

var summaryLabels = map[string]bool{
	"total":         true,
	"totales":       true,
	"total general": true,
	"gran total":    true,
}

// isSummaryLabel reports rows such as "Total" printed under a section.
func isSummaryLabel(cell string) bool {
	return summaryLabels[NormalizeHeader(cell)]
}
