package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// labelFolder strips combining marks so "Diésel" and "Diesel" compare equal.
var labelFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldLabel canonicalizes a free-text source label for table lookups:
// accents removed, lowercased, interior whitespace collapsed.
func FoldLabel(label string) string {
	folded, _, err := transform.String(labelFolder, label)
	if err != nil {
		// Transform only fails on invalid UTF-8; fall back to the raw bytes
		// so the label still misses the alias table and gets flagged.
		folded = label
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// LookupFuelLabel folds a raw source label and resolves it against the
// versioned alias table.
func LookupFuelLabel(label string) (FuelType, bool) {
	return LookupFuelAlias(FoldLabel(label))
}
