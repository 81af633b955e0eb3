// Package model defines the core domain models used throughout the pipeline.
package model

// FuelType is the closed enumeration of fuel products tracked by the pipeline.
type FuelType string

// Fuel type constants.
const (
	FuelRegular FuelType = "Regular"
	FuelPremium FuelType = "Premium"
	FuelDiesel  FuelType = "Diesel"
)

// FuelTypes lists every known fuel type in stable order.
var FuelTypes = []FuelType{FuelRegular, FuelPremium, FuelDiesel}

// Valid reports whether the fuel type is one of the enumerated products.
func (f FuelType) Valid() bool {
	switch f {
	case FuelRegular, FuelPremium, FuelDiesel:
		return true
	}
	return false
}

// FuelAliasTableVersion identifies the synonym table shipped with this build.
// Bump it whenever an alias is added so artifact consumers can tell which
// labels were recognized.
const FuelAliasTableVersion = 3

// fuelAliases maps folded (lowercase, accent-stripped) source labels to
// canonical fuel types. Regulator filings are inconsistent about sub-product
// names; anything not in this table is a data-quality finding, not a guess.
var fuelAliases = map[string]FuelType{
	"regular":                FuelRegular,
	"regular (87 octanos)":   FuelRegular,
	"magna":                  FuelRegular,
	"gasolina regular":       FuelRegular,
	"premium":                FuelPremium,
	"premium (92 octanos)":   FuelPremium,
	"gasolina premium":       FuelPremium,
	"diesel":                 FuelDiesel,
	"diesel automotriz":      FuelDiesel,
	"diesel agricola-marino": FuelDiesel,
	"duba":                   FuelDiesel,
}

// LookupFuelAlias resolves a folded source label to a canonical fuel type.
// The caller is responsible for folding; see FoldLabel.
func LookupFuelAlias(folded string) (FuelType, bool) {
	fuel, ok := fuelAliases[folded]
	return fuel, ok
}
