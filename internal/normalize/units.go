package normalize

// litersPerGallon is the US liquid gallon, which is what the handful of
// gallon-denominated filings use.
const litersPerGallon = 3.785411784

// unitFactors maps folded price-unit labels to the multiplier that converts
// the reported figure to pesos per liter. An empty unit means the filing
// used the regulator's default, which is already pesos per liter. Anything
// absent from this table is an UNKNOWN_UNIT rejection.
var unitFactors = map[string]float64{
	"":            1,
	"mxn/l":       1,
	"mxn/litro":   1,
	"pesos/litro": 1,
	"$/l":         1,
	"centavos/l":  0.01,
	"mxn/gal":     1 / litersPerGallon,
	"pesos/galon": 1 / litersPerGallon,
}

// unitFactor resolves a raw unit label to a per-liter conversion factor.
func unitFactor(raw string) (float64, bool) {
	f, ok := unitFactors[foldUnit(raw)]
	return f, ok
}
