package model

// Confidence tags a market value estimate by the quality of its inputs.
type Confidence string

// Confidence constants.
const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// ValueBasis records which inputs produced an estimate.
type ValueBasis string

// Value basis constants.
const (
	BasisMeasured          ValueBasis = "MEASURED"
	BasisPopulationDerived ValueBasis = "POPULATION_DERIVED"
)

// MarketValueEstimate is the estimated total market value for one bucket,
// in pesos, with a USD reference conversion for presentation.
type MarketValueEstimate struct {
	Key             BucketKey  `json:"-"`
	Value           float64    `json:"value_mxn"`
	ValueUSD        float64    `json:"value_usd"`
	Confidence      Confidence `json:"confidence"`
	Basis           ValueBasis `json:"basis"`
	VolumePerCapita float64    `json:"volume_per_capita,omitempty"`
	Failed          bool       `json:"failed,omitempty"`
	Reason          ReasonCode `json:"reason,omitempty"`
	Detail          string     `json:"-"`
}
