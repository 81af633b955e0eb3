// Package artifact serializes pipeline output into a stable, versioned
// format consumed by the presentation layer. Output is deterministic:
// identical inputs and component versions produce byte-identical files, so a
// diff between runs is a correctness signal.
package artifact

import (
	"github.com/fuelmx/pipa/internal/model"
)

// SchemaVersion is embedded in every artifact and checked by consumers.
const SchemaVersion = 1

// Header carries the schema version plus every knob that shapes the numbers,
// so two artifacts are comparable only when their headers match. It contains
// no timestamps or run identifiers: those would break idempotence.
type Header struct {
	SchemaVersion         int      `json:"schema_version"`
	PercentileMethod      string   `json:"percentile_method"`
	MADThreshold          float64  `json:"mad_threshold"`
	ImputedRatioThreshold float64  `json:"imputed_ratio_threshold"`
	MXNPerUSD             float64  `json:"mxn_per_usd"`
	FuelAliasTableVersion int      `json:"fuel_alias_table_version"`
	Periods               []string `json:"periods"`
}

// BucketRecord is one AggregateBucket flattened for serialization.
type BucketRecord struct {
	Granularity string `json:"granularity"`
	GeoKey      string `json:"geo_key"`
	Fuel        string `json:"fuel"`
	Period      string `json:"period"`
	model.AggregateBucket
}

// EstimateRecord is one MarketValueEstimate flattened for serialization.
type EstimateRecord struct {
	Granularity string `json:"granularity"`
	GeoKey      string `json:"geo_key"`
	Fuel        string `json:"fuel"`
	Period      string `json:"period"`
	model.MarketValueEstimate
}

// FuelCoverage reports how many distinct stations sold a fuel in a year.
type FuelCoverage struct {
	Fuel     string  `json:"fuel"`
	Stations int     `json:"stations"`
	Share    float64 `json:"share"`
}

// CoverageRecord is the per-year station coverage summary.
type CoverageRecord struct {
	Year          int            `json:"year"`
	TotalStations int            `json:"total_stations"`
	ByFuel        []FuelCoverage `json:"by_fuel"`
}

// QualitySummary aggregates the run's per-record outcomes by reason code.
type QualitySummary struct {
	Total    int            `json:"total"`
	OK       int            `json:"ok"`
	Imputed  int            `json:"imputed"`
	Rejected int            `json:"rejected"`
	ByReason map[string]int `json:"by_reason"`
}

// Artifact is the complete output document.
type Artifact struct {
	Header    Header           `json:"header"`
	Quality   QualitySummary   `json:"quality"`
	Coverage  []CoverageRecord `json:"coverage"`
	Buckets   []BucketRecord   `json:"buckets"`
	Estimates []EstimateRecord `json:"estimates"`
}
