package model

import (
	"fmt"
	"time"
)

// Granularity is the geographic aggregation level.
type Granularity string

// Granularity constants, coarsest first.
const (
	GranularityNational     Granularity = "national"
	GranularityState        Granularity = "state"
	GranularityMunicipality Granularity = "municipality"
)

// Granularities lists the aggregation levels in stable order.
var Granularities = []Granularity{GranularityNational, GranularityState, GranularityMunicipality}

// PeriodKind is the temporal aggregation level.
type PeriodKind string

// Period kind constants.
const (
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

// Period is a concrete time bucket. Month is zero for year periods.
type Period struct {
	Kind  PeriodKind
	Year  int
	Month time.Month
}

// PeriodOf buckets a report date at the given kind.
func PeriodOf(date time.Time, kind PeriodKind) Period {
	p := Period{Kind: kind, Year: date.Year()}
	if kind == PeriodMonth {
		p.Month = date.Month()
	}
	return p
}

// Key renders the period in its canonical sortable form: "2024" or "2024-03".
func (p Period) Key() string {
	if p.Kind == PeriodMonth {
		return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
	}
	return fmt.Sprintf("%04d", p.Year)
}

// BucketKey identifies one AggregateBucket. GeoKey is empty at national
// granularity, the state code at state granularity, and "state-municipality"
// at municipality granularity.
type BucketKey struct {
	Granularity Granularity
	GeoKey      string
	Fuel        FuelType
	Period      Period
}

// String renders the key for logs and error messages.
func (k BucketKey) String() string {
	geo := k.GeoKey
	if geo == "" {
		geo = "MX"
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Granularity, geo, k.Fuel, k.Period.Key())
}

// PriceSummary holds the distribution summary for prices in a bucket, in
// pesos per liter. Quantiles are computed with the nearest-rank method over
// the fully materialized sorted price list; the method is part of the output
// contract.
type PriceSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// Provenance counts how many observations of each quality contributed to a
// bucket, with a separate tally for the volume field since volume is the
// only imputed field.
type Provenance struct {
	OK            int `json:"ok"`
	Imputed       int `json:"imputed"`
	VolumeOK      int `json:"volume_ok"`
	VolumeImputed int `json:"volume_imputed"`
}

// ImputedVolumeRatio is the share of volume contributions that were imputed.
// A bucket with no volume data at all reports 1 so it can never be treated
// as measured.
func (p Provenance) ImputedVolumeRatio() float64 {
	total := p.VolumeOK + p.VolumeImputed
	if total == 0 {
		return 1
	}
	return float64(p.VolumeImputed) / float64(total)
}

// AggregateBucket is the finalized grouped statistic for one key.
type AggregateBucket struct {
	Key          BucketKey    `json:"-"`
	StationCount int          `json:"station_count"`
	Price        PriceSummary `json:"price"`
	TotalVolume  float64      `json:"total_volume"`
	MeanVolume   float64      `json:"mean_volume"`
	Provenance   Provenance   `json:"provenance"`

	// National buckets additionally carry the resolved-only observation and
	// station tallies used by the hierarchical consistency check, since
	// national aggregation admits records without resolved geography.
	ResolvedCount    int `json:"resolved_count,omitempty"`
	ResolvedStations int `json:"resolved_stations,omitempty"`

	// State buckets carry station-density figures for the presentation layer.
	MunicipalityCount int     `json:"municipality_count,omitempty"`
	StationsPerMun    float64 `json:"stations_per_municipality,omitempty"`
}
