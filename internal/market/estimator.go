package market

import (
	"fmt"
	"log/slog"

	"github.com/fuelmx/pipa/internal/model"
)

// DefaultImputedRatioThreshold is the volume-provenance share above which an
// estimate downgrades to the population-derived path.
const DefaultImputedRatioThreshold = 0.20

// DefaultMXNPerUSD is the reference exchange rate used for the USD
// presentation conversion when none is configured.
const DefaultMXNPerUSD = 20.0

// Config holds estimator tuning.
type Config struct {
	// ImputedRatioThreshold is the maximum share of imputed volume
	// contributions for which the measured path still applies.
	ImputedRatioThreshold float64
	// MXNPerUSD is the reference rate for the value_usd field.
	MXNPerUSD float64
	// PerCapita overrides DefaultPerCapita when non-nil.
	PerCapita map[model.FuelType]float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ImputedRatioThreshold: DefaultImputedRatioThreshold,
		MXNPerUSD:             DefaultMXNPerUSD,
	}
}

// Estimator turns aggregate buckets into market value estimates. It treats
// the population table as a read-only external collaborator.
type Estimator struct {
	population *PopulationTable
	perCapita  map[model.FuelType]float64
	threshold  float64
	mxnPerUSD  float64
}

// New creates an Estimator over the given population proxy.
func New(population *PopulationTable, cfg Config) *Estimator {
	perCapita := cfg.PerCapita
	if perCapita == nil {
		perCapita = DefaultPerCapita
	}
	threshold := cfg.ImputedRatioThreshold
	if threshold <= 0 {
		threshold = DefaultImputedRatioThreshold
	}
	rate := cfg.MXNPerUSD
	if rate <= 0 {
		rate = DefaultMXNPerUSD
	}
	return &Estimator{
		population: population,
		perCapita:  perCapita,
		threshold:  threshold,
		mxnPerUSD:  rate,
	}
}

// Threshold reports the configured imputed-ratio threshold, for the
// artifact header.
func (e *Estimator) Threshold() float64 { return e.threshold }

// MXNPerUSD reports the configured reference rate, for the artifact header.
func (e *Estimator) MXNPerUSD() float64 { return e.mxnPerUSD }

// EstimateAll produces one estimate per bucket, in bucket order. A failed
// estimate carries Failed=true with ESTIMATION_UNDEFINED and is omitted from
// the artifact; the bucket's aggregate is preserved either way.
func (e *Estimator) EstimateAll(buckets []model.AggregateBucket) []model.MarketValueEstimate {
	estimates := make([]model.MarketValueEstimate, 0, len(buckets))
	failed := 0
	for i := range buckets {
		est := e.Estimate(&buckets[i])
		if est.Failed {
			failed++
			slog.Debug("estimate undefined", "bucket", est.Key.String(), "detail", est.Reason)
		}
		estimates = append(estimates, est)
	}
	if failed > 0 {
		slog.Info("some bucket estimates were undefined", "failed", failed, "total", len(buckets))
	}
	return estimates
}

// Estimate derives the market value for one bucket. When volume provenance
// is predominantly measured, value = mean price × total volume with HIGH
// confidence. Otherwise the estimate falls back to mean price × population ×
// per-capita consumption, tagged POPULATION_DERIVED with LOW confidence so
// consumers can tell measured from inferred value.
func (e *Estimator) Estimate(bucket *model.AggregateBucket) model.MarketValueEstimate {
	est := model.MarketValueEstimate{Key: bucket.Key}

	meanPrice := bucket.Price.Mean
	if bucket.Price.Count == 0 || meanPrice <= 0 {
		return e.fail(est, "bucket has no usable price")
	}

	population, hasPopulation := e.population.Lookup(bucket.Key.GeoKey, bucket.Key.Period.Year)
	if hasPopulation && population > 0 && bucket.TotalVolume > 0 {
		est.VolumePerCapita = bucket.TotalVolume / population
	}

	if bucket.Provenance.ImputedVolumeRatio() <= e.threshold {
		est.Value = meanPrice * bucket.TotalVolume
		est.ValueUSD = est.Value / e.mxnPerUSD
		est.Confidence = model.ConfidenceHigh
		est.Basis = model.BasisMeasured
		return est
	}

	if !hasPopulation {
		return e.fail(est, fmt.Sprintf("no population proxy for geography %q year %d", bucket.Key.GeoKey, bucket.Key.Period.Year))
	}
	if population <= 0 {
		return e.fail(est, "population proxy is zero")
	}

	perCapita := e.perCapita[bucket.Key.Fuel]
	if perCapita <= 0 {
		return e.fail(est, fmt.Sprintf("no per-capita constant for fuel %s", bucket.Key.Fuel))
	}
	if bucket.Key.Period.Kind == model.PeriodMonth {
		perCapita /= 12
	}

	est.Value = meanPrice * population * perCapita
	est.ValueUSD = est.Value / e.mxnPerUSD
	est.Confidence = model.ConfidenceLow
	est.Basis = model.BasisPopulationDerived
	return est
}

func (e *Estimator) fail(est model.MarketValueEstimate, detail string) model.MarketValueEstimate {
	est.Failed = true
	est.Reason = model.ReasonEstimationUndefined
	est.Detail = detail
	return est
}
