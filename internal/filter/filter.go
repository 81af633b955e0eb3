// Package filter screens statistically implausible prices and classifies
// missing fields, per cohort. A cohort is the comparison population sharing
// fuel type, state, and calendar month; an observation without resolved
// geography is judged against the national cohort for its fuel and month.
package filter

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fuelmx/pipa/internal/model"
)

// minCohortSize is the smallest priced population that supports outlier
// screening. Below it the median and MAD say nothing useful, so screening is
// skipped and prices are trusted.
const minCohortSize = 4

// DefaultMADThreshold is the default number of median absolute deviations
// beyond which a price is rejected.
const DefaultMADThreshold = 5.0

// zeroSpreadTolerance absorbs rounding noise when a cohort has no price
// spread at all. With MAD = 0 any real deviation exceeds every multiple of
// the MAD, so prices more than half a centavo from the median are rejected.
const zeroSpreadTolerance = 0.005

type cohortKey struct {
	fuel   model.FuelType
	state  string // empty for the national cohort
	period string // month key
}

// cohortStats is the read-only per-cohort summary workers consult.
type cohortStats struct {
	median        float64
	mad           float64
	priceCount    int
	meanOKVolume  float64
	hasVolumeMean bool
}

// Filter holds fitted cohort statistics. Fit must complete before Apply is
// called; afterwards the filter is read-only and safe for concurrent use.
type Filter struct {
	stats        map[cohortKey]cohortStats
	madThreshold float64
}

// New creates a Filter with the given MAD threshold.
func New(madThreshold float64) *Filter {
	if madThreshold <= 0 {
		madThreshold = DefaultMADThreshold
	}
	return &Filter{madThreshold: madThreshold}
}

// Fit computes per-cohort medians, MADs, and mean OK volumes from the
// geography-resolved observation stream. Volume means deliberately exclude
// observations the price screen will reject, since those records contribute
// to no bucket.
func (f *Filter) Fit(observations []model.CleanedObservation) {
	prices := make(map[cohortKey][]float64)
	for i := range observations {
		obs := &observations[i]
		if !eligible(obs) || !obs.HasPrice {
			continue
		}
		for _, key := range cohortKeys(obs) {
			prices[key] = append(prices[key], obs.PricePerLiter)
		}
	}

	f.stats = make(map[cohortKey]cohortStats, len(prices))
	for key, cohort := range prices {
		sort.Float64s(cohort)
		f.stats[key] = cohortStats{
			median:     quantile(cohort, 0.5),
			mad:        mad(cohort),
			priceCount: len(cohort),
		}
	}

	// Second pass: mean volume of observations that survive the price
	// screen, per cohort.
	volumes := make(map[cohortKey][]float64)
	for i := range observations {
		obs := &observations[i]
		if !eligible(obs) || !obs.HasVolume {
			continue
		}
		if obs.HasPrice && f.isOutlier(primaryCohort(obs), obs.PricePerLiter) {
			continue
		}
		for _, key := range cohortKeys(obs) {
			volumes[key] = append(volumes[key], obs.Volume)
		}
	}
	for key, cohort := range volumes {
		sort.Float64s(cohort) // fixed summation order keeps the mean reproducible
		s := f.stats[key]
		s.meanOKVolume = stat.Mean(cohort, nil)
		s.hasVolumeMean = true
		f.stats[key] = s
	}
}

// Apply classifies one observation against the fitted cohorts. Records
// already rejected upstream pass through untouched, except that a record
// rejected solely for unresolved geography is still price-screened against
// the national cohort, since it remains eligible for national aggregation.
func (f *Filter) Apply(obs model.CleanedObservation) model.CleanedObservation {
	if obs.Flag == model.FlagRejected && !obs.NationalOnly() {
		return obs
	}

	if !obs.HasPrice && !obs.HasVolume {
		obs.Flag = model.FlagRejected
		obs.Reason = model.ReasonInsufficientData
		obs.Detail = "record reports neither price nor volume"
		return obs
	}

	if obs.HasPrice {
		key := primaryCohort(&obs)
		if f.isOutlier(key, obs.PricePerLiter) {
			s := f.stats[key]
			obs.Flag = model.FlagRejected
			obs.Reason = model.ReasonPriceOutlier
			if s.mad == 0 {
				obs.Detail = fmt.Sprintf("price %.2f deviates from zero-spread cohort median %.2f",
					obs.PricePerLiter, s.median)
			} else {
				obs.Detail = fmt.Sprintf("price %.2f is %.1f MADs from cohort median %.2f",
					obs.PricePerLiter, math.Abs(obs.PricePerLiter-s.median)/s.mad, s.median)
			}
			return obs
		}
	}

	// Missing volume is never treated as zero: impute the cohort mean when
	// one exists, and keep the record IMPUTED either way so bucket
	// provenance reflects it. Unresolved-geography records stay REJECTED
	// and are not imputed.
	if !obs.HasVolume && obs.Flag != model.FlagRejected {
		obs.Flag = model.FlagImputed
		obs.Reason = model.ReasonMissingVolume
		if s, ok := f.stats[primaryCohort(&obs)]; ok && s.hasVolumeMean {
			obs.Volume = s.meanOKVolume
			obs.HasVolume = true
			obs.VolumeImputed = true
			obs.Detail = fmt.Sprintf("volume imputed from cohort mean %.2f", s.meanOKVolume)
		} else {
			obs.Detail = "volume missing and cohort has no measured volumes to impute from"
		}
	}

	return obs
}

// MADThreshold reports the configured threshold, for the artifact header.
func (f *Filter) MADThreshold() float64 {
	return f.madThreshold
}

func (f *Filter) isOutlier(key cohortKey, price float64) bool {
	s, ok := f.stats[key]
	if !ok || s.priceCount < minCohortSize {
		// A cohort this small gives no screening signal.
		return false
	}
	if s.mad == 0 {
		// Zero spread: the whole cohort sits on the median, so any price
		// beyond rounding distance is more than threshold*MAD away.
		return math.Abs(price-s.median) > zeroSpreadTolerance
	}
	return math.Abs(price-s.median) > f.madThreshold*s.mad
}

// eligible reports whether an observation contributes to cohort statistics.
func eligible(obs *model.CleanedObservation) bool {
	return obs.Flag != model.FlagRejected || obs.NationalOnly()
}

// primaryCohort is the cohort an observation is judged against: its state
// cohort when geography resolved, the national cohort otherwise.
func primaryCohort(obs *model.CleanedObservation) cohortKey {
	return cohortKey{
		fuel:   obs.Fuel,
		state:  obs.StateCode,
		period: model.PeriodOf(obs.ReportDate, model.PeriodMonth).Key(),
	}
}

// cohortKeys lists the cohorts an observation feeds statistics into: its
// own, plus the national cohort so unresolved-geography records always have
// a comparison population.
func cohortKeys(obs *model.CleanedObservation) []cohortKey {
	primary := primaryCohort(obs)
	if primary.state == "" {
		return []cohortKey{primary}
	}
	national := primary
	national.state = ""
	return []cohortKey{primary, national}
}

// quantile returns the nearest-rank quantile of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// mad returns the median absolute deviation of a sorted slice.
func mad(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	median := quantile(sorted, 0.5)
	devs := make([]float64, len(sorted))
	for i, v := range sorted {
		devs[i] = math.Abs(v - median)
	}
	sort.Float64s(devs)
	return quantile(devs, 0.5)
}
