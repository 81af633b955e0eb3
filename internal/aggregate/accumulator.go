// Package aggregate computes grouped statistics across geography, fuel type,
// and time in a single streaming pass. Accumulation is associative and
// commutative per bucket: partial per-worker accumulators merge into exactly
// the result sequential processing would produce, because every finalized
// statistic is recomputed from sorted buffers rather than running sums.
package aggregate

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fuelmx/pipa/internal/model"
)

// Accumulator collects the mergeable state for one bucket key.
type Accumulator struct {
	prices   []float64
	volumes  []float64
	stations map[string]struct{}

	count         int
	okCount       int
	imputedCount  int
	volumeOK      int
	volumeImputed int

	// Resolved-only tallies, maintained at national granularity where
	// records without resolved geography are admitted (see engine.go).
	resolvedCount    int
	resolvedStations map[string]struct{}

	// Municipality set, maintained at state granularity for the
	// stations-per-municipality density figure.
	municipalities map[string]struct{}
}

func newAccumulator() *Accumulator {
	return &Accumulator{
		stations:         make(map[string]struct{}),
		resolvedStations: make(map[string]struct{}),
		municipalities:   make(map[string]struct{}),
	}
}

func (a *Accumulator) add(obs *model.CleanedObservation) {
	a.count++
	a.stations[obs.StationID] = struct{}{}

	if obs.Flag == model.FlagImputed {
		a.imputedCount++
	} else {
		a.okCount++
	}

	if obs.HasPrice {
		a.prices = append(a.prices, obs.PricePerLiter)
	}
	if obs.HasVolume {
		a.volumes = append(a.volumes, obs.Volume)
		if obs.VolumeImputed {
			a.volumeImputed++
		} else {
			a.volumeOK++
		}
	}

	if obs.Resolved() {
		a.resolvedCount++
		a.resolvedStations[obs.StationID] = struct{}{}
		a.municipalities[obs.MunicipalityCode] = struct{}{}
	}
}

// Merge folds another accumulator for the same bucket key into this one.
// The combine is pure set/slice union plus integer sums, so merge order
// cannot affect the finalized bucket.
func (a *Accumulator) Merge(other *Accumulator) {
	a.prices = append(a.prices, other.prices...)
	a.volumes = append(a.volumes, other.volumes...)
	for id := range other.stations {
		a.stations[id] = struct{}{}
	}
	for id := range other.resolvedStations {
		a.resolvedStations[id] = struct{}{}
	}
	for id := range other.municipalities {
		a.municipalities[id] = struct{}{}
	}
	a.count += other.count
	a.okCount += other.okCount
	a.imputedCount += other.imputedCount
	a.volumeOK += other.volumeOK
	a.volumeImputed += other.volumeImputed
	a.resolvedCount += other.resolvedCount
}

// finalize computes the bucket statistics. Buffers are sorted first so sums
// and quantiles are reproducible bit-for-bit regardless of accumulation or
// merge order.
func (a *Accumulator) finalize(key model.BucketKey) model.AggregateBucket {
	bucket := model.AggregateBucket{
		Key:          key,
		StationCount: len(a.stations),
		Provenance: model.Provenance{
			OK:            a.okCount,
			Imputed:       a.imputedCount,
			VolumeOK:      a.volumeOK,
			VolumeImputed: a.volumeImputed,
		},
	}

	sort.Float64s(a.prices)
	if n := len(a.prices); n > 0 {
		bucket.Price = model.PriceSummary{
			Min:    a.prices[0],
			Max:    a.prices[n-1],
			Mean:   stat.Mean(a.prices, nil),
			Median: nearestRank(a.prices, 50),
			P10:    nearestRank(a.prices, 10),
			P90:    nearestRank(a.prices, 90),
			StdDev: stat.PopStdDev(a.prices, nil),
			Count:  n,
		}
	}

	sort.Float64s(a.volumes)
	if n := len(a.volumes); n > 0 {
		var total float64
		for _, v := range a.volumes {
			total += v
		}
		bucket.TotalVolume = total
		bucket.MeanVolume = total / float64(n)
	}

	switch key.Granularity {
	case model.GranularityNational:
		bucket.ResolvedCount = a.resolvedCount
		bucket.ResolvedStations = len(a.resolvedStations)
	case model.GranularityState:
		bucket.MunicipalityCount = len(a.municipalities)
		if len(a.municipalities) > 0 {
			bucket.StationsPerMun = float64(len(a.stations)) / float64(len(a.municipalities))
		}
	}

	return bucket
}

// nearestRank returns the p-th percentile of a sorted slice using the
// nearest-rank method: the value at rank ceil(p/100 * n). The method is part
// of the artifact contract; it is exact and merge-order independent.
func nearestRank(sorted []float64, p int) float64 {
	n := len(sorted)
	rank := (p*n + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
