package aggregate

import (
	"sort"

	"github.com/fuelmx/pipa/internal/model"
)

// PercentileMethod names the quantile computation embedded in the artifact
// header. Nearest-rank is the only exact, merge-order-independent method the
// engine implements.
const PercentileMethod = "nearest-rank"

// Engine rolls cleaned observations up into municipality, state, and
// national buckets concurrently from a single pass. It holds only
// configuration; all mutable state lives in per-worker Accumulators.
type Engine struct {
	periods []model.PeriodKind
}

// New creates an Engine aggregating over the given period kinds.
func New(periods []model.PeriodKind) *Engine {
	if len(periods) == 0 {
		periods = []model.PeriodKind{model.PeriodMonth, model.PeriodYear}
	}
	return &Engine{periods: periods}
}

// Accumulators is one worker's partial bucket state.
type Accumulators map[model.BucketKey]*Accumulator

// NewAccumulators creates an empty partial state.
func (e *Engine) NewAccumulators() Accumulators {
	return make(Accumulators)
}

// Add routes one observation into every bucket it belongs to. OK and IMPUTED
// observations contribute at all three granularities. A record rejected
// solely for unresolved geography contributes to national buckets only:
// national aggregation requires a valid price/fuel/period, not a resolved
// sub-geography. All other rejected records contribute nowhere.
func (e *Engine) Add(acc Accumulators, obs *model.CleanedObservation) {
	nationalOnly := obs.NationalOnly()
	if !obs.Aggregable() && !nationalOnly {
		return
	}

	for _, kind := range e.periods {
		period := model.PeriodOf(obs.ReportDate, kind)

		e.bucket(acc, model.BucketKey{
			Granularity: model.GranularityNational,
			Fuel:        obs.Fuel,
			Period:      period,
		}).add(obs)

		if nationalOnly {
			continue
		}

		e.bucket(acc, model.BucketKey{
			Granularity: model.GranularityState,
			GeoKey:      obs.StateCode,
			Fuel:        obs.Fuel,
			Period:      period,
		}).add(obs)

		e.bucket(acc, model.BucketKey{
			Granularity: model.GranularityMunicipality,
			GeoKey:      obs.StateCode + "-" + obs.MunicipalityCode,
			Fuel:        obs.Fuel,
			Period:      period,
		}).add(obs)
	}
}

// Merge folds src into dst using the same associative combine rule applied
// during single-threaded processing, so parallel and sequential execution
// produce identical buckets.
func Merge(dst, src Accumulators) {
	for key, partial := range src {
		if existing, ok := dst[key]; ok {
			existing.Merge(partial)
		} else {
			dst[key] = partial
		}
	}
}

// Finalize verifies hierarchical consistency and produces the finished
// buckets in canonical order.
func (e *Engine) Finalize(acc Accumulators) ([]model.AggregateBucket, error) {
	if err := verify(acc); err != nil {
		return nil, err
	}

	buckets := make([]model.AggregateBucket, 0, len(acc))
	for key, a := range acc {
		buckets = append(buckets, a.finalize(key))
	}
	sort.Slice(buckets, func(i, j int) bool {
		return lessKey(buckets[i].Key, buckets[j].Key)
	})
	return buckets, nil
}

func (e *Engine) bucket(acc Accumulators, key model.BucketKey) *Accumulator {
	a, ok := acc[key]
	if !ok {
		a = newAccumulator()
		acc[key] = a
	}
	return a
}

// lessKey orders bucket keys canonically: granularity (coarse first), then
// geography, fuel, and period.
func lessKey(a, b model.BucketKey) bool {
	if a.Granularity != b.Granularity {
		return granularityRank(a.Granularity) < granularityRank(b.Granularity)
	}
	if a.GeoKey != b.GeoKey {
		return a.GeoKey < b.GeoKey
	}
	if a.Fuel != b.Fuel {
		return a.Fuel < b.Fuel
	}
	return a.Period.Key() < b.Period.Key()
}

func granularityRank(g model.Granularity) int {
	for i, known := range model.Granularities {
		if g == known {
			return i
		}
	}
	return len(model.Granularities)
}
