package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
)

// volumeTolerance bounds the acceptable relative drift between a parent
// bucket's volume total and the sum of its children. Totals are recomputed
// from sorted buffers, so any drift beyond float rounding is a bug.
const volumeTolerance = 1e-9

// verify cross-checks the hierarchical consistency invariant after
// accumulation: every state bucket must equal the aggregation of its
// municipality buckets, and every national bucket's resolved tallies must
// equal the aggregation of its state buckets. A mismatch indicates a
// geography-resolution or accumulation bug and fails the whole run.
func verify(acc Accumulators) error {
	type groupKey struct {
		fuel   model.FuelType
		period string
	}

	states := make(map[groupKey]map[string]*Accumulator)
	munis := make(map[groupKey]map[string]*Accumulator)
	nationals := make(map[groupKey]*Accumulator)

	for key, a := range acc {
		gk := groupKey{fuel: key.Fuel, period: key.Period.Key()}
		switch key.Granularity {
		case model.GranularityNational:
			nationals[gk] = a
		case model.GranularityState:
			if states[gk] == nil {
				states[gk] = make(map[string]*Accumulator)
			}
			states[gk][key.GeoKey] = a
		case model.GranularityMunicipality:
			if munis[gk] == nil {
				munis[gk] = make(map[string]*Accumulator)
			}
			munis[gk][key.GeoKey] = a
		}
	}

	// Deterministic iteration so a failure always names the same first key.
	groups := make([]groupKey, 0, len(nationals))
	for gk := range nationals {
		groups = append(groups, gk)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].fuel != groups[j].fuel {
			return groups[i].fuel < groups[j].fuel
		}
		return groups[i].period < groups[j].period
	})

	for _, gk := range groups {
		national := nationals[gk]

		var stateCount int
		var stateVolume float64
		stateStations := make(map[string]struct{})
		for _, sa := range states[gk] {
			stateCount += sa.count
			stateVolume += sumSorted(sa.volumes)
			for id := range sa.stations {
				stateStations[id] = struct{}{}
			}
		}

		if stateCount != national.resolvedCount {
			return fmt.Errorf("%w: %s/%s: state observation sum %d != national resolved count %d",
				common.ErrConsistency, gk.fuel, gk.period, stateCount, national.resolvedCount)
		}
		if len(stateStations) != len(national.resolvedStations) {
			return fmt.Errorf("%w: %s/%s: state station union %d != national resolved stations %d",
				common.ErrConsistency, gk.fuel, gk.period, len(stateStations), len(national.resolvedStations))
		}

		for _, geo := range sortedKeys(states[gk]) {
			sa := states[gk][geo]
			var muniCount int
			var muniVolume float64
			muniStations := make(map[string]struct{})
			for muniGeo, ma := range munis[gk] {
				if !strings.HasPrefix(muniGeo, geo+"-") {
					continue
				}
				muniCount += ma.count
				muniVolume += sumSorted(ma.volumes)
				for id := range ma.stations {
					muniStations[id] = struct{}{}
				}
			}

			if muniCount != sa.count {
				return fmt.Errorf("%w: %s/%s/%s: municipality observation sum %d != state count %d",
					common.ErrConsistency, gk.fuel, gk.period, geo, muniCount, sa.count)
			}
			if len(muniStations) != len(sa.stations) {
				return fmt.Errorf("%w: %s/%s/%s: municipality station union %d != state stations %d",
					common.ErrConsistency, gk.fuel, gk.period, geo, len(muniStations), len(sa.stations))
			}
			if !closeEnough(muniVolume, sumSorted(sa.volumes)) {
				return fmt.Errorf("%w: %s/%s/%s: municipality volume sum %.6f != state volume %.6f",
					common.ErrConsistency, gk.fuel, gk.period, geo, muniVolume, sumSorted(sa.volumes))
			}
		}
	}

	return nil
}

func sumSorted(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var total float64
	for _, v := range sorted {
		total += v
	}
	return total
}

func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= volumeTolerance*scale
}

func sortedKeys(m map[string]*Accumulator) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
