package pipeline

import (
	"sort"

	"github.com/fuelmx/pipa/internal/artifact"
	"github.com/fuelmx/pipa/internal/model"
)

// summarizeQuality tallies per-record outcomes after filtering.
func summarizeQuality(observations []model.CleanedObservation) artifact.QualitySummary {
	summary := artifact.QualitySummary{
		Total:    len(observations),
		ByReason: make(map[string]int),
	}
	for i := range observations {
		obs := &observations[i]
		switch obs.Flag {
		case model.FlagOK:
			summary.OK++
		case model.FlagImputed:
			summary.Imputed++
		case model.FlagRejected:
			summary.Rejected++
		}
		if obs.Reason != "" {
			summary.ByReason[string(obs.Reason)]++
		}
	}
	return summary
}

// summarizeCoverage counts distinct reporting stations per year, overall and
// per fuel, over the observations that survived filtering.
func summarizeCoverage(observations []model.CleanedObservation) []artifact.CoverageRecord {
	type yearSet struct {
		total  map[string]struct{}
		byFuel map[model.FuelType]map[string]struct{}
	}
	years := make(map[int]*yearSet)

	for i := range observations {
		obs := &observations[i]
		if !obs.Aggregable() || obs.ReportDate.IsZero() {
			continue
		}
		year := obs.ReportDate.Year()
		ys := years[year]
		if ys == nil {
			ys = &yearSet{
				total:  make(map[string]struct{}),
				byFuel: make(map[model.FuelType]map[string]struct{}),
			}
			years[year] = ys
		}
		ys.total[obs.StationID] = struct{}{}
		fs := ys.byFuel[obs.Fuel]
		if fs == nil {
			fs = make(map[string]struct{})
			ys.byFuel[obs.Fuel] = fs
		}
		fs[obs.StationID] = struct{}{}
	}

	records := make([]artifact.CoverageRecord, 0, len(years))
	for year, ys := range years {
		rec := artifact.CoverageRecord{
			Year:          year,
			TotalStations: len(ys.total),
		}
		for _, fuel := range model.FuelTypes {
			fs, ok := ys.byFuel[fuel]
			if !ok {
				continue
			}
			cov := artifact.FuelCoverage{
				Fuel:     string(fuel),
				Stations: len(fs),
			}
			if rec.TotalStations > 0 {
				cov.Share = float64(len(fs)) / float64(rec.TotalStations)
			}
			rec.ByFuel = append(rec.ByFuel, cov)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Year < records[j].Year })
	return records
}
