// Package market derives market value estimates from aggregate buckets and
// an external population/demand proxy.
package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
)

// PopulationTable is the versioned, read-only population proxy: geography
// key → year → population estimate. The pipeline never computes it, only
// consumes it. The national figure for a year is the sum of its state rows
// unless the table carries an explicit national row (empty geo_key).
type PopulationTable struct {
	byGeo map[string]map[int]float64
}

// LoadPopulation reads the proxy table. Expected columns: geo_key, year,
// population. geo_key is a state code, or empty for an explicit national row.
func LoadPopulation(path string) (*PopulationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: population table %s: %v", common.ErrMissingReference, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close population table", "path", path, "error", cerr)
		}
	}()

	return loadPopulation(f, path)
}

func loadPopulation(src io.Reader, path string) (*PopulationTable, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read population header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"geo_key", "year", "population"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: population table %s missing column %q", common.ErrMissingReference, path, name)
		}
	}

	table := &PopulationTable{byGeo: make(map[string]map[int]float64)}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read population row: %w", err)
		}
		line++

		year, err := strconv.Atoi(strings.TrimSpace(row[cols["year"]]))
		if err != nil {
			return nil, fmt.Errorf("population table %s line %d: bad year: %w", path, line, err)
		}
		pop, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[cols["population"]]), ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("population table %s line %d: bad population: %w", path, line, err)
		}

		geo := strings.TrimSpace(row[cols["geo_key"]])
		if table.byGeo[geo] == nil {
			table.byGeo[geo] = make(map[int]float64)
		}
		table.byGeo[geo][year] = pop
	}

	if len(table.byGeo) == 0 {
		return nil, fmt.Errorf("%w: population table %s has no rows", common.ErrMissingReference, path)
	}

	slog.Info("loaded population proxy table", "geographies", len(table.byGeo))
	return table, nil
}

// Lookup returns the population estimate for a geography key and year.
// National lookups (empty geo key) fall back to summing state rows when no
// explicit national row exists.
func (t *PopulationTable) Lookup(geoKey string, year int) (float64, bool) {
	if years, ok := t.byGeo[geoKey]; ok {
		if pop, ok := years[year]; ok {
			return pop, true
		}
	}
	if geoKey != "" {
		return 0, false
	}

	// Sum state rows in sorted key order so the float result is identical
	// across calls and runs.
	geos := make([]string, 0, len(t.byGeo))
	for geo := range t.byGeo {
		if geo != "" {
			geos = append(geos, geo)
		}
	}
	sort.Strings(geos)

	var total float64
	var found bool
	for _, geo := range geos {
		if pop, ok := t.byGeo[geo][year]; ok {
			total += pop
			found = true
		}
	}
	return total, found
}

// DefaultPerCapita holds the documented per-capita annual consumption
// constants, in liters per person per year, drawn from national energy
// balance studies. They are deliberately coarse: the population-derived path
// is a LOW-confidence fallback, not a measurement.
var DefaultPerCapita = map[model.FuelType]float64{
	model.FuelRegular: 280,
	model.FuelPremium: 60,
	model.FuelDiesel:  160,
}
