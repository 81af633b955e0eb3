// Package geography maps stations to canonical (state, municipality) pairs
// using a versioned validity-interval reference table.
package geography

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
)

const dateLayout = "2006-01-02"

// LoadTable reads the geography reference table and builds a Resolver.
// Expected columns: station_id, state_code, municipality_code, valid_from,
// valid_to (empty valid_to means the assignment is still current).
// Overlapping intervals for one station are a configuration error and fail
// fast: silent misattribution would corrupt every downstream aggregate.
func LoadTable(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: geography table %s: %v", common.ErrMissingReference, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close geography table", "path", path, "error", cerr)
		}
	}()

	return loadTable(f, path)
}

func loadTable(src io.Reader, path string) (*Resolver, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read geography header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"station_id", "state_code", "municipality_code", "valid_from"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: geography table %s missing column %q", common.ErrMissingReference, path, name)
		}
	}

	stations := make(map[string]*model.CanonicalStation)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read geography row: %w", err)
		}
		line++

		id := row[cols["station_id"]]
		from, err := time.Parse(dateLayout, row[cols["valid_from"]])
		if err != nil {
			return nil, fmt.Errorf("geography table %s line %d: bad valid_from: %w", path, line, err)
		}

		interval := model.ValidityInterval{
			From:             from,
			StateCode:        row[cols["state_code"]],
			MunicipalityCode: row[cols["municipality_code"]],
		}
		if toCol, ok := cols["valid_to"]; ok && toCol < len(row) && strings.TrimSpace(row[toCol]) != "" {
			to, err := time.Parse(dateLayout, row[toCol])
			if err != nil {
				return nil, fmt.Errorf("geography table %s line %d: bad valid_to: %w", path, line, err)
			}
			if !to.After(from) {
				return nil, fmt.Errorf("geography table %s line %d: valid_to %s not after valid_from %s", path, line, row[toCol], row[cols["valid_from"]])
			}
			interval.To = to
		}

		station := stations[id]
		if station == nil {
			station = &model.CanonicalStation{StationID: id}
			stations[id] = station
		}
		station.History = append(station.History, interval)
	}

	if len(stations) == 0 {
		return nil, fmt.Errorf("%w: geography table %s has no rows", common.ErrMissingReference, path)
	}

	for _, station := range stations {
		sort.Slice(station.History, func(i, j int) bool {
			return station.History[i].From.Before(station.History[j].From)
		})
		for i := 1; i < len(station.History); i++ {
			if station.History[i].Overlaps(&station.History[i-1]) {
				return nil, fmt.Errorf("%w: station %s has overlapping validity intervals starting %s and %s",
					common.ErrGeographyConflict, station.StationID,
					station.History[i-1].From.Format(dateLayout),
					station.History[i].From.Format(dateLayout))
			}
		}
	}

	slog.Info("loaded geography reference table", "stations", len(stations))
	return &Resolver{stations: stations}, nil
}
