package geography

import (
	"fmt"
	"time"

	"github.com/fuelmx/pipa/internal/model"
)

// Resolver answers (station, date) → canonical geography lookups against a
// loaded reference table. It is read-only after construction and safe for
// concurrent use by pipeline workers.
type Resolver struct {
	stations map[string]*model.CanonicalStation
}

// Resolve tags the observation with the canonical geography valid at its
// report date, or rejects it with UNRESOLVED_GEOGRAPHY.
//
// Lookup policy: an interval covering the date wins. A date that falls in a
// gap *between* two intervals falls back to the most recent interval ending
// on or before it. A date after the station's final closed interval does not
// resolve: the assignment expired with no successor, and guessing a stale
// geography would misattribute the station.
func (r *Resolver) Resolve(obs model.CleanedObservation) model.CleanedObservation {
	if obs.Flag == model.FlagRejected {
		return obs
	}

	state, municipality, ok := r.lookup(obs.StationID, obs.ReportDate)
	if !ok {
		obs.Flag = model.FlagRejected
		obs.Reason = model.ReasonUnresolvedGeography
		obs.Detail = fmt.Sprintf("no geography assignment for station %s on %s", obs.StationID, obs.ReportDate.Format(dateLayout))
		return obs
	}

	obs.StateCode = state
	obs.MunicipalityCode = municipality
	return obs
}

// StationCount reports the number of stations in the reference table.
func (r *Resolver) StationCount() int {
	return len(r.stations)
}

func (r *Resolver) lookup(stationID string, date time.Time) (string, string, bool) {
	station, ok := r.stations[stationID]
	if !ok {
		return "", "", false
	}

	var fallback *model.ValidityInterval
	for i := range station.History {
		interval := &station.History[i]
		if interval.Covers(date) {
			return interval.StateCode, interval.MunicipalityCode, true
		}
		if interval.From.After(date) {
			// History is sorted; the date sits in a gap before this
			// interval, so the previous one (if any) is the fallback.
			break
		}
		fallback = interval
	}

	if fallback == nil {
		return "", "", false
	}

	// The fallback only applies when a later assignment exists: the gap is
	// then a table hole, not an expiry. An expired final assignment stays
	// unresolved.
	last := &station.History[len(station.History)-1]
	if !last.From.After(date) {
		return "", "", false
	}
	return fallback.StateCode, fallback.MunicipalityCode, true
}
