package model

import "time"

// ValidityInterval is a half-open [From, To) date range binding a station to
// a canonical geography. A zero To means the assignment is still current.
type ValidityInterval struct {
	From             time.Time
	To               time.Time
	StateCode        string
	MunicipalityCode string
}

// Covers reports whether the interval is in force on the given date.
func (v *ValidityInterval) Covers(date time.Time) bool {
	if date.Before(v.From) {
		return false
	}
	return v.To.IsZero() || date.Before(v.To)
}

// Overlaps reports whether two intervals share any instant. Overlapping
// assignments for the same station are a configuration error.
func (v *ValidityInterval) Overlaps(other *ValidityInterval) bool {
	vOpen := v.To.IsZero()
	oOpen := other.To.IsZero()
	switch {
	case vOpen && oOpen:
		return true
	case vOpen:
		return other.To.After(v.From)
	case oOpen:
		return v.To.After(other.From)
	default:
		return v.From.Before(other.To) && other.From.Before(v.To)
	}
}

// CanonicalStation is a station identifier bound to its geography history.
// Intervals are kept sorted by From date.
type CanonicalStation struct {
	StationID string
	History   []ValidityInterval
}
