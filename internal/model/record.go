package model

import "fmt"

// RawStationRecord is one reported observation exactly as it arrived from a
// regulator filing. Fields stay as text until the normalizer validates them,
// so malformed values can be tagged rather than lost at parse time. Records
// are immutable once captured; corrections arrive as new records sharing the
// same (station, date, fuel) key and supersede earlier ones at ingest.
type RawStationRecord struct {
	StationID        string
	ReportDate       string // expected 2006-01-02
	StateText        string // unvalidated free text
	MunicipalityText string // unvalidated free text
	FuelLabel        string // unvalidated free text
	Price            string // numeric text in PriceUnit; empty when absent
	PriceUnit        string // e.g. "MXN/L"; empty means unstated
	Volume           string // liters sold in the period; empty when absent

	// Line is the 1-based source line, carried through to the audit log.
	Line int
}

// Key identifies the observation for supersedence purposes. The fuel label
// is folded so a correction filed as "Diésel" supersedes the original
// "Diesel" row.
func (r *RawStationRecord) Key() string {
	return fmt.Sprintf("%s:%s:%s", r.StationID, r.ReportDate, FoldLabel(r.FuelLabel))
}
