// Package normalize validates and canonicalizes raw station records into the
// pipeline's uniform internal representation. Failing records are tagged and
// passed through so every rejection stays auditable; nothing is dropped here.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fuelmx/pipa/internal/model"
)

// dateLayout is the report-date format regulator exports use.
const dateLayout = "2006-01-02"

// Normalizer canonicalizes identifiers, fuel labels, units, and numerics.
type Normalizer struct {
	// maxYear excludes filings for periods after it (incomplete reporting
	// years); zero disables the cutoff.
	maxYear int
}

// New creates a Normalizer. maxYear of zero disables future-period exclusion.
func New(maxYear int) *Normalizer {
	return &Normalizer{maxYear: maxYear}
}

// Normalize validates one raw record. The returned observation carries
// either Flag OK with canonical fields set, or Flag REJECTED with a reason
// code; geography resolution and outlier screening happen downstream.
func (n *Normalizer) Normalize(rec model.RawStationRecord) model.CleanedObservation {
	obs := model.CleanedObservation{
		StationID: rec.StationID,
		Line:      rec.Line,
		Flag:      model.FlagOK,
	}

	if strings.TrimSpace(rec.StationID) == "" {
		return reject(obs, model.ReasonMalformedField, "missing station identifier")
	}

	date, err := time.Parse(dateLayout, rec.ReportDate)
	if err != nil {
		return reject(obs, model.ReasonMalformedField, fmt.Sprintf("unparseable report date %q", rec.ReportDate))
	}
	obs.ReportDate = date

	if n.maxYear > 0 && date.Year() > n.maxYear {
		return reject(obs, model.ReasonFuturePeriod, fmt.Sprintf("report year %d is after cutoff %d", date.Year(), n.maxYear))
	}

	fuel, ok := model.LookupFuelLabel(rec.FuelLabel)
	if !ok {
		return reject(obs, model.ReasonMalformedField, fmt.Sprintf("unrecognized fuel label %q (alias table v%d)", rec.FuelLabel, model.FuelAliasTableVersion))
	}
	obs.Fuel = fuel

	if rec.Price != "" {
		price, err := parseNumber(rec.Price)
		if err != nil || math.IsInf(price, 0) || math.IsNaN(price) || price <= 0 {
			return reject(obs, model.ReasonMalformedField, fmt.Sprintf("price %q is not a positive finite number", rec.Price))
		}
		factor, ok := unitFactor(rec.PriceUnit)
		if !ok {
			return reject(obs, model.ReasonUnknownUnit, fmt.Sprintf("unrecognized price unit %q", rec.PriceUnit))
		}
		obs.PricePerLiter = price * factor
		obs.HasPrice = true
	}

	if rec.Volume != "" {
		volume, err := parseNumber(rec.Volume)
		if err != nil || math.IsInf(volume, 0) || math.IsNaN(volume) || volume < 0 {
			return reject(obs, model.ReasonMalformedField, fmt.Sprintf("volume %q is not a non-negative number", rec.Volume))
		}
		obs.Volume = volume
		obs.HasVolume = true
	}

	return obs
}

func reject(obs model.CleanedObservation, reason model.ReasonCode, detail string) model.CleanedObservation {
	obs.Flag = model.FlagRejected
	obs.Reason = reason
	obs.Detail = detail
	return obs
}

// parseNumber parses a filing numeric field, tolerating currency signs and
// thousands separators ("$23,941.50").
func parseNumber(s string) (float64, error) {
	clean := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	return strconv.ParseFloat(clean, 64)
}

// foldUnit canonicalizes a unit label for table lookup.
func foldUnit(unit string) string {
	return model.FoldLabel(unit)
}
