package model

import "time"

// QualityFlag classifies an observation after cleaning.
type QualityFlag string

// Quality flag constants.
const (
	FlagOK       QualityFlag = "OK"
	FlagImputed  QualityFlag = "IMPUTED"
	FlagRejected QualityFlag = "REJECTED"
)

// ReasonCode explains why an observation was rejected, imputed, or why a
// bucket's estimate could not be produced.
type ReasonCode string

// Per-record and per-bucket reason codes.
const (
	ReasonNone                ReasonCode = ""
	ReasonMalformedField      ReasonCode = "MALFORMED_FIELD"
	ReasonUnknownUnit         ReasonCode = "UNKNOWN_UNIT"
	ReasonUnresolvedGeography ReasonCode = "UNRESOLVED_GEOGRAPHY"
	ReasonPriceOutlier        ReasonCode = "PRICE_OUTLIER"
	ReasonInsufficientData    ReasonCode = "INSUFFICIENT_DATA"
	ReasonMissingVolume       ReasonCode = "MISSING_VOLUME"
	ReasonFuturePeriod        ReasonCode = "FUTURE_PERIOD"
	ReasonEstimationUndefined ReasonCode = "ESTIMATION_UNDEFINED"
)

// RecordReasonCodes lists every per-record reason code in stable order, for
// data-quality summaries.
var RecordReasonCodes = []ReasonCode{
	ReasonMalformedField,
	ReasonUnknownUnit,
	ReasonUnresolvedGeography,
	ReasonPriceOutlier,
	ReasonInsufficientData,
	ReasonMissingVolume,
	ReasonFuturePeriod,
}

// CleanedObservation is a RawStationRecord after normalization, geography
// resolution, and outlier/missing classification. Only OK and IMPUTED
// observations enter aggregation; REJECTED observations survive only in the
// audit log, with one exception: a record rejected solely for unresolved
// geography still contributes to national buckets (see aggregate package).
type CleanedObservation struct {
	ReportDate       time.Time
	Line             int // 1-based source line in the filing export
	StationID        string
	StateCode        string // empty when geography is unresolved
	MunicipalityCode string // empty when geography is unresolved
	Fuel             FuelType
	Flag             QualityFlag
	Reason           ReasonCode
	Detail           string // human-readable context for the audit log
	PricePerLiter    float64
	Volume           float64
	HasPrice         bool // false for volume-only filings
	HasVolume        bool // false when volume is absent and could not be imputed
	VolumeImputed    bool
}

// Resolved reports whether the observation carries a canonical geography.
func (o *CleanedObservation) Resolved() bool {
	return o.StateCode != ""
}

// Aggregable reports whether the observation may contribute to
// geography-keyed buckets.
func (o *CleanedObservation) Aggregable() bool {
	return o.Flag != FlagRejected
}

// NationalOnly reports whether the observation is excluded from geography
// buckets but still valid for national aggregation: geography unresolved,
// everything else sound.
func (o *CleanedObservation) NationalOnly() bool {
	return o.Flag == FlagRejected && o.Reason == ReasonUnresolvedGeography && (o.HasPrice || o.HasVolume)
}
