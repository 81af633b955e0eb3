package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmx/pipa/internal/model"
)

func TestNormalizeValidRecord(t *testing.T) {
	n := New(0)

	obs := n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-03-15",
		FuelLabel:  "Diésel",
		Price:      "25.10",
		PriceUnit:  "MXN/L",
		Volume:     "18000",
		Line:       7,
	})

	assert.Equal(t, model.FlagOK, obs.Flag)
	assert.Equal(t, model.FuelDiesel, obs.Fuel)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), obs.ReportDate)
	assert.InDelta(t, 25.10, obs.PricePerLiter, 1e-9)
	assert.True(t, obs.HasPrice)
	assert.InDelta(t, 18000, obs.Volume, 1e-9)
	assert.True(t, obs.HasVolume)
	assert.Equal(t, 7, obs.Line)
}

func TestNormalizeRejections(t *testing.T) {
	base := model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-03-15",
		FuelLabel:  "Regular",
		Price:      "23.49",
	}

	tests := []struct {
		mutate     func(*model.RawStationRecord)
		name       string
		wantReason model.ReasonCode
	}{
		{
			name:       "missing station id",
			mutate:     func(r *model.RawStationRecord) { r.StationID = "  " },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "unparseable date",
			mutate:     func(r *model.RawStationRecord) { r.ReportDate = "15/03/2024" },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "unknown fuel label",
			mutate:     func(r *model.RawStationRecord) { r.FuelLabel = "Turbosina" },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "non-numeric price",
			mutate:     func(r *model.RawStationRecord) { r.Price = "n/a" },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "negative price",
			mutate:     func(r *model.RawStationRecord) { r.Price = "-23.49" },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "zero price",
			mutate:     func(r *model.RawStationRecord) { r.Price = "0" },
			wantReason: model.ReasonMalformedField,
		},
		{
			name:       "unknown price unit",
			mutate:     func(r *model.RawStationRecord) { r.PriceUnit = "USD/gal" },
			wantReason: model.ReasonUnknownUnit,
		},
		{
			name:       "negative volume",
			mutate:     func(r *model.RawStationRecord) { r.Volume = "-500" },
			wantReason: model.ReasonMalformedField,
		},
	}

	n := New(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			obs := n.Normalize(rec)
			assert.Equal(t, model.FlagRejected, obs.Flag)
			assert.Equal(t, tt.wantReason, obs.Reason)
			assert.NotEmpty(t, obs.Detail)
		})
	}
}

func TestNormalizeFuturePeriod(t *testing.T) {
	n := New(2024)

	obs := n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2025-01-15",
		FuelLabel:  "Regular",
		Price:      "23.49",
	})
	assert.Equal(t, model.FlagRejected, obs.Flag)
	assert.Equal(t, model.ReasonFuturePeriod, obs.Reason)

	// The cutoff year itself is still in scope.
	obs = n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-12-31",
		FuelLabel:  "Regular",
		Price:      "23.49",
	})
	assert.Equal(t, model.FlagOK, obs.Flag)
}

func TestNormalizeUnitConversions(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		unit      string
		wantPesos float64
	}{
		{"default unit is pesos per liter", "23.49", "", 23.49},
		{"explicit pesos per liter", "23.49", "MXN/L", 23.49},
		{"accented litro label", "23.49", "Pesos/Litro", 23.49},
		{"centavos per liter", "2349", "centavos/L", 23.49},
		{"pesos per gallon", "88.92", "MXN/gal", 88.92 / 3.785411784},
	}

	n := New(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := n.Normalize(model.RawStationRecord{
				StationID:  "PL-0001",
				ReportDate: "2024-03-15",
				FuelLabel:  "Regular",
				Price:      tt.price,
				PriceUnit:  tt.unit,
			})
			require.Equal(t, model.FlagOK, obs.Flag, obs.Detail)
			assert.InDelta(t, tt.wantPesos, obs.PricePerLiter, 1e-9)
		})
	}
}

func TestNormalizeCurrencyFormatting(t *testing.T) {
	n := New(0)

	obs := n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-03-15",
		FuelLabel:  "Regular",
		Price:      "$23.49",
		Volume:     "1,250,000",
	})
	require.Equal(t, model.FlagOK, obs.Flag, obs.Detail)
	assert.InDelta(t, 23.49, obs.PricePerLiter, 1e-9)
	assert.InDelta(t, 1250000, obs.Volume, 1e-9)
}

func TestNormalizeAbsentFields(t *testing.T) {
	n := New(0)

	// Missing price and volume both pass normalization untagged; the filter
	// decides whether the record is usable.
	obs := n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-03-15",
		FuelLabel:  "Regular",
	})
	assert.Equal(t, model.FlagOK, obs.Flag)
	assert.False(t, obs.HasPrice)
	assert.False(t, obs.HasVolume)

	// Zero volume is a legitimate filing (station sold nothing).
	obs = n.Normalize(model.RawStationRecord{
		StationID:  "PL-0001",
		ReportDate: "2024-03-15",
		FuelLabel:  "Regular",
		Volume:     "0",
	})
	assert.Equal(t, model.FlagOK, obs.Flag)
	assert.True(t, obs.HasVolume)
	assert.Zero(t, obs.Volume)
}
