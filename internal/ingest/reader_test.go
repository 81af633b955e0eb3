package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmx/pipa/internal/model"
)

func writeFilings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadAll(t *testing.T) {
	path := writeFilings(t, `station_id,report_date,state,municipality,fuel,price,price_unit,volume
PL-0001,2024-03-01,Jalisco,Guadalajara,Regular,23.49,MXN/L,12000
PL-0002,2024-03-01,,,Diésel,25.10,,
`)

	records, err := NewReader(path).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "PL-0001", records[0].StationID)
	assert.Equal(t, "2024-03-01", records[0].ReportDate)
	assert.Equal(t, "Jalisco", records[0].StateText)
	assert.Equal(t, "Regular", records[0].FuelLabel)
	assert.Equal(t, "23.49", records[0].Price)
	assert.Equal(t, "MXN/L", records[0].PriceUnit)
	assert.Equal(t, "12000", records[0].Volume)
	assert.Equal(t, 2, records[0].Line, "line numbers are 1-based including the header")

	assert.Equal(t, "Diésel", records[1].FuelLabel)
	assert.Empty(t, records[1].Volume)
	assert.Equal(t, 3, records[1].Line)
}

func TestReadAllColumnOrderIndependent(t *testing.T) {
	path := writeFilings(t, `price,fuel,report_date,station_id
23.49,Regular,2024-03-01,PL-0001
`)

	records, err := NewReader(path).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PL-0001", records[0].StationID)
	assert.Equal(t, "23.49", records[0].Price)
}

func TestReadAllMissingRequiredColumn(t *testing.T) {
	path := writeFilings(t, `station_id,report_date,fuel
PL-0001,2024-03-01,Regular
`)

	_, err := NewReader(path).ReadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"price"`)
}

func TestReadAllMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.csv")).ReadAll(context.Background())
	require.Error(t, err)
}

func TestReadAllCanceledContext(t *testing.T) {
	path := writeFilings(t, `station_id,report_date,fuel,price
PL-0001,2024-03-01,Regular,23.49
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(path).ReadAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadAllRaggedRow(t *testing.T) {
	// A short row yields empty optional fields rather than a read error;
	// the normalizer decides what is malformed.
	path := writeFilings(t, `station_id,report_date,fuel,price,volume
PL-0001,2024-03-01,Regular,23.49
`)

	records, err := NewReader(path).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Volume)
}

func TestSupersede(t *testing.T) {
	records := []model.RawStationRecord{
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "Regular", Price: "23.49", Line: 2},
		{StationID: "PL-0002", ReportDate: "2024-03-01", FuelLabel: "Diesel", Price: "25.10", Line: 3},
		// Correction for the first filing, folded fuel label variant.
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "REGULAR", Price: "23.99", Line: 4},
	}

	out := Supersede(records)
	require.Len(t, out, 2)

	// Last write wins, but the record keeps its first-appearance position.
	assert.Equal(t, "23.99", out[0].Price)
	assert.Equal(t, 4, out[0].Line)
	assert.Equal(t, "PL-0002", out[1].StationID)
}

func TestSupersedeAccentedCorrection(t *testing.T) {
	records := []model.RawStationRecord{
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "Diesel", Price: "25.10"},
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "Diésel", Price: "24.80"},
	}

	out := Supersede(records)
	require.Len(t, out, 1)
	assert.Equal(t, "24.80", out[0].Price)
}

func TestSupersedeDistinctKeysUntouched(t *testing.T) {
	records := []model.RawStationRecord{
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "Regular"},
		{StationID: "PL-0001", ReportDate: "2024-03-02", FuelLabel: "Regular"},
		{StationID: "PL-0001", ReportDate: "2024-03-01", FuelLabel: "Premium"},
	}

	assert.Len(t, Supersede(records), 3)
}
