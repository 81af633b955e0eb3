package artifact

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmx/pipa/internal/model"
)

func TestCollectAudit(t *testing.T) {
	observations := []model.CleanedObservation{
		{
			Line:       5,
			StationID:  "PL-0002",
			Flag:       model.FlagRejected,
			Reason:     model.ReasonPriceOutlier,
			Detail:     "price 2349.00 is 9310.0 MADs from cohort median 23.50",
			Fuel:       model.FuelRegular,
			ReportDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Line:      2,
			StationID: "PL-0001",
			Flag:      model.FlagOK,
		},
		{
			Line:       3,
			StationID:  "PL-0003",
			Flag:       model.FlagImputed,
			Reason:     model.ReasonMissingVolume,
			Fuel:       model.FuelDiesel,
			ReportDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	entries := CollectAudit(observations)
	require.Len(t, entries, 2, "OK observations are not audit findings")

	assert.Equal(t, 3, entries[0].Line, "entries are ordered by source line")
	assert.Equal(t, "IMPUTED", entries[0].Flag)
	assert.Equal(t, "MISSING_VOLUME", entries[0].Reason)
	assert.Equal(t, "Diesel", entries[0].Fuel)
	assert.Equal(t, "2024-03-01", entries[0].Date)

	assert.Equal(t, 5, entries[1].Line)
	assert.Equal(t, "REJECTED", entries[1].Flag)
}

func TestCollectAuditOmitsZeroDate(t *testing.T) {
	// A record rejected before date parsing has no report date to show.
	entries := CollectAudit([]model.CleanedObservation{
		{
			Line:      2,
			StationID: "PL-0001",
			Flag:      model.FlagRejected,
			Reason:    model.ReasonMalformedField,
			Detail:    `unparseable report date "15/03/2024"`,
		},
	})
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Date)
	assert.Empty(t, entries[0].Fuel)
}

func TestWriteAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	entries := []AuditEntry{
		{Line: 2, StationID: "PL-0001", Flag: "REJECTED", Reason: "MALFORMED_FIELD"},
		{Line: 7, StationID: "PL-0002", Flag: "IMPUTED", Reason: "MISSING_VOLUME"},
	}

	require.NoError(t, WriteAudit(path, entries))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var got []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, entries, got)
}
