// Package ingest loads raw station records from regulator filing exports.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fuelmx/pipa/internal/model"
)

// Required and optional columns of a filing export. Matching is by header
// name so column order in the export does not matter.
var (
	requiredColumns = []string{"station_id", "report_date", "fuel", "price"}
	optionalColumns = []string{"state", "municipality", "price_unit", "volume"}
)

// Reader streams RawStationRecords out of a CSV filing export.
type Reader struct {
	path string
}

// NewReader creates a reader for the given filing export.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll loads every record from the export and applies supersedence, so
// the caller sees at most one record per (station, date, fuel) key.
func (r *Reader) ReadAll(ctx context.Context) ([]model.RawStationRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open filings %s: %w", r.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close filings file", "path", r.path, "error", cerr)
		}
	}()

	records, err := r.read(ctx, f)
	if err != nil {
		return nil, err
	}

	deduped := Supersede(records)
	if dropped := len(records) - len(deduped); dropped > 0 {
		slog.Info("superseded corrected filings", "dropped", dropped, "kept", len(deduped))
	}
	return deduped, nil
}

func (r *Reader) read(ctx context.Context, src io.Reader) ([]model.RawStationRecord, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1 // ragged rows are a data error, not a read error
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read filing header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []model.RawStationRecord
	line := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read filing row: %w", err)
		}
		line++

		records = append(records, model.RawStationRecord{
			StationID:        field(row, cols, "station_id"),
			ReportDate:       field(row, cols, "report_date"),
			StateText:        field(row, cols, "state"),
			MunicipalityText: field(row, cols, "municipality"),
			FuelLabel:        field(row, cols, "fuel"),
			Price:            field(row, cols, "price"),
			PriceUnit:        field(row, cols, "price_unit"),
			Volume:           field(row, cols, "volume"),
			Line:             line,
		})
	}

	return records, nil
}

// Supersede applies last-write-wins per (station, date, fuel) key. The
// report date is part of the key, so every contender carries the same date;
// regulators append corrections after the original filing, making the last
// occurrence the correction. Output order follows each key's first
// appearance so the result is deterministic for any fixed input.
func Supersede(records []model.RawStationRecord) []model.RawStationRecord {
	index := make(map[string]int, len(records))
	out := records[:0:0]
	for _, rec := range records {
		key := rec.Key()
		if i, seen := index[key]; seen {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("filing export missing required column %q", name)
		}
	}
	return cols, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
