package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/fuelmx/pipa/internal/model"
)

// AuditEntry is one REJECTED or IMPUTED observation in the audit log.
type AuditEntry struct {
	Line      int    `json:"line"`
	StationID string `json:"station_id"`
	Date      string `json:"date,omitempty"`
	Fuel      string `json:"fuel,omitempty"`
	Flag      string `json:"flag"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// CollectAudit extracts the audit entries from a cleaned observation stream,
// ordered by source line so the log is deterministic and easy to cross-read
// against the filing export.
func CollectAudit(observations []model.CleanedObservation) []AuditEntry {
	var entries []AuditEntry
	for i := range observations {
		obs := &observations[i]
		if obs.Flag == model.FlagOK {
			continue
		}
		entry := AuditEntry{
			Line:      obs.Line,
			StationID: obs.StationID,
			Flag:      string(obs.Flag),
			Reason:    string(obs.Reason),
			Detail:    obs.Detail,
		}
		if !obs.ReportDate.IsZero() {
			entry.Date = obs.ReportDate.Format("2006-01-02")
		}
		if obs.Fuel != "" {
			entry.Fuel = string(obs.Fuel)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Line < entries[j].Line })
	return entries
}

// WriteAudit writes the audit log as JSON lines. The log is a side artifact
// for data-quality review, not consumed by the presentation layer.
func WriteAudit(path string, entries []AuditEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	enc := json.NewEncoder(f)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}

	slog.Info("wrote audit log", "path", path, "entries", len(entries))
	return nil
}
