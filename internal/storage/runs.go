package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fuelmx/pipa/internal/artifact"
)

// Run records one pipeline execution and its quality tallies.
type Run struct {
	CreatedAt     time.Time
	ID            string
	InputPath     string
	ArtifactPath  string
	TotalRecords  int
	OKCount       int
	ImputedCount  int
	RejectedCount int
}

// ReasonCount is a per-reason tally of audit rows within a run.
type ReasonCount struct {
	Flag   string
	Reason string
	Count  int
}

// NewRun builds a run record with a fresh identifier.
func NewRun(inputPath, artifactPath string, quality artifact.QualitySummary) Run {
	return Run{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		InputPath:     inputPath,
		ArtifactPath:  artifactPath,
		TotalRecords:  quality.Total,
		OKCount:       quality.OK,
		ImputedCount:  quality.Imputed,
		RejectedCount: quality.Rejected,
	}
}

// RecordRun persists a run and its audit rows in a single transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, entries []artifact.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(&run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, input_path, artifact_path, total_records, ok_count, imputed_count, rejected_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.InputPath, run.ArtifactPath,
		run.TotalRecords, run.OKCount, run.ImputedCount, run.RejectedCount)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_rows (run_id, line, station_id, report_date, fuel, flag, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx,
			run.ID, entry.Line, entry.StationID, entry.Date,
			entry.Fuel, entry.Flag, entry.Reason, entry.Detail); err != nil {
			return fmt.Errorf("failed to insert audit row for line %d: %w", entry.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently recorded run, or sql.ErrNoRows when
// the database holds no runs yet.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, input_path, COALESCE(artifact_path, ''), total_records, ok_count, imputed_count, rejected_count
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT 1`).Scan(
		&run.ID, &run.CreatedAt, &run.InputPath, &run.ArtifactPath,
		&run.TotalRecords, &run.OKCount, &run.ImputedCount, &run.RejectedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return &run, nil
}

// RunSummary tallies a run's audit rows by flag and reason.
func (s *Store) RunSummary(ctx context.Context, runID string) ([]ReasonCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT flag, reason, COUNT(*)
		FROM audit_rows
		WHERE run_id = ?
		GROUP BY flag, reason
		ORDER BY COUNT(*) DESC, reason ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []ReasonCount
	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.Flag, &rc.Reason, &rc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		counts = append(counts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}
	return counts, nil
}

// StationAudit returns a run's audit rows for one station, ordered by line.
func (s *Store) StationAudit(ctx context.Context, runID, stationID string) ([]artifact.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	if err := validateString(stationID, "stationID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT line, station_id, report_date, COALESCE(fuel, ''), flag, reason, COALESCE(detail, '')
		FROM audit_rows
		WHERE run_id = ? AND station_id = ?
		ORDER BY line ASC`, runID, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query station audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []artifact.AuditEntry
	for rows.Next() {
		var e artifact.AuditEntry
		if err := rows.Scan(&e.Line, &e.StationID, &e.Date, &e.Fuel, &e.Flag, &e.Reason, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return entries, nil
}
