package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
)

// Writer serializes the artifact to disk.
type Writer struct {
	path     string
	compress bool
}

// NewWriter creates a writer targeting path. With compress set, output is
// gzip-wrapped (no name or mtime in the gzip header, so compressed output
// stays byte-identical across runs) and a .gz suffix is appended if missing.
func NewWriter(path string, compress bool) *Writer {
	if compress && !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}
	return &Writer{path: path, compress: compress}
}

// Path reports the effective output path.
func (w *Writer) Path() string { return w.path }

// Write validates, serializes, and writes the artifact plus a sibling
// .sha256 checksum file. It fails fatally on incomplete buckets rather than
// emitting partial output silently.
func (w *Writer) Write(a *Artifact) error {
	if err := validate(a); err != nil {
		return err
	}

	payload, err := Encode(a)
	if err != nil {
		return err
	}

	data := payload
	if w.compress {
		data, err = compressBytes(payload)
		if err != nil {
			return fmt.Errorf("failed to compress artifact: %w", err)
		}
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	checksumPath := w.path + ".sha256"
	if err := os.WriteFile(checksumPath, []byte(fmt.Sprintf("%x  %s\n", sum, filepath.Base(w.path))), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact checksum: %w", err)
	}

	slog.Info("wrote artifact",
		"path", w.path,
		"bytes", len(data),
		"buckets", len(a.Buckets),
		"estimates", len(a.Estimates),
		"sha256", fmt.Sprintf("%x", sum[:8]))
	return nil
}

// Encode marshals the artifact in its canonical byte form: two-space
// indented JSON with a trailing newline. Map keys are emitted in sorted
// order by encoding/json, so encoding is deterministic.
func Encode(a *Artifact) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// Build assembles the artifact document from finalized pipeline output.
// Failed estimates are omitted: the bucket's aggregate is preserved and the
// failure is visible in logs and the audit trail.
func Build(header Header, quality QualitySummary, coverage []CoverageRecord, buckets []model.AggregateBucket, estimates []model.MarketValueEstimate) *Artifact {
	a := &Artifact{
		Header:   header,
		Quality:  quality,
		Coverage: coverage,
	}

	a.Buckets = make([]BucketRecord, 0, len(buckets))
	for _, b := range buckets {
		a.Buckets = append(a.Buckets, BucketRecord{
			Granularity:     string(b.Key.Granularity),
			GeoKey:          b.Key.GeoKey,
			Fuel:            string(b.Key.Fuel),
			Period:          b.Key.Period.Key(),
			AggregateBucket: b,
		})
	}

	a.Estimates = make([]EstimateRecord, 0, len(estimates))
	for _, e := range estimates {
		if e.Failed {
			continue
		}
		a.Estimates = append(a.Estimates, EstimateRecord{
			Granularity:         string(e.Key.Granularity),
			GeoKey:              e.Key.GeoKey,
			Fuel:                string(e.Key.Fuel),
			Period:              e.Key.Period.Key(),
			MarketValueEstimate: e,
		})
	}

	return a
}

func validate(a *Artifact) error {
	if a.Header.SchemaVersion == 0 || a.Header.PercentileMethod == "" {
		return fmt.Errorf("%w: artifact header incomplete", common.ErrIncompleteBucket)
	}
	for i := range a.Buckets {
		b := &a.Buckets[i]
		if b.Granularity == "" || b.Fuel == "" || b.Period == "" {
			return fmt.Errorf("%w: bucket %d missing key fields", common.ErrIncompleteBucket, i)
		}
		if b.StationCount == 0 || b.Provenance.OK+b.Provenance.Imputed == 0 {
			return fmt.Errorf("%w: bucket %s/%s/%s/%s has no contributions",
				common.ErrIncompleteBucket, b.Granularity, b.GeoKey, b.Fuel, b.Period)
		}
	}
	return nil
}

func compressBytes(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	// Leave the gzip header zeroed: a name or mtime would make otherwise
	// identical artifacts differ.
	if _, err := gz.Write(payload); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
