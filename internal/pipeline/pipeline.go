// Package pipeline wires ingestion, normalization, geography resolution,
// filtering, aggregation, and market estimation into a single batch run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/fuelmx/pipa/internal/aggregate"
	"github.com/fuelmx/pipa/internal/artifact"
	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/filter"
	"github.com/fuelmx/pipa/internal/geography"
	"github.com/fuelmx/pipa/internal/ingest"
	"github.com/fuelmx/pipa/internal/market"
	"github.com/fuelmx/pipa/internal/model"
	"github.com/fuelmx/pipa/internal/normalize"
)

// Config holds the knobs for one pipeline run.
type Config struct {
	InputPath             string
	GeographyPath         string
	PopulationPath        string
	ArtifactPath          string
	AuditPath             string
	Periods               []model.PeriodKind
	Workers               int
	MaxYear               int
	MADThreshold          float64
	ImputedRatioThreshold float64
	MXNPerUSD             float64
	Compress              bool
	ShowProgress          bool
}

// DefaultConfig returns the default run configuration. Paths must still be
// filled in by the caller.
func DefaultConfig() Config {
	return Config{
		Periods:               []model.PeriodKind{model.PeriodMonth, model.PeriodYear},
		Workers:               4,
		MADThreshold:          filter.DefaultMADThreshold,
		ImputedRatioThreshold: market.DefaultImputedRatioThreshold,
		MXNPerUSD:             market.DefaultMXNPerUSD,
		Compress:              false,
		ShowProgress:          false,
	}
}

// Result carries everything a run produced, for callers that persist or
// display beyond the artifact files.
type Result struct {
	Quality      artifact.QualitySummary
	ArtifactPath string
	Observations []model.CleanedObservation
	Coverage     []artifact.CoverageRecord
	Buckets      []model.AggregateBucket
	Estimates    []model.MarketValueEstimate
	Audit        []artifact.AuditEntry
	Duration     time.Duration
}

// Pipeline runs the batch aggregation flow end to end.
type Pipeline struct {
	config Config
}

// New creates a pipeline with the given configuration.
func New(config Config) (*Pipeline, error) {
	if config.InputPath == "" {
		return nil, fmt.Errorf("%w: input path is required", common.ErrInvalidConfig)
	}
	if config.GeographyPath == "" {
		return nil, fmt.Errorf("%w: geography table path is required", common.ErrInvalidConfig)
	}
	if config.PopulationPath == "" {
		return nil, fmt.Errorf("%w: population table path is required", common.ErrInvalidConfig)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if len(config.Periods) == 0 {
		config.Periods = []model.PeriodKind{model.PeriodMonth, model.PeriodYear}
	}
	return &Pipeline{config: config}, nil
}

// Run executes the full pipeline and writes the artifact and audit log.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	resolver, err := geography.LoadTable(p.config.GeographyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load geography table: %w", err)
	}
	population, err := market.LoadPopulation(p.config.PopulationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load population table: %w", err)
	}
	slog.Info("loaded reference tables",
		"stations", resolver.StationCount(),
		"geography", p.config.GeographyPath,
		"population", p.config.PopulationPath)

	reader := ingest.NewReader(p.config.InputPath)
	records, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read filings: %w", err)
	}
	slog.Info("ingested filings", "records", len(records))

	bar := p.newProgressBar(len(records))

	normalizer := normalize.New(p.config.MaxYear)
	observations, err := p.normalizeAll(ctx, normalizer, resolver, records, bar)
	if err != nil {
		return nil, err
	}

	screen := filter.New(p.config.MADThreshold)
	screen.Fit(observations)

	buckets, err := p.aggregateAll(ctx, screen, observations)
	if err != nil {
		return nil, err
	}

	estCfg := market.DefaultConfig()
	estCfg.ImputedRatioThreshold = p.config.ImputedRatioThreshold
	estCfg.MXNPerUSD = p.config.MXNPerUSD
	estimator := market.New(population, estCfg)
	estimates := estimator.EstimateAll(buckets)

	quality := summarizeQuality(observations)
	coverage := summarizeCoverage(observations)

	result := &Result{
		Quality:      quality,
		Observations: observations,
		Coverage:     coverage,
		Buckets:      buckets,
		Estimates:    estimates,
		Audit:        artifact.CollectAudit(observations),
	}

	if p.config.ArtifactPath != "" {
		header := artifact.Header{
			SchemaVersion:         artifact.SchemaVersion,
			PercentileMethod:      aggregate.PercentileMethod,
			MADThreshold:          screen.MADThreshold(),
			ImputedRatioThreshold: estimator.Threshold(),
			MXNPerUSD:             estimator.MXNPerUSD(),
			FuelAliasTableVersion: model.FuelAliasTableVersion,
			Periods:               periodNames(p.config.Periods),
		}
		writer := artifact.NewWriter(p.config.ArtifactPath, p.config.Compress)
		doc := artifact.Build(header, quality, coverage, buckets, estimates)
		if err := writer.Write(doc); err != nil {
			return nil, fmt.Errorf("failed to write artifact: %w", err)
		}
		result.ArtifactPath = writer.Path()
	}

	if p.config.AuditPath != "" {
		if err := artifact.WriteAudit(p.config.AuditPath, result.Audit); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(started)
	slog.Info("pipeline complete",
		"records", quality.Total,
		"ok", quality.OK,
		"imputed", quality.Imputed,
		"rejected", quality.Rejected,
		"buckets", len(buckets),
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

func (p *Pipeline) newProgressBar(total int) *progressbar.ProgressBar {
	if !p.config.ShowProgress || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Processing filings..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func periodNames(kinds []model.PeriodKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
