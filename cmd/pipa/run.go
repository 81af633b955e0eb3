package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fuelmx/pipa/internal/aggregate"
	"github.com/fuelmx/pipa/internal/cli"
	"github.com/fuelmx/pipa/internal/common"
	"github.com/fuelmx/pipa/internal/model"
	"github.com/fuelmx/pipa/internal/pipeline"
	"github.com/fuelmx/pipa/internal/storage"
)

func runCmd() *cobra.Command {
	cfg := pipeline.DefaultConfig()
	var noStore bool
	var periods []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the aggregation pipeline over a filing export",
		Long: `Run ingests a CSV filing export, normalizes and screens the records,
aggregates prices and volumes at national, state, and municipality level, and
writes a deterministic artifact plus an audit log of rejected and imputed
records.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// Bound flags pick up config-file and env values here.
			cfg.MADThreshold = viper.GetFloat64("outlier.mad_threshold")
			cfg.ImputedRatioThreshold = viper.GetFloat64("market.imputed_ratio_threshold")
			cfg.MXNPerUSD = viper.GetFloat64("market.mxn_per_usd")
			cfg.Workers = viper.GetInt("pipeline.workers")
			cfg.MaxYear = viper.GetInt("aggregate.max_year")

			if method := viper.GetString("aggregate.percentile_method"); method != aggregate.PercentileMethod {
				return fmt.Errorf("%w: unsupported percentile method %q (only %q is exact)",
					common.ErrInvalidConfig, method, aggregate.PercentileMethod)
			}

			kinds, err := parsePeriods(viper.GetStringSlice("aggregate.periods"))
			if err != nil {
				return err
			}
			cfg.Periods = kinds

			cfg.InputPath = expandPath(cfg.InputPath)
			cfg.GeographyPath = expandPath(cfg.GeographyPath)
			cfg.PopulationPath = expandPath(cfg.PopulationPath)
			cfg.ArtifactPath = expandPath(cfg.ArtifactPath)
			cfg.AuditPath = expandPath(cfg.AuditPath)

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}

			result, err := p.Run(ctx)
			if err != nil {
				return err
			}

			if !noStore {
				if err := persistRun(cmd, result, cfg.InputPath); err != nil {
					// The artifact is already on disk; a broken audit DB
					// should not fail the run.
					slog.Warn("failed to persist run to audit database", "error", err)
				}
			}

			printRunSummary(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.InputPath, "input", "i", "", "filing export CSV (required)")
	cmd.Flags().StringVar(&cfg.GeographyPath, "geography", "", "station geography table CSV (required)")
	cmd.Flags().StringVar(&cfg.PopulationPath, "population", "", "population table CSV (required)")
	cmd.Flags().StringVarP(&cfg.ArtifactPath, "out", "o", "aggregates.json", "artifact output path")
	cmd.Flags().StringVar(&cfg.AuditPath, "audit-out", "", "audit log output path (JSON lines; empty disables)")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel workers")
	cmd.Flags().IntVar(&cfg.MaxYear, "max-year", 0, "reject filings for periods after this year (0 disables)")
	cmd.Flags().Float64Var(&cfg.MADThreshold, "mad-threshold", cfg.MADThreshold, "price outlier threshold in MAD units")
	cmd.Flags().Float64Var(&cfg.ImputedRatioThreshold, "imputed-ratio", cfg.ImputedRatioThreshold, "max imputed volume share for measured estimates")
	cmd.Flags().Float64Var(&cfg.MXNPerUSD, "mxn-per-usd", cfg.MXNPerUSD, "exchange rate for USD conversion")
	cmd.Flags().StringSliceVar(&periods, "periods", []string{"month", "year"}, "aggregation periods (month, year)")
	cmd.Flags().BoolVar(&cfg.Compress, "gzip", false, "gzip the artifact")
	cmd.Flags().BoolVar(&cfg.ShowProgress, "progress", true, "show a progress bar")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip recording the run in the audit database")

	_ = viper.BindPFlag("outlier.mad_threshold", cmd.Flags().Lookup("mad-threshold"))
	_ = viper.BindPFlag("market.imputed_ratio_threshold", cmd.Flags().Lookup("imputed-ratio"))
	_ = viper.BindPFlag("market.mxn_per_usd", cmd.Flags().Lookup("mxn-per-usd"))
	_ = viper.BindPFlag("pipeline.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("aggregate.max_year", cmd.Flags().Lookup("max-year"))
	_ = viper.BindPFlag("aggregate.periods", cmd.Flags().Lookup("periods"))
	viper.SetDefault("aggregate.percentile_method", aggregate.PercentileMethod)

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("geography")
	_ = cmd.MarkFlagRequired("population")

	return cmd
}

// parsePeriods validates the configured aggregation periods.
func parsePeriods(names []string) ([]model.PeriodKind, error) {
	kinds := make([]model.PeriodKind, 0, len(names))
	for _, name := range names {
		switch model.PeriodKind(name) {
		case model.PeriodMonth:
			kinds = append(kinds, model.PeriodMonth)
		case model.PeriodYear:
			kinds = append(kinds, model.PeriodYear)
		default:
			return nil, fmt.Errorf("%w: unknown aggregation period %q", common.ErrInvalidConfig, name)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: at least one aggregation period is required", common.ErrInvalidConfig)
	}
	return kinds, nil
}

func persistRun(cmd *cobra.Command, result *pipeline.Result, inputPath string) error {
	ctx := cmd.Context()

	store, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("failed to close audit database", "error", closeErr)
		}
	}()

	run := storage.NewRun(inputPath, result.ArtifactPath, result.Quality)
	return store.RecordRun(ctx, run, result.Audit)
}

func printRunSummary(result *pipeline.Result) {
	q := result.Quality

	summary := fmt.Sprintf("  Records processed: %d\n", q.Total) +
		fmt.Sprintf("  %s OK: %d\n", cli.SuccessIcon, q.OK) +
		fmt.Sprintf("  %s Imputed: %d\n", cli.WarningIcon, q.Imputed) +
		fmt.Sprintf("  %s Rejected: %d\n", cli.ErrorIcon, q.Rejected) +
		fmt.Sprintf("  Buckets: %d\n", len(result.Buckets)) +
		fmt.Sprintf("  Estimates: %d\n", len(result.Estimates)) +
		fmt.Sprintf("  Time taken: %s\n", result.Duration.Round(time.Millisecond))
	if mxn, usd, ok := nationalAnnualValue(result.Estimates); ok {
		summary += fmt.Sprintf("  National market: %s (%s)\n", cli.FormatMXN(mxn), cli.FormatUSD(usd))
	}
	if result.ArtifactPath != "" {
		summary += fmt.Sprintf("  Artifact: %s\n", result.ArtifactPath)
	}

	fmt.Println(cli.RenderBox("Pipeline Complete "+cli.ChartIcon, summary))
}

// nationalAnnualValue sums the successful national year estimates across
// fuels and years. The boolean is false when none exist.
func nationalAnnualValue(estimates []model.MarketValueEstimate) (mxn, usd float64, ok bool) {
	for _, e := range estimates {
		if e.Failed || e.Key.Granularity != model.GranularityNational || e.Key.Period.Kind != model.PeriodYear {
			continue
		}
		mxn += e.Value
		usd += e.ValueUSD
		ok = true
	}
	return mxn, usd, ok
}
