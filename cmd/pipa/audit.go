package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fuelmx/pipa/internal/cli"
)

func auditCmd() *cobra.Command {
	var stationID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Review data-quality findings from the latest run",
		Long: `Audit summarizes the rejected and imputed records recorded by the most
recent pipeline run, grouped by reason. With --station it lists that
station's individual findings instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.LatestRun(ctx)
			if err != nil {
				return fmt.Errorf("no recorded runs found: %w", err)
			}

			if stationID != "" {
				entries, err := store.StationAudit(ctx, run.ID, stationID)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println(cli.FormatInfo(fmt.Sprintf("no findings for station %s in run %s", stationID, run.ID)))
					return nil
				}
				fmt.Println(cli.FormatTitle(fmt.Sprintf("Findings for station %s", stationID)))
				for _, e := range entries {
					fmt.Printf("  line %-6d %-10s %-8s %-22s %s\n", e.Line, e.Date, e.Flag, e.Reason, e.Detail)
				}
				return nil
			}

			counts, err := store.RunSummary(ctx, run.ID)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "  Run: %s (%s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04 MST"))
			fmt.Fprintf(&b, "  Input: %s\n", run.InputPath)
			fmt.Fprintf(&b, "  Records: %d total, %d ok, %d imputed, %d rejected\n\n",
				run.TotalRecords, run.OKCount, run.ImputedCount, run.RejectedCount)
			if len(counts) == 0 {
				b.WriteString("  " + cli.FormatSuccess("every record passed clean") + "\n")
			} else {
				for _, rc := range counts {
					fmt.Fprintf(&b, "  %-8s %-24s %d\n", rc.Flag, rc.Reason, rc.Count)
				}
			}

			fmt.Println(cli.RenderBox("Audit Summary", b.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&stationID, "station", "", "list findings for one station")

	return cmd
}
