package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fuelmx/pipa/internal/artifact"
	"github.com/fuelmx/pipa/internal/cli"
	"github.com/fuelmx/pipa/internal/model"
)

func stationsCmd() *cobra.Command {
	var artifactPath string

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Show station coverage from an artifact",
		Long: `Stations reads a previously written artifact and reports how many
distinct stations filed per year, overall and per fuel, alongside the
national volume sold.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := artifact.Load(expandPath(artifactPath))
			if err != nil {
				return err
			}

			if len(a.Coverage) == 0 {
				fmt.Println(cli.FormatWarning("artifact contains no coverage data"))
				return nil
			}

			volumes, prices := nationalAnnualVolumes(a)

			var b strings.Builder
			header := fmt.Sprintf("%-6s %-10s", "Year", "Stations")
			for _, fuel := range model.FuelTypes {
				header += fmt.Sprintf(" %-18s", fuel)
			}
			b.WriteString(cli.TableHeaderStyle.Render(header) + "\n")

			for _, rec := range a.Coverage {
				row := fmt.Sprintf("%-6d %-10d", rec.Year, rec.TotalStations)
				byFuel := make(map[string]artifact.FuelCoverage, len(rec.ByFuel))
				for _, fc := range rec.ByFuel {
					byFuel[fc.Fuel] = fc
				}
				for _, fuel := range model.FuelTypes {
					fc, ok := byFuel[string(fuel)]
					if !ok {
						row += fmt.Sprintf(" %-18s", "-")
						continue
					}
					row += fmt.Sprintf(" %-18s", fmt.Sprintf("%d (%.0f%%)", fc.Stations, fc.Share*100))
				}
				b.WriteString(cli.TableCellStyle.Render(row) + "\n")

				if yearVolumes, ok := volumes[rec.Year]; ok {
					for _, fuel := range model.FuelTypes {
						v, ok := yearVolumes[fuel]
						if !ok || v <= 0 {
							continue
						}
						line := fmt.Sprintf("       %s: %s", fuel, cli.FormatVolume(v))
						if p, ok := prices[rec.Year][fuel]; ok && p > 0 {
							line += " at " + cli.FormatPrice(p)
						}
						b.WriteString(cli.SubtleStyle.Render(line) + "\n")
					}
				}
			}

			fmt.Println(cli.FormatTitle("Station Coverage"))
			fmt.Println(b.String())

			if table := stateStationTable(a); table != "" {
				fmt.Println(cli.FormatTitle("Stations by State"))
				fmt.Println(table)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&artifactPath, "artifact", "a", "aggregates.json", "artifact path")

	return cmd
}

// nationalAnnualVolumes indexes national year-bucket volume sums and mean
// prices by year and fuel.
func nationalAnnualVolumes(a *artifact.Artifact) (map[int]map[model.FuelType]float64, map[int]map[model.FuelType]float64) {
	volumes := make(map[int]map[model.FuelType]float64)
	prices := make(map[int]map[model.FuelType]float64)
	for i := range a.Buckets {
		rec := &a.Buckets[i]
		if rec.Granularity != string(model.GranularityNational) || len(rec.Period) != 4 {
			continue
		}
		var year int
		if _, err := fmt.Sscanf(rec.Period, "%d", &year); err != nil {
			continue
		}
		if volumes[year] == nil {
			volumes[year] = make(map[model.FuelType]float64)
			prices[year] = make(map[model.FuelType]float64)
		}
		fuel := model.FuelType(rec.Fuel)
		volumes[year][fuel] += rec.TotalVolume
		prices[year][fuel] = rec.Price.Mean
	}
	return volumes, prices
}

// stateStationTable renders per-state station counts by fuel for the most
// recent year present in the state buckets, with municipality density.
func stateStationTable(a *artifact.Artifact) string {
	type stateRow struct {
		byFuel         map[model.FuelType]int
		municipalities int
		density        float64
	}

	latest := ""
	rows := make(map[string]*stateRow)
	for i := range a.Buckets {
		rec := &a.Buckets[i]
		if rec.Granularity != string(model.GranularityState) || len(rec.Period) != 4 {
			continue
		}
		if rec.Period > latest {
			latest = rec.Period
			rows = make(map[string]*stateRow)
		}
		if rec.Period != latest {
			continue
		}
		row, ok := rows[rec.GeoKey]
		if !ok {
			row = &stateRow{byFuel: make(map[model.FuelType]int)}
			rows[rec.GeoKey] = row
		}
		row.byFuel[model.FuelType(rec.Fuel)] = rec.StationCount
		if rec.MunicipalityCount > 0 {
			row.municipalities = rec.MunicipalityCount
			row.density = rec.StationsPerMun
		}
	}
	if len(rows) == 0 {
		return ""
	}

	states := make([]string, 0, len(rows))
	for state := range rows {
		states = append(states, state)
	}
	sort.Strings(states)

	var b strings.Builder
	header := fmt.Sprintf("%-6s", "State")
	for _, fuel := range model.FuelTypes {
		header += fmt.Sprintf(" %-9s", fuel)
	}
	header += fmt.Sprintf(" %-7s %-12s", "Munis", "Per muni")
	b.WriteString(cli.TableHeaderStyle.Render(header+"  ("+latest+")") + "\n")

	for _, state := range states {
		row := rows[state]
		line := fmt.Sprintf("%-6s", state)
		for _, fuel := range model.FuelTypes {
			if n, ok := row.byFuel[fuel]; ok {
				line += fmt.Sprintf(" %-9d", n)
			} else {
				line += fmt.Sprintf(" %-9s", "-")
			}
		}
		line += fmt.Sprintf(" %-7d %-12.1f", row.municipalities, row.density)
		b.WriteString(cli.TableCellStyle.Render(line) + "\n")
	}
	return b.String()
}
