package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"automon/internal/analysis"
	"automon/internal/capture"
	"automon/internal/config"
	"automon/internal/vehicle"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool
	var save bool
	cmd := &cobra.Command{
		Use:   "analyze <session.json>",
		Short: "Compute a performance/driving-behavior report from a recorded trip session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := capture.LoadTripSession(args[0])
			if err != nil {
				return err
			}

			analyzer := analysis.NewAnalyzer(session, analysis.DefaultOptions())
			results, err := analyzer.Analyze()
			if err != nil {
				return err
			}

			if save {
				if err := saveReport(session.VIN, analyzer); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			fmt.Printf("VIN: %s\n", results.SessionInfo.VIN)
			fmt.Printf("Duration: %s\n", results.SessionInfo.Duration)
			fmt.Printf("Frames: %d\n", results.SessionInfo.TotalFrames)
			fmt.Printf("RPM: mean=%.0f max=%.0f\n", results.Performance.RPM.Mean, results.Performance.RPM.Max)
			fmt.Printf("Speed: mean=%.1f max=%.1f\n", results.Performance.Speed.Mean, results.Performance.Speed.Max)
			fmt.Printf("Coolant temp: mean=%.1f max=%.1f\n", results.Performance.CoolantTemp.Mean, results.Performance.CoolantTemp.Max)
			fmt.Printf("Idle time: %.1f%%\n", results.DrivingBehavior.IdleTime)
			fmt.Printf("Rapid accel/decel: %d/%d\n", results.DrivingBehavior.RapidAccel, results.DrivingBehavior.RapidDecel)
			fmt.Printf("DTCs: %d (%v)\n", results.Diagnostics.DTCCount, results.Diagnostics.UniqueDTCs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the full report as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "persist a PerformanceReport to the configured datastore")
	return cmd
}

// saveReport re-runs analyzer through vehicle.Manager.AnalyzePerformance
// (the C11->C12 bridge: a TripAnalyzer pass turned into the
// PerformanceReport shape Datastore persists) and writes the result to
// the configured SQLite-backed store. A no-op, not an error, if no
// datastore is configured.
func saveReport(vin string, analyzer *analysis.Analyzer) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	ds, err := openDatastore(cfg)
	if err != nil {
		return err
	}
	if ds == nil {
		fmt.Fprintln(os.Stderr, "automon: --save requested but no datastore.sqlite.path is configured, skipping")
		return nil
	}
	defer ds.Close()

	report, err := vehicle.NewManager().AnalyzePerformance(analyzer)
	if err != nil {
		return err
	}
	return ds.SavePerformanceReport(vin, report)
}
