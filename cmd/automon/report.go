package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"automon/internal/config"
)

// newReportCmd groups performance-report persistence/retrieval. "analyze
// --save" is what writes reports (it already has the TripAnalyzer pass
// in hand); this command only reads them back.
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Inspect persisted PerformanceReports"}

	var since time.Duration
	history := &cobra.Command{
		Use:   "history <vin>",
		Short: "List PerformanceReports saved for a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			ds, err := openDatastore(cfg)
			if err != nil {
				return err
			}
			if ds == nil {
				return fmt.Errorf("automon: no datastore.sqlite.path configured")
			}
			defer ds.Close()

			vin := args[0]
			end := time.Now()
			reports, err := ds.GetPerformanceReports(vin, end.Add(-since), end)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Printf("%s\tduration=%s\tavgRPM=%.0f\tavgSpeed=%.1f\tefficiency=%.0f\n",
					r.Timestamp.Format(time.RFC3339), r.Duration, r.Stats.AverageRPM, r.Stats.AverageSpeed, r.Stats.EfficiencyScore)
			}
			return nil
		},
	}
	history.Flags().DurationVar(&since, "since", 30*24*time.Hour, "how far back to look")
	cmd.AddCommand(history)

	return cmd
}
