package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"automon/internal/config"
	"automon/internal/vehicle"
)

// newServiceCmd manages ServiceRecords (maintenance history) and exposes
// the canonical maintenance interval table (§3 ServiceRecord).
func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "service", Short: "Record and inspect vehicle maintenance history"}

	var mileage, cost float64
	var technician string
	add := &cobra.Command{
		Use:   "add <vin> <type> <description>",
		Short: "Save a ServiceRecord for a vehicle",
		Args:  cobra.ExactArgs(3),
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

			vin, kind, description := args[0], args[1], args[2]
			record := &vehicle.ServiceRecord{
				Date:        time.Now(),
				Type:        kind,
				Description: description,
				Mileage:     mileage,
				Technician:  technician,
				Cost:        cost,
			}
			return ds.SaveServiceRecord(vin, record)
		},
	}
	add.Flags().Float64Var(&mileage, "mileage", 0, "odometer reading at time of service")
	add.Flags().Float64Var(&cost, "cost", 0, "service cost")
	add.Flags().StringVar(&technician, "technician", "", "who performed the service")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "history <vin>",
		Short: "List ServiceRecords saved for a vehicle",
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

			records, err := ds.GetServiceHistory(args[0])
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s\t%s\t%s\tmileage=%.0f\tcost=%.2f\n",
					r.Date.Format(time.RFC3339), r.Type, r.Description, r.Mileage, r.Cost)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Print the default maintenance interval schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, item := range vehicle.DefaultServiceSchedule().Items {
				fmt.Printf("%s\t%s\tevery %s mi / %d mo\t$%.0f\n",
					item.Name, item.Priority, strconv.FormatFloat(item.IntervalMiles, 'f', 0, 64),
					item.IntervalMonths, item.EstimatedCost)
			}
			return nil
		},
	})

	return cmd
}
