package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"automon/internal/api"
	"automon/internal/config"
	"automon/internal/datastore"
	"automon/internal/mqttbridge"
	"automon/internal/vehicle"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/websocket API and MQTT bridge against a live Kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}

			k, store, err := openKernelWithConfig(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if store != nil {
					store.Close()
				}
				k.Disconnect()
			}()

			vin, err := k.VIN()
			if err != nil {
				return err
			}

			for _, s := range k.Sensors() {
				if s.Supported() {
					_ = k.Activate(s.PID)
				}
			}

			manager := vehicle.NewManager()
			if _, err := manager.RegisterVehicle(vin, "", "", 0); err != nil {
				return err
			}
			manager.Subscribe(k, vin)

			ds, err := openDatastore(cfg)
			if err != nil {
				return err
			}
			if ds != nil {
				defer ds.Close()

				if v, err := manager.GetVehicle(vin); err == nil {
					if err := ds.SaveVehicle(v); err != nil {
						fmt.Fprintf(os.Stderr, "automon: saving vehicle: %v\n", err)
					}
				}

				k.SubscribeValue(func(pid string, value float64) {
					v, err := manager.GetVehicle(vin)
					if err != nil {
						return
					}
					if err := ds.SaveTelemetry(vin, stateToTelemetry(vin, &v.State)); err != nil {
						fmt.Fprintf(os.Stderr, "automon: saving telemetry: %v\n", err)
					}
				})

				stopAlerts := make(chan struct{})
				go runAlertLoop(manager, ds, vin, stopAlerts)
				defer close(stopAlerts)
			}

			server := api.NewServer(k, manager)

			if cfg.MQTT.Broker != "" {
				bridge, err := mqttbridge.Connect(mqttbridge.Config{
					Broker:   cfg.MQTT.Broker,
					ClientID: cfg.MQTT.ClientID,
				}, vin)
				if err != nil {
					return fmt.Errorf("automon serve: mqtt: %w", err)
				}
				defer bridge.Disconnect()
				bridge.Subscribe(k)
			}

			if err := k.StartPolling(); err != nil {
				return err
			}
			defer k.StopPolling()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			httpServer := &http.Server{Addr: addr, Handler: server.Router()}
			go func() {
				fmt.Printf("automon: serving on http://%s\n", addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					fmt.Fprintf(os.Stderr, "automon: http server: %v\n", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			return httpServer.Close()
		},
	}
}

// stateToTelemetry snapshots a vehicle's live State into the shape the
// time-series backend stores (§4.10).
func stateToTelemetry(vin string, s *vehicle.State) *datastore.TelemetryData {
	return &datastore.TelemetryData{
		Timestamp:    s.LastUpdated,
		VIN:          vin,
		CoolantTemp:  s.CoolantTemp,
		FuelPressure: s.FuelPressure,
		RPM:          s.RPM,
		Speed:        s.Speed,
		MAF:          s.MAF,
		ThrottlePos:  s.ThrottlePos,
		RunTime:      s.RunTime,
		CommandedEGR: s.CommandedEGR,
		FuelLevel:    s.FuelLevel,
		O2Voltage:    s.O2Voltage,
		DTCs:         s.DTCs,
	}
}

// runAlertLoop periodically re-checks the active vehicle against its
// profile thresholds and persists any raised Alert, until stop is
// closed. DetectAnomalies is cheap (in-memory comparisons only), so a
// fixed interval is enough without coordinating with the poller.
func runAlertLoop(manager *vehicle.Manager, ds datastore.Store, vin string, stop chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			alerts, err := manager.DetectAnomalies(vin)
			if err != nil {
				continue
			}
			for i := range alerts {
				if err := ds.SaveAlert(vin, &alerts[i]); err != nil {
					fmt.Fprintf(os.Stderr, "automon: saving alert: %v\n", err)
				}
			}
		}
	}
}
