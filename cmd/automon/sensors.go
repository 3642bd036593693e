package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newListSensorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-sensors",
		Short: "List the canonical sensor catalog and their support status",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, store, err := openKernel()
			if err != nil {
				return err
			}
			defer func() {
				if store != nil {
					store.Close()
				}
				k.Disconnect()
			}()

			for _, s := range k.Sensors() {
				status := "unsupported"
				if s.Supported() {
					status = "supported"
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", s.PID, s.Name, s.Unit, status)
			}
			return nil
		},
	}
}

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll <pid>...",
		Short: "Activate the given PIDs and print their values as they change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, store, err := openKernel()
			if err != nil {
				return err
			}
			defer func() {
				if store != nil {
					store.Close()
				}
				k.Disconnect()
			}()

			for _, pid := range args {
				if err := k.Activate(pid); err != nil {
					return err
				}
			}

			k.SubscribeValue(func(pid string, value float64) {
				fmt.Printf("%s = %v\n", pid, value)
			})
			k.SubscribeError(func(err error) {
				fmt.Fprintf(os.Stderr, "poll: %v\n", err)
			})

			if err := k.StartPolling(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			return k.StopPolling()
		},
	}
}
