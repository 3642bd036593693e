package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect to the adapter and print its identity",
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

			version, err := k.AdapterVersion()
			if err != nil {
				return err
			}
			protocol, err := k.Protocol()
			if err != nil {
				return err
			}
			vin, err := k.VIN()
			if err != nil {
				return err
			}

			fmt.Printf("Adapter: %s\n", version)
			fmt.Printf("Protocol: %s\n", protocol)
			fmt.Printf("VIN: %s\n", vin)
			return nil
		},
	}
}
