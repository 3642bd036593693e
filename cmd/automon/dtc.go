package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDTCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dtc",
		Short: "List stored diagnostic trouble codes",
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

			codes, err := k.DTCs()
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				fmt.Println("No stored codes")
				return nil
			}
			for _, c := range codes {
				fmt.Printf("%s\t%s\n", c.Code, c.Meaning)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear stored diagnostic trouble codes and the MIL",
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
			return k.ResetCodes()
		},
	})
	return cmd
}
