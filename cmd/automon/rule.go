package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rule", Short: "Manage active rules"}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <expr>",
		Short: "Parse, activate, and persist a new rule",
		Args:  cobra.ExactArgs(2),
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

			name, expr := args[0], args[1]
			if err := k.AddRule(name, expr); err != nil {
				return err
			}
			if store != nil {
				if err := store.Put(name, expr); err != nil {
					return err
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active rules",
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

			for _, r := range k.Rules() {
				fmt.Printf("%s\t%s\tactive=%v\tsatisfied=%v\n", r.Name, r.Source, r.Active(), r.Satisfied())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Deactivate and remove a rule",
		Args:  cobra.ExactArgs(1),
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

			name := args[0]
			if err := k.RemoveRule(name); err != nil {
				return err
			}
			if store != nil {
				if err := store.Delete(name); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return cmd
}
