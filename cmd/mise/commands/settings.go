package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newSettingsCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write settings",
	}
	cmd.PersistentFlags().BoolVarP(&global, "global", "g", false, "Operate on the user config")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get key",
			Short: "Print a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.app.SettingsStore(global)
				if err != nil {
					return err
				}
				v, ok, err := store.Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%v\n", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set key value",
			Short: "Assign a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.app.SettingsStore(global)
				if err != nil {
					return err
				}
				return store.Set(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "add key value",
			Short: "Append to a list-valued setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.app.SettingsStore(global)
				if err != nil {
					return err
				}
				return store.Add(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "remove key value",
			Short: "Remove from a list-valued setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.app.SettingsStore(global)
				if err != nil {
					return err
				}
				return store.Remove(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unset key",
			Short: "Remove a setting entirely",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.app.SettingsStore(global)
				if err != nil {
					return err
				}
				return store.Unset(args[0])
			},
		},
	)
	return cmd
}
