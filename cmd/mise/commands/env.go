package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newEnvCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the activation environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.EnvExports(cmd.Context(), cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of shell exports")
	return cmd
}

func (c *CLI) newHookEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "hook-env",
		Short:  "Emit the per-prompt environment delta",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.HookEnv(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *CLI) newExecCmd() *cobra.Command {
	var shim string
	cmd := &cobra.Command{
		Use:   "x [--shim name] -- cmd [args...]",
		Short: "Execute a command with the activation environment applied",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Exec(cmd.Context(), shim, args, cmd.OutOrStdout(), cmd.ErrOrStderr(), c.executor)
		},
	}
	cmd.Flags().StringVar(&shim, "shim", "", "Dispatch as the named shim")
	return cmd
}
