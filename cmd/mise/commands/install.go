package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "install [tool@version...]",
		Aliases: []string{"i"},
		Short:   "Install missing tool versions",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Install(cmd.Context(), args, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinstall even when already installed")
	return cmd
}

func (c *CLI) newUseCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "use tool@version...",
		Short: "Pin tool versions in config and install them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Use(cmd.Context(), args, global)
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "Pin in the user config instead of the project config")
	return cmd
}

func (c *CLI) newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall tool@version",
		Short: "Remove an installed tool version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Uninstall(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) newLsCmd() *cobra.Command {
	var outdated bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List requested and installed tool versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Ls(cmd.Context(), cmd.OutOrStdout(), outdated)
		},
	}
	cmd.Flags().BoolVar(&outdated, "outdated", false, "Only show tools trailing their catalog")
	return cmd
}

func (c *CLI) newBinPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bin-paths",
		Short: "Print the active tool bin directories in PATH order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.BinPaths(cmd.Context(), cmd.OutOrStdout())
		},
	}
}
