package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuckyWindsck/mise/internal/build"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "mise %s (%s)\n", build.Version, build.Commit)
			return nil
		},
	}
}
