// Package commands implements the CLI commands for mise.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/LuckyWindsck/mise/internal/app"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// CLI is the command line interface.
type CLI struct {
	app      *app.App
	executor ports.Executor
	rootCmd  *cobra.Command
}

// New creates the CLI with all commands attached.
func New(components *app.Components) *CLI {
	rootCmd := &cobra.Command{
		Use:           "mise",
		Short:         "Polyglot dev-environment manager: tools, env, and tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{
		app:      components.App,
		executor: components.Executor,
		rootCmd:  rootCmd,
	}

	rootCmd.AddCommand(
		c.newInstallCmd(),
		c.newUseCmd(),
		c.newUninstallCmd(),
		c.newLsCmd(),
		c.newBinPathsCmd(),
		c.newEnvCmd(),
		c.newHookEnvCmd(),
		c.newExecCmd(),
		c.newRunCmd(),
		c.newTaskCmd(),
		c.newSettingsCmd(),
		c.newCacheCmd(),
		c.newVersionCmd(),
	)
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects the command output streams. Used for testing.
func (c *CLI) SetOutput(stdout, stderr io.Writer) {
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
}
