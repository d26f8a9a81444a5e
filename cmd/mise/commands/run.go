package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRunCmd() *cobra.Command {
	var (
		jobs int
		mode string
	)
	cmd := &cobra.Command{
		Use:     "run task... [::: task...]",
		Aliases: []string{"r"},
		Short:   "Run tasks with their dependencies",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return c.app.RunTasks(cmd.Context(), args, jobs, mode, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Maximum tasks to run in parallel")
	cmd.Flags().StringVar(&mode, "output", "", "Output mode: silent, quiet, interleave, prefix")
	return cmd
}

func (c *CLI) newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect tasks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.app.TaskLs(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "deps [task...]",
			Short: "Show the task dependency tree",
			Args:  cobra.ArbitraryArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.app.TaskDeps(cmd.OutOrStdout(), args)
			},
		},
	)
	return cmd
}
