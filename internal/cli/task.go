package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewTasksCommand creates the tasks command.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks [submission-id]",
		Short: "List tasks",
		Long: `List the tasks of one submission, or every task in the partition when no
submission id is given. Tasks are ordered by task id.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				subjectID := ""
				if len(args) == 1 {
					subjectID = args[0]
				}
				tasks, err := env.service.Tasks(ctx, env.partition, subjectID)
				if err != nil {
					return f.Fail("list tasks failed", err)
				}
				return f.Success(TaskList(tasks))
			})
		},
	}
}

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and close individual tasks",
		Long: `Inspect and close individual tasks.

Completed and Cancelled are terminal: reconciliation never changes a task
in either state, and neither can be completed or cancelled again.`,
	}

	cmd.AddCommand(newTaskShowCommand(rootOpts))
	cmd.AddCommand(newTaskCompleteCommand(rootOpts))
	cmd.AddCommand(newTaskCancelCommand(rootOpts))
	cmd.AddCommand(newTaskDeleteCommand(rootOpts))
	return cmd
}

func newTaskShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <task-id>",
		Short:         "Show a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				task, err := env.service.Task(ctx, env.partition, args[0])
				if err != nil {
					return f.Fail("show task failed", err)
				}
				return f.Success(TaskView(task))
			})
		},
	}
}

func newTaskCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "complete <task-id>",
		Short:         "Mark a task Completed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				task, err := env.service.CompleteTask(ctx, env.partition, args[0])
				if err != nil {
					return f.Fail("complete failed", err)
				}
				return f.Success(TaskView(task))
			})
		},
	}
}

func newTaskCancelCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:           "cancel <task-id>",
		Short:         "Mark a task Cancelled",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				task, err := env.service.CancelTask(ctx, env.partition, args[0], reason)
				if err != nil {
					return f.Fail("cancel failed", err)
				}
				return f.Success(TaskView(task))
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "cancellation reason (required)")
	return cmd
}

func newTaskDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Long: `Delete a task row. If its flag is still set, the next sync of the
submission creates it again as Open.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				if err := env.service.DeleteTask(ctx, env.partition, args[0]); err != nil {
					return f.Fail("delete task failed", err)
				}
				if f.JSON() {
					return f.Success(map[string]string{"deleted": args[0]})
				}
				return f.Success("✓ Deleted task " + args[0])
			})
		},
	}
}
