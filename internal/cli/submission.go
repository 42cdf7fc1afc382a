package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/onboarding/internal/onboarding"
)

// FieldOptions holds the flags shared by commands that take form fields.
type FieldOptions struct {
	*RootOptions
	File string
	Set  []string
}

func addFieldFlags(cmd *cobra.Command, opts *FieldOptions) {
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML or JSON file of form fields (- for stdin)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "form field as key=value (repeatable)")
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a submission and sync its tasks",
		Long: `Create an onboarding submission from form fields and create the tasks
its request flags call for.

A submission id is generated unless the fields carry submission_id.

Exit codes:
  0 - Submission saved and tasks in sync
  1 - Submission saved but some task writes failed (retry with resync)
  2 - Command error (bad fields, id already taken, etc.)

Examples:
  onboard submit -f hire.yaml
  onboard submit --set LegalFirstName=Ada --set LegalLastName=Lovelace \
    --set Manager="Grace Hopper" --set GasCard_Requested=yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				fields, err := readFields(cmd.InOrStdin(), opts.File, opts.Set)
				if err != nil {
					return errUsage(f, "%v", err)
				}
				if len(fields) == 0 {
					return errUsage(f, "no fields given: use --file or --set")
				}
				res, err := env.service.Create(ctx, env.partition, fields)
				if err != nil {
					return f.Fail("submit failed", err)
				}
				return outputSync(f, res)
			})
		},
	}

	addFieldFlags(cmd, opts)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <submission-id>",
		Short: "Update a submission and sync its tasks",
		Long: `Merge form fields onto a stored submission and bring its tasks in line.

Fields not given keep their stored values. Cleared flags retire their
tasks, set flags create or resume them, and a manager or name change is
copied onto every task of the submission.

Example:
  onboard update 0190c6a1-7f3e-7a4b-9c2d-1e2f3a4b5c6d --set GasCard_Requested=no`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				fields, err := readFields(cmd.InOrStdin(), opts.File, opts.Set)
				if err != nil {
					return errUsage(f, "%v", err)
				}
				if len(fields) == 0 {
					return errUsage(f, "no fields given: use --file or --set")
				}
				res, err := env.service.Update(ctx, env.partition, args[0], fields)
				if err != nil {
					return f.Fail("update failed", err)
				}
				return outputSync(f, res)
			})
		},
	}

	addFieldFlags(cmd, opts)
	return cmd
}

// NewResyncCommand creates the resync command.
func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "resync [submission-id]",
		Short: "Rerun task sync for stored submissions",
		Long: `Rerun task sync for a stored submission, or for every submission in the
partition with --all. Use it after a degraded submit or update, or after
importing a new catalog.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				switch {
				case all && len(args) > 0:
					return errUsage(f, "give a submission id or --all, not both")
				case !all && len(args) == 0:
					return errUsage(f, "give a submission id or --all")
				case !all:
					res, err := env.service.Resync(ctx, env.partition, args[0])
					if err != nil {
						return f.Fail("resync failed", err)
					}
					return outputSync(f, res)
				}
				return resyncAll(ctx, env, f)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "resync every submission in the partition")
	return cmd
}

func resyncAll(ctx context.Context, env *environment, f *OutputFormatter) error {
	subs, err := env.service.List(ctx, env.partition)
	if err != nil {
		return f.Fail("list submissions failed", err)
	}
	views := make([]SyncView, 0, len(subs))
	degraded := 0
	for _, sub := range subs {
		res, err := env.service.Resync(ctx, env.partition, sub.ID)
		if err != nil {
			return f.Fail("resync failed", err)
		}
		if res.Degraded() {
			degraded++
		}
		f.VerboseLog("resynced %s", sub.ID)
		views = append(views, newSyncView(res))
	}

	if f.JSON() {
		if degraded > 0 {
			_ = f.Partial(views, ErrCodeSyncFailed, fmt.Sprintf("%d submission(s) not fully synced", degraded))
		} else if err := f.Success(views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			fmt.Fprintln(f.Writer, v)
		}
		fmt.Fprintf(f.Writer, "Resynced %d submission(s), %d degraded\n", len(views), degraded)
	}
	if degraded > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d submission(s) not fully synced", degraded))
	}
	return nil
}

// outputSync prints a submission write. A degraded sync is exit code 1:
// the submission is saved and a resync can finish the tasks.
func outputSync(f *OutputFormatter, res onboarding.Result) error {
	view := newSyncView(res)
	if !res.Degraded() {
		return f.Success(view)
	}
	code, _ := classify(res.SyncErr)
	if code == ErrCodeGeneric {
		code = ErrCodeSyncFailed
	}
	_ = f.Partial(view, code, "submission saved, tasks not fully synced")
	return WrapExitError(ExitFailure, "tasks not fully synced", res.SyncErr)
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <submission-id>",
		Short:         "Show a submission",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				sub, err := env.service.Get(ctx, env.partition, args[0])
				if err != nil {
					return f.Fail("show failed", err)
				}
				return f.Success(SubmissionView(sub))
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List submissions in the partition",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				subs, err := env.service.List(ctx, env.partition)
				if err != nil {
					return f.Fail("list failed", err)
				}
				return f.Success(SubmissionList(subs))
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <submission-id>",
		Short: "Delete a submission",
		Long: `Delete a submission. Its tasks are kept: they may already be in
progress and are closed by hand with "onboard task".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				if err := env.service.Delete(ctx, env.partition, args[0]); err != nil {
					return f.Fail("delete failed", err)
				}
				if f.JSON() {
					return f.Success(map[string]string{"deleted": args[0]})
				}
				return f.Success("✓ Deleted submission " + args[0])
			})
		},
	}
}
