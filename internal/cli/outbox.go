package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewOutboxCommand creates the outbox command group.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and acknowledge queued notifications",
		Long: `Inspect and acknowledge notifications queued by the outbox sink.

A delivery process reads pending entries with "outbox list --format json",
sends them, and marks them delivered with "outbox ack".`,
	}

	cmd.AddCommand(newOutboxListCommand(rootOpts))
	cmd.AddCommand(newOutboxAckCommand(rootOpts))
	return cmd
}

func newOutboxListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List undelivered notifications, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				entries, err := env.outbox.Pending(ctx, env.partition, limit)
				if err != nil {
					return f.Fail("list outbox failed", err)
				}
				return f.Success(OutboxList(entries))
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to list (0 for all)")
	return cmd
}

func newOutboxAckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ack <id>...",
		Short:         "Mark notifications delivered",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *environment, f *OutputFormatter) error {
				acked := make([]string, 0, len(args))
				for _, id := range args {
					if err := env.outbox.MarkDelivered(ctx, id); err != nil {
						return f.Fail("ack failed", err)
					}
					acked = append(acked, id)
				}
				if f.JSON() {
					return f.Success(map[string][]string{"delivered": acked})
				}
				return f.Success(fmt.Sprintf("✓ Marked %d notification(s) delivered", len(acked)))
			})
		},
	}
}
