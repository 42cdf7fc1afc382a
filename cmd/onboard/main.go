// Command onboard keeps onboarding submissions and their task checklists in
// step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/onboarding/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}
	// Commands print their own results; cobra's own errors (unknown
	// command, bad flag) and bare errors still need a line on stderr.
	fmt.Fprintln(os.Stderr, "Error:", err)
	stop()
	os.Exit(cli.GetExitCode(err))
}
