// Package onboarding is the caller side of the reconciliation engine.
//
// Service stores onboarding submissions and runs engine.Reconciler.Sync after
// every create or update. Sync runs in degraded mode: once the submission is
// saved the call succeeds, and any reconciliation failure is reported on the
// Result for the caller to log or retry with Resync.
//
// Service also carries the task management actions a coordinator performs by
// hand: completing a task and cancelling it with a reason. Both are terminal
// and later reconciliation passes leave such tasks alone.
package onboarding
