// Package engine reconciles an onboarding subject's request flags against
// its task records.
//
// For each catalog template, in ascending flag order, the Reconciler:
//  1. normalizes the subject's flag to a bool
//  2. composes the task id from subject id and template short code
//  3. looks the task up by that id (never by name)
//  4. applies the action chosen by Decide
//  5. sends one notification for each transition
//
// DECISION TABLE:
//
//	requested  existing  status              action
//	true       no        -                   create (Open)
//	true       yes       N/A                 resume (Open, refresh manager)
//	true       yes       Completed/Cancelled none
//	true       yes       active, same mgr    none
//	true       yes       active, new mgr     refresh (manager only)
//	false      yes       active              retire (N/A, description suffixed)
//	false      no/closed -                   none
//
// FAILURE POLICY:
//
// Only a missing subject id or an unusable catalog abort a pass. Store and
// notification failures are recorded on the flag's Outcome and the pass moves
// on to the next flag; a notification failure never undoes the mutation that
// preceded it. Every action is safe to retry: re-running a pass converges.
//
// CONCURRENCY:
//
// Passes for the same (partition, subject) are serialized by a keyed lock
// held for the whole pass. Passes for different subjects run concurrently.
package engine
