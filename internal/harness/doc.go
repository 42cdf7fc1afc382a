// Package harness runs reconciliation conformance scenarios.
//
// A scenario describes one subject, the catalog it is reconciled against,
// and a sequence of steps that change the subject's form fields or act on
// its tasks. Every step runs through the real engine.Reconciler against a
// fresh in-memory SQLite store, and the resulting trace is checked with
// assertions and, optionally, against a golden file.
//
// # Scenario Format
//
//	name: gas_card_lifecycle
//	description: "Gas card requested, dropped and requested again"
//	partition: dev
//	templates:
//	  - flag: GasCard_Requested
//	    short_code: "3"
//	    to_email: fleet@example.com
//	subject:
//	  submission_id: S1
//	  LegalFirstName: Ada
//	  GasCard_Requested: false
//	steps:
//	  - op: reconcile
//	  - op: reconcile
//	    fields: { GasCard_Requested: true }
//	  - op: complete
//	    task: ONB-S1-3
//	assertions:
//	  - type: task_state
//	    task: ONB-S1-3
//	    expect: { status: Completed }
//	  - type: notification_order
//	    events: [created]
//
// Templates may instead come from a catalog file (catalog: path, YAML or
// CUE, relative to the scenario file). With neither, the built-in templates
// are used.
//
// # Step Operations
//
//   - reconcile, propagate, sync: merge fields onto the subject, then run the
//     matching Reconciler method
//   - complete: mark task Completed
//   - cancel: mark task Cancelled with reason
//
// A step may inject faults for its own duration: failed inserts or updates
// for named task ids, or a failing notification sink.
//
// # Assertion Types
//
//   - task_state: the named task exists and its fields match expect
//   - task_absent: the named task does not exist
//   - task_count: the subject has exactly count tasks
//   - trace_contains: some step produced action on task
//   - trace_count: action appears exactly count times in the trace
//   - notification_count: count notifications were sent, optionally of one event
//   - notification_order: the sent events, in order, equal events
//
// # Deterministic Testing
//
// Runs use a fixed clock that advances one minute per step and a fresh
// database, so the same scenario always yields a byte-identical trace.
package harness
