// Package store provides SQLite-backed storage for onboarding data.
//
// Tables:
//   - tasks: one row per (partition, task id); the task id is composed from
//     subject id and template short code, so it is the only lookup key
//   - submissions: onboarding subjects with normalized flags as JSON
//   - task_categories: flag to template rows backing CategoryProvider
//   - notifications: outbox written by Outbox for out-of-process delivery
//
// Every call takes an explicit partition. An empty partition is rejected with
// ErrNoPartition rather than defaulting to one.
//
// InsertTask is idempotent through ON CONFLICT DO NOTHING and reports whether
// the row was actually written. Lists are ordered by id (COLLATE BINARY) so
// results are stable across runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// MemoryTaskStore and MemorySubmissionStore are in-process equivalents used
// by tests and the scenario harness.
package store
