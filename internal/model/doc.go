// Package model defines the onboarding data model shared by the catalog,
// store and reconciliation engine.
//
// # Records
//
//   - Subject: an onboarding submission with boolean request flags
//   - Template: a catalog entry mapping one flag to a task definition
//   - Task: a record derived from (Subject, Template), child of the Subject
//
// # Identity
//
// Task identity is deterministic: ComposeTaskID(subjectID, shortCode) always
// yields "ONB-{subjectID}-{shortCode}". The id doubles as the lookup key, so
// it is never generated randomly and its format must stay stable across
// releases.
//
// # Flags
//
// Stored flags arrive in several encodings ("true", "1", "YES", bool, int).
// Truthy is the single normalization point; everything past the boundary
// sees plain bools.
package model
