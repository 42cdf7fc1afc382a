// Package catalog holds the flag-to-template mapping that drives task
// reconciliation.
//
// A Catalog is validated once, when it is built. Every template needs a
// non-empty flag, a short code usable in a task id, and a short code no
// other template in the same catalog uses. Violations are reported together
// as an *IntegrityError so a broken catalog never reaches the engine.
//
// Catalogs come from a Provider. This package ships providers backed by a
// fixed template list, a YAML file and a CUE directory, plus Fallback which
// chains a primary provider to a static default when the primary is empty.
// internal/store adds a provider backed by the task_categories table.
package catalog
