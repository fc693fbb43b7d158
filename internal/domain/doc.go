// Package domain defines the core types for the campaign stats dashboard.
//
// Types in this package are value objects shared by the collector, the
// refresh orchestrator, the store tiers and the HTTP handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed; they are the persisted and served wire format
//   - Pure functions over the types (merge, parsing, formatting) are allowed
package domain
