// Package store persists the evidence ledger in SQLite and exposes helpers
// for driving its lifecycle.
//
// The Store manages database connections, schema migrations, the
// content-addressed blob table, artifact dedup by (source, source_id),
// identity profiles with their claims and audited operations, entity links
// with their confidence gate transitions, and the manual fix queue. The
// database's uniqueness constraints are the race-resolution mechanism:
// concurrent producers inserting the same artifact resolve to one winner,
// and claim binding is arbitrated by the (claim_type, normalized_value)
// unique index.
//
// Treat this package as the single source of truth for ledger semantics;
// when you add new statuses or columns, add a migration under migrations/.
package store
