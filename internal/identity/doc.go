// Package identity maps raw external identifiers to canonical identity
// profiles and owns the audited merge/split operations over them.
//
// A claim binds one normalized identifier to exactly one profile; the
// (claim_type, normalized_value) uniqueness index in the store arbitrates
// concurrent creation. Rebinding a claim to a different profile only ever
// happens through an explicit merge or split, each of which commits its
// claim moves and its audit operation in a single transaction.
//
// Resolution never errors on an unbound identifier when creation is
// disabled; it returns nil so batch callers can decide whether to enqueue a
// fix-queue item without aborting the batch.
package identity
