// Package linking proposes confidence-scored links from artifacts to known
// business entities.
//
// Matching runs a fixed, ordered table of independent strategies: headers
// (structural identifiers embedded in the payload), participants (the
// resolved actor maps to exactly one catalog entity), naming (bracketed and
// keyword name matches), and rules (a deterministic allow-list with fixed
// confidence per rule). Strategies are pure functions over already-ingested
// local data; nothing here touches the network.
//
// One artifact may legitimately link to several distinct entities; the only
// guarded duplicate is the exact (artifact, entity type, entity id, method)
// tuple, which the store's uniqueness index enforces. The user_confirmed
// method exists in the enum but is only ever set by explicit human action
// through the manual-review interface, never produced here.
//
// Under backfill volume, linking runs as a decoupled sweep over artifacts
// that were never linked or were flagged for re-linking, so ingestion
// throughput is not coupled to matching latency.
package linking
