// Package ingest accepts normalized producer events and turns them into
// deduplicated, content-addressed artifacts.
//
// The gateway computes a canonical content hash over each event payload and
// uses the store's (source, source_id) uniqueness constraint to arbitrate
// concurrent producers: replays resolve to unchanged, upstream revisions
// overwrite the payload pointer in place and flag the artifact for
// re-extraction and re-linking. A failed actor resolution never fails the
// ingest; the artifact simply carries no actor and a fix-queue item records
// the gap.
package ingest
