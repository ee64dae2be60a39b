// Package history keeps a SQLite log of lr2ise runs.
//
// Each run stores its identifiers, final search status, outcome, failure
// kind, and counts. Log records and identity mappings are never written.
// The schema is embedded and versioned; a mismatched database must be
// removed rather than migrated.
package history
