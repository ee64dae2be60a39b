// Package search builds LogRhythm search queries and drives the Search API.
//
// NewQuery produces a request body whose collections are always present.
// Client submits that body as a search task and fetches result snapshots,
// returning status labels verbatim; Classify maps a label onto the running,
// succeeded, or failed outcome by set membership so unknown labels keep a
// search in the running state.
package search
