// Package bridge runs one search-to-identity pass.
//
// A Runner submits the configured query, waits for the search to reach a
// terminal status, turns the logon records into identity mappings, and
// publishes each mapping once. Fatal lifecycle errors are wrapped with the
// stage that produced them. Per-record and per-mapping problems never stop
// the run; they are counted in the Report and, when a history store is
// attached, persisted as a run summary.
package bridge
