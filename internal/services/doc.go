// Package services defines shared utilities consumed by the pipeline stages and
// backend clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, search task handles, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so fatal failures name the
//     stage that produced them and can be classified with FailureKind.
//
// Typed errors elsewhere in the module implement Is so that errors.Is matches
// them against these markers.
package services
