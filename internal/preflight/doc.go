// Package preflight provides readiness checks for the backends and paths
// that lr2ise depends on.
//
// The CLI "lr2ise check" command runs RunAll and prints each Result. The run
// command reuses CheckSearchToken to warn before submitting a search with an
// expired token. Checks whose settings are missing fail with a hint instead
// of contacting anything.
package preflight
