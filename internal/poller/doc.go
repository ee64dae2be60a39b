// Package poller drives a submitted search task to a terminal status.
//
// Wait fetches a snapshot, classifies its label, and either returns, fails, or
// sleeps for the configured interval before fetching again. Elapsed time
// against the configured timeout is the only bound on the number of fetches.
package poller
