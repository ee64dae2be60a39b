// Package ise publishes identity mappings to the Cisco ISE passive identity
// REST API.
//
// Client acquires an access token with basic auth on first use, caches it for
// the process, and drops it when ISE answers 401 or 403. Publisher wraps any
// MappingStore and turns each attempt into a boolean, logging the reason for
// a rejection as a PublishFailure without retrying.
package ise
