// Package mapping turns loosely decoded search records into identity mappings.
//
// Transform keeps records whose description carries the logon marker, reads
// user, source IP, timestamp, and log-source label from known field names and
// their aliases, and validates each value. The domain always comes from the
// caller. Records that cannot be mapped become MalformedRecordWarning values;
// the pass itself performs no I/O and never fails.
package mapping
