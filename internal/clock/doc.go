// Package clock provides an injectable time abstraction.
//
// Components that wait between backend calls accept a Clock instead of calling
// time.Now or time.After directly. Real() wraps the standard library; Fake()
// advances on every wait so tests can assert on elapsed time without sleeping.
package clock
