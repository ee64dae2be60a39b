// Package main hosts the lr2ise CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once per invocation, then hands
// off to the internal packages: run drives one search-to-ISE pass, query prints
// the search body that would be submitted, check runs preflight probes against
// both backends, and history lists recorded runs. Stdout carries only command
// results; logs go to stderr and the log file.
package main
