package preflight

import (
	"context"
	"time"

	"lr2ise/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// State directory (always checked)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// LogRhythm search API token
	if err := cfg.RequireSearch(); err != nil {
		results = append(results, Result{Name: searchCheckName, Detail: err.Error()})
	} else {
		results = append(results, CheckSearchToken(cfg.Search.APIToken, time.Now()))
	}

	// ISE passive identity API
	if err := cfg.RequireISE(); err != nil {
		results = append(results, Result{Name: iseCheckName, Detail: err.Error()})
	} else {
		results = append(results, CheckISE(ctx, cfg))
	}

	// Mapping domain
	if err := cfg.RequireDomain(); err != nil {
		results = append(results, Result{Name: "Mapping domain", Detail: err.Error()})
	} else {
		results = append(results, Result{Name: "Mapping domain", Passed: true, Detail: cfg.Mapping.Domain})
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
