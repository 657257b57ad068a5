package preflight

import (
	"context"

	"pressline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg. The store check is skipped
// when pinger is nil.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}
	results = append(results, CheckAuth(cfg.Auth))
	if pinger != nil {
		results = append(results, CheckStore(ctx, cfg.Store.Backend, pinger, cfg.StoreTimeout()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
