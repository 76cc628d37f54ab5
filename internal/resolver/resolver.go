// Package resolver implements the secrets resolver (spec component C5): it
// walks the target registry against a loaded configuration, resolves every
// active ref-bearing target through the provider layer, writes the results
// back into a resolved-config/auth-store tree, and tracks the reload
// lifecycle state machine that governs whether the gateway serves the
// freshly resolved snapshot or keeps its last-known-good one.
package resolver

import (
	"context"
	"fmt"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

// PrepareInput bundles everything one prepare pass needs: the compiled
// registry, the provider instances keyed by alias, the concurrency limits,
// and the documents to walk and mutate in place.
type PrepareInput struct {
	Registry       *registry.Registry
	Providers      providers.Registry
	Limits         providers.Limits
	ResolvedConfig configtree.Node
	AuthStores     map[string]configtree.Node
}

// PrepareResult is everything a caller needs to decide Ready vs Degraded and
// to report diagnostics: the warnings collected during the walk, the
// per-target failures collected during batch-and-apply, and a convenience
// OK flag (true iff there were zero failures).
type PrepareResult struct {
	Warnings *secretref.WarningSet
	Failed   map[string]error
	OK       bool
}

// Prepare runs one full walk-resolve-apply pass over in.ResolvedConfig and
// in.AuthStores, mutating them in place with every successfully resolved
// secret value. It does not itself decide Ready/Degraded/FatalStartupFailure
// — call sm.Succeed()/sm.Fail() with the result, since that decision also
// depends on whether this is the process's first ever prepare attempt,
// which Prepare has no visibility into.
func Prepare(ctx context.Context, in PrepareInput) (PrepareResult, error) {
	walked := Walk(in.Registry, in.ResolvedConfig, in.AuthStores)

	outcome, err := BatchAndApply(ctx, in.Providers, in.Limits, walked.Assignments, in.ResolvedConfig, in.AuthStores)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("resolver: batch resolution: %w", err)
	}

	return PrepareResult{
		Warnings: walked.Warnings,
		Failed:   outcome.Failed,
		OK:       len(outcome.Failed) == 0,
	}, nil
}

// PrepareAndTransition runs Prepare and feeds its outcome into sm, returning
// whatever Prepare returned so callers get both the lifecycle decision and
// the diagnostics in one call. This is the entry point the reload RPC
// handler and process-startup path both use.
func PrepareAndTransition(ctx context.Context, in PrepareInput, sm *StateMachine) (PrepareResult, error) {
	sm.BeginPreparing()

	result, err := Prepare(ctx, in)
	if err != nil {
		sm.Fail(err)
		return result, err
	}
	if !result.OK {
		var first error
		for _, e := range result.Failed {
			first = e
			break
		}
		sm.Fail(fmt.Errorf("resolver: %d target(s) failed to resolve, e.g. %w", len(result.Failed), first))
		return result, nil
	}
	sm.Succeed()
	return result, nil
}
