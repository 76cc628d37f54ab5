package resolver

import (
	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

// AssignmentTarget discriminates which document an Assignment's resolved
// value must be written into.
type AssignmentTarget int

const (
	TargetResolvedConfig AssignmentTarget = iota
	TargetAuthStore
)

// Assignment is the resolver's output for one discovered, active,
// ref-bearing target: everything the batch-and-apply phase needs without
// holding a closure over the tree.
type Assignment struct {
	Ref          secretref.Ref
	Entry        *registry.Entry
	Target       AssignmentTarget
	AgentID      string // set when Target == TargetAuthStore
	PathSegments []string
	Expected     registry.ExpectedResolvedValue
	Path         string // dotted form, for diagnostics
}

// WalkResult is Walk's output: the assignments to resolve-and-apply, plus
// deduplicated diagnostics for both inactive surfaces and sibling-ref
// overrides encountered along the way.
type WalkResult struct {
	Assignments []Assignment
	Warnings    *secretref.WarningSet
}

// Walk implements the resolver's discovery pass: it expands every
// registered target over resolvedConfig and every given auth-profile store,
// computes each target's (explicitRef, ref), evaluates active-surface
// rules, and produces one Assignment per active, ref-bearing target.
func Walk(reg *registry.Registry, resolvedConfig configtree.Node, authStores map[string]configtree.Node) WalkResult {
	warnings := secretref.NewWarningSet()
	var assignments []Assignment

	for _, dt := range reg.DiscoverConfigSecretTargets(resolvedConfig, nil) {
		result := secretref.ResolveSecretInputRef(secretref.ResolveSecretInputRefParams{
			Value:    dt.Value,
			RefValue: dt.RefValue,
		})
		if result.Ref == nil {
			continue
		}
		if result.ExplicitRef != nil {
			if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
				warnings.Add(secretref.RefOverridesPlaintext(dt.Path))
			}
		}
		active, reason := evaluateActiveness(resolvedConfig, dt)
		if !active {
			warnings.Add(secretref.RefIgnoredInactiveSurface(dt.Path, reason))
			continue
		}
		assignments = append(assignments, Assignment{
			Ref:          *result.Ref,
			Entry:        dt.Entry,
			Target:       TargetResolvedConfig,
			PathSegments: dt.PathSegments,
			Expected:     dt.Entry.ExpectedResolvedValue,
			Path:         dt.Path,
		})
	}

	for agentID, store := range authStores {
		for _, dt := range reg.DiscoverAuthProfileSecretTargets(store, nil) {
			if dt.Entry.AuthProfileType != "" {
				typeSegs := append(append([]string{}, dt.PathSegments[:len(dt.PathSegments)-1]...), "type")
				profileType, _ := configtree.GetPath(store, typeSegs)
				if s, ok := profileType.(string); !ok || s != dt.Entry.AuthProfileType {
					continue
				}
			}
			result := secretref.ResolveSecretInputRef(secretref.ResolveSecretInputRefParams{
				Value:    dt.Value,
				RefValue: dt.RefValue,
			})
			if result.Ref == nil {
				continue
			}
			path := agentID + ":" + dt.Path
			if result.ExplicitRef != nil {
				if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
					warnings.Add(secretref.RefOverridesPlaintext(path))
				}
			}
			// No active-surface rule set is registered for auth-profile
			// entries: every stored profile is itself the operator's
			// explicit enable decision (absent profiles never appear in
			// discovery at all).
			assignments = append(assignments, Assignment{
				Ref:          *result.Ref,
				Entry:        dt.Entry,
				Target:       TargetAuthStore,
				AgentID:      agentID,
				PathSegments: dt.PathSegments,
				Expected:     dt.Entry.ExpectedResolvedValue,
				Path:         path,
			})
		}
	}

	return WalkResult{Assignments: assignments, Warnings: warnings}
}
