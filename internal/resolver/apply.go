package resolver

import (
	"context"
	"fmt"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

// ShapeMismatchError marks a resolved value that doesn't satisfy its
// target's declared ExpectedResolvedValue — always fatal to the activation
// that produced it.
type ShapeMismatchError struct {
	Path     string
	Expected registry.ExpectedResolvedValue
	Got      any
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: resolved value does not match expected shape %q (got %T)", e.Path, e.Expected, e.Got)
}

// isExpectedResolvedSecretValue checks a resolved value's shape: for
// "string", a non-empty string; for "string-or-object", also accepts a
// non-nil mapping.
func isExpectedResolvedSecretValue(expected registry.ExpectedResolvedValue, v any) bool {
	switch expected {
	case registry.ExpectedString:
		s, ok := v.(string)
		return ok && s != ""
	case registry.ExpectedStringOrObject:
		if s, ok := v.(string); ok {
			return s != ""
		}
		m, ok := v.(map[string]any)
		return ok && m != nil
	default:
		return false
	}
}

// ApplyOutcome is BatchAndApply's result: the refs that failed to resolve
// (by refKey) and the Ref-resolution/shape error that failed them.
type ApplyOutcome struct {
	Failed map[string]error
}

// BatchAndApply resolves every assignment's ref via providers, then writes
// each successfully and validly resolved value into its target document
// (resolvedConfig, or the matching entry in authStores, keyed by AgentID).
// A provider-scoped or per-ref resolution failure, or a post-condition
// shape mismatch, is recorded in ApplyOutcome.Failed and that assignment's
// value is left unwritten; every other assignment still applies
// independently.
func BatchAndApply(ctx context.Context, reg providers.Registry, limits providers.Limits, assignments []Assignment, resolvedConfig configtree.Node, authStores map[string]configtree.Node) (ApplyOutcome, error) {
	refs := make([]secretref.Ref, len(assignments))
	for i, a := range assignments {
		refs[i] = a.Ref
	}

	result, err := providers.ResolveAll(ctx, reg, refs, limits)
	if err != nil {
		return ApplyOutcome{}, err
	}

	outcome := ApplyOutcome{Failed: map[string]error{}}
	for _, a := range assignments {
		key := a.Ref.Key()
		if rerr, failed := result.Errors[key]; failed {
			outcome.Failed[a.Path] = rerr
			continue
		}
		value, ok := result.Values[key]
		if !ok {
			outcome.Failed[a.Path] = fmt.Errorf("%s: provider returned no value and no error for %s", a.Path, key)
			continue
		}
		if !isExpectedResolvedSecretValue(a.Expected, value) {
			outcome.Failed[a.Path] = &ShapeMismatchError{Path: a.Path, Expected: a.Expected, Got: value}
			continue
		}

		var target configtree.Node
		switch a.Target {
		case TargetResolvedConfig:
			target = resolvedConfig
		case TargetAuthStore:
			target = authStores[a.AgentID]
		}
		if target == nil {
			outcome.Failed[a.Path] = fmt.Errorf("%s: no target document available to write into", a.Path)
			continue
		}
		if _, err := configtree.SetPathExistingStrict(target, a.PathSegments, value); err != nil {
			outcome.Failed[a.Path] = fmt.Errorf("%s: writing resolved value: %w", a.Path, err)
		}
	}
	return outcome, nil
}
