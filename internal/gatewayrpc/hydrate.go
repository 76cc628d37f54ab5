package gatewayrpc

import (
	"context"
	"fmt"
	"strings"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
	"aureuma/secrets-gateway/internal/snapshot"
)

// refBearingTarget is one target the pre-check found to already carry a
// configured ref in the caller's own local config, and therefore a
// candidate for RPC hydration.
type refBearingTarget struct {
	Path         string
	PathSegments []string
}

// ResolveCommandSecretRefsViaGateway hydrates a command's local config with
// secret values resolved by the running gateway. It first checks whether
// any of targetIDs is configured as a ref in localConfig; if none are,
// localConfig is returned unchanged with no RPC call at all. Otherwise it
// calls secrets.resolve over caller, splices every returned assignment
// into localConfig at its local path, and re-walks the originally
// ref-bearing targets to confirm each either now
// holds a resolved value or was diagnosed as sitting on an inactive
// surface — an unresolved, non-inactive target is always an error.
func ResolveCommandSecretRefsViaGateway(
	ctx context.Context,
	caller Caller,
	reg *registry.Registry,
	commandName string,
	localConfig configtree.Node,
	targetIDs []string,
) (configtree.Node, error) {
	ids := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		ids[id] = true
	}

	var refBearing []refBearingTarget
	for _, dt := range reg.DiscoverConfigSecretTargets(localConfig, ids) {
		candidate := dt.Value
		if dt.Entry.SecretShape == registry.ShapeSiblingRef {
			candidate = dt.RefValue
		}
		if _, ok := secretref.CoerceSecretRef(candidate, secretref.Defaults{}); ok {
			refBearing = append(refBearing, refBearingTarget{Path: dt.Path, PathSegments: dt.PathSegments})
		}
	}
	if len(refBearing) == 0 {
		return localConfig, nil
	}

	var result ResolveResult
	if err := caller.Call(ctx, MethodResolve, ResolveParams{CommandName: commandName, TargetIDs: targetIDs}, &result); err != nil {
		return nil, fmt.Errorf("gatewayrpc: secrets.resolve: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("gatewayrpc: secrets.resolve: gateway reported failure for %q", commandName)
	}

	inactivePaths := make(map[string]bool)
	for _, diag := range result.Diagnostics {
		idx := strings.Index(diag, inactiveSurfaceSentinel)
		if idx < 0 {
			continue
		}
		inactivePaths[diag[:idx]] = true
	}

	for _, a := range result.Assignments {
		if _, err := configtree.SetPathExistingStrict(localConfig, a.PathSegments, a.Value); err != nil {
			return nil, fmt.Errorf("gatewayrpc: writing resolved value at %s: %w", a.Path, err)
		}
	}

	for _, rb := range refBearing {
		if inactivePaths[rb.Path] {
			continue
		}
		value, ok := configtree.GetPath(localConfig, rb.PathSegments)
		if !ok || value == nil {
			return nil, &snapshot.UnresolvedTargetError{CommandName: commandName, Path: rb.Path}
		}
		if _, stillRef := secretref.CoerceSecretRef(value, secretref.Defaults{}); stillRef {
			return nil, &snapshot.UnresolvedTargetError{CommandName: commandName, Path: rb.Path}
		}
	}

	return localConfig, nil
}
