package gatewayrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/resolver"
	"aureuma/secrets-gateway/internal/snapshot"
)

// Loader loads a fresh copy of the main config and every agent's
// auth-profile store from disk, as secrets.reload needs to re-resolve
// against what is actually on disk rather than what was loaded at startup.
type Loader func(ctx context.Context) (source configtree.Node, authStores []snapshot.AgentStore, err error)

// Server implements the gateway RPC surface against one process's registry,
// providers, reload state machine, and active snapshot. It holds no
// transport of its own — ServeWS (transport.go) and the in-process Dispatch
// tests both drive it through Dispatch.
type Server struct {
	Registry     *registry.Registry
	Providers    providers.Registry
	Limits       providers.Limits
	StateMachine *resolver.StateMachine
	Activator    *snapshot.Activator
	Loader       Loader

	// Logger receives reload diagnostics (warning counts, the
	// last-known-good-preserved failure case) and per-target resolution
	// failures surfaced by providers. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Dispatch validates and routes one request, never panicking on malformed
// input: every failure mode becomes a Response carrying an RPCError.
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodReload:
		return s.dispatchReload(ctx, req)
	case MethodResolve:
		return s.dispatchResolve(ctx, req)
	default:
		return errorResponse(req.ID, CodeInvalidRequest, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) dispatchReload(ctx context.Context, req Request) Response {
	if _, err := decodeAndValidate[ReloadParams](reloadSchema, req.Params); err != nil {
		return errorResponse(req.ID, CodeInvalidRequest, err.Error())
	}
	result, err := s.Reload(ctx)
	if err != nil {
		return errorResponse(req.ID, CodeUnavailable, err.Error())
	}
	return resultResponse(req.ID, result)
}

// Reload re-resolves against a freshly loaded config and, on full success,
// installs the result as the active snapshot. On any failure the active
// snapshot (last-known-good) is left untouched and an error is returned —
// the caller never sees a half-installed snapshot.
func (s *Server) Reload(ctx context.Context) (ReloadResult, error) {
	if s.Loader == nil {
		return ReloadResult{}, fmt.Errorf("gatewayrpc: no config loader configured")
	}
	source, stores, err := s.Loader(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("gatewayrpc: loading config: %w", err)
	}

	resolvedConfig := configtree.Clone(source)
	authStoreMap := make(map[string]configtree.Node, len(stores))
	for _, as := range stores {
		authStoreMap[as.AgentDir] = configtree.Clone(as.Store)
	}

	result, err := resolver.PrepareAndTransition(ctx, resolver.PrepareInput{
		Registry:       s.Registry,
		Providers:      s.Providers,
		Limits:         s.Limits,
		ResolvedConfig: resolvedConfig,
		AuthStores:     authStoreMap,
	}, s.StateMachine)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("gatewayrpc: reload: %w", err)
	}
	if !result.OK {
		var first error
		for _, e := range result.Failed {
			first = e
			break
		}
		s.logger().Warn("reload failed, keeping last-known-good snapshot",
			"failedTargets", len(result.Failed), "error", first)
		return ReloadResult{}, fmt.Errorf(
			"gatewayrpc: reload: %d target(s) failed to resolve, keeping last-known-good snapshot, e.g. %w",
			len(result.Failed), first)
	}

	resolvedStores := make([]snapshot.AgentStore, len(stores))
	for i, as := range stores {
		resolvedStores[i] = snapshot.AgentStore{AgentDir: as.AgentDir, Store: authStoreMap[as.AgentDir]}
	}
	s.Activator.Activate(&snapshot.Snapshot{
		SourceConfig:   source,
		ResolvedConfig: resolvedConfig,
		AuthStores:     resolvedStores,
		Warnings:       result.Warnings.Items(),
	})
	warningCount := len(result.Warnings.Items())
	if warningCount > 0 {
		s.logger().Warn("reload activated snapshot with warnings", "warningCount", warningCount)
	} else {
		s.logger().Info("reload activated snapshot", "warningCount", 0)
	}
	return ReloadResult{OK: true, WarningCount: warningCount}, nil
}

func (s *Server) dispatchResolve(ctx context.Context, req Request) Response {
	params, err := decodeAndValidate[ResolveParams](resolveSchema, req.Params)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidRequest, err.Error())
	}
	for _, id := range params.TargetIDs {
		if !s.Registry.IsKnownSecretTargetId(registry.ConfigFileMain, id) {
			return errorResponse(req.ID, CodeInvalidRequest, fmt.Sprintf("unknown target id %q", id))
		}
	}

	result, err := s.Resolve(params)
	if err != nil {
		var unresolved *snapshot.UnresolvedTargetError
		if errors.As(err, &unresolved) && unresolved.Path == "(no active snapshot)" {
			return errorResponse(req.ID, CodeUnavailable, err.Error())
		}
		return errorResponse(req.ID, CodeInternal, err.Error())
	}
	return resultResponse(req.ID, result)
}

// Resolve implements secrets.resolve's body: it discovers every concrete
// path the requested target ids expand to in the active snapshot's resolved
// config, then walks them through resolveCommandSecretsFromActiveSnapshot so
// the same "already resolved, no re-resolution" guarantee governs this RPC
// as governs every other snapshot reader.
func (s *Server) Resolve(params ResolveParams) (ResolveResult, error) {
	snap := s.Activator.Current()
	if snap == nil {
		return ResolveResult{}, &snapshot.UnresolvedTargetError{CommandName: params.CommandName, Path: "(no active snapshot)"}
	}

	ids := make(map[string]bool, len(params.TargetIDs))
	for _, id := range params.TargetIDs {
		ids[id] = true
	}
	var targets []snapshot.CommandSecretTarget
	for _, dt := range s.Registry.DiscoverConfigSecretTargets(snap.ResolvedConfig, ids) {
		targets = append(targets, snapshot.CommandSecretTarget{Path: dt.Path, PathSegments: dt.PathSegments})
	}

	result, err := s.Activator.ResolveCommandSecretsFromActiveSnapshot(snapshot.CommandSecretQuery{
		CommandName: params.CommandName,
		Targets:     targets,
	})
	if err != nil {
		return ResolveResult{}, err
	}

	assignments := make([]Assignment, len(result.Assignments))
	for i, a := range result.Assignments {
		assignments[i] = Assignment{Path: a.Path, PathSegments: a.PathSegments, Value: a.Value}
	}
	return ResolveResult{OK: true, Assignments: assignments, Diagnostics: result.Diagnostics}, nil
}
