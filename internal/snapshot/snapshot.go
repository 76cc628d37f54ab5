// Package snapshot implements the snapshot activator (spec component C6):
// the process-wide holder of the active, fully-resolved configuration view.
// Exactly one snapshot is active at any instant; installation is an atomic
// pointer swap over a defensively cloned document, and every reader gets its
// own clone so it can hold a reference for as long as it likes without
// blocking, or being affected by, the next activation.
package snapshot

import (
	"sort"
	"sync/atomic"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/secretref"
)

// AgentStore pairs an agent's directory/id with its auth-profile store, kept
// as a slice (rather than a bare map) so iteration order — and therefore
// diagnostic ordering — stays deterministic across activations.
type AgentStore struct {
	AgentDir string
	Store    configtree.Node
}

// Snapshot is the immutable-by-convention view installed by one activation:
// the as-loaded source config, the fully resolved config, every agent's
// resolved auth-profile store, and the diagnostics collected while producing
// them.
type Snapshot struct {
	SourceConfig   configtree.Node
	ResolvedConfig configtree.Node
	AuthStores     []AgentStore
	Warnings       []secretref.Warning
}

// clone returns a deep copy of s, so neither the activator's stored snapshot
// nor a caller's retained one can be mutated through the other.
func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	stores := make([]AgentStore, len(s.AuthStores))
	for i, as := range s.AuthStores {
		stores[i] = AgentStore{AgentDir: as.AgentDir, Store: configtree.Clone(as.Store)}
	}
	warnings := make([]secretref.Warning, len(s.Warnings))
	copy(warnings, s.Warnings)
	return &Snapshot{
		SourceConfig:   configtree.Clone(s.SourceConfig),
		ResolvedConfig: configtree.Clone(s.ResolvedConfig),
		AuthStores:     stores,
		Warnings:       warnings,
	}
}

// authStoreByDir returns the store registered under dir, or nil if none.
func (s *Snapshot) authStoreByDir(dir string) (configtree.Node, bool) {
	for _, as := range s.AuthStores {
		if as.AgentDir == dir {
			return as.Store, true
		}
	}
	return nil, false
}

// Activator is the process-wide singleton holding the active snapshot.
// The zero value holds no snapshot (Current returns nil) — that is the
// Uninitialized state from the resolver's lifecycle, before the first
// successful Activate.
type Activator struct {
	current atomic.Pointer[Snapshot]
}

// New returns an Activator with no active snapshot.
func New() *Activator {
	return &Activator{}
}

// Activate installs a defensive clone of next as the active snapshot via a
// single atomic pointer swap. It never blocks a concurrent Current call: a
// reader either observes the prior snapshot in full or the new one in full,
// never a partial mix of both.
func (a *Activator) Activate(next *Snapshot) {
	a.current.Store(next.clone())
}

// Current returns a defensive clone of the active snapshot, or nil if
// nothing has ever been activated.
func (a *Activator) Current() *Snapshot {
	cur := a.current.Load()
	if cur == nil {
		return nil
	}
	return cur.clone()
}

// CommandSecretQuery is resolveCommandSecretsFromActiveSnapshot's input: the
// calling command's name (surfaced in error messages) and the target ids it
// wants resolved values for, each with the caller's own path the value
// should be read from (so the same registry entry id can be reused across
// differently-shaped local command configs).
type CommandSecretQuery struct {
	CommandName string
	Targets     []CommandSecretTarget
}

// CommandSecretTarget names one path in the active snapshot's resolved
// config (or, when AgentDir is set, in that agent's resolved auth-profile
// store) whose value the caller wants.
type CommandSecretTarget struct {
	Path         string
	PathSegments []string
	AgentDir     string
	// InactiveOK permits an absent/unresolved value at this path without
	// raising — the caller already knows (from a prior diagnostic) that the
	// surface is inactive and an absent value there is expected, not an error.
	InactiveOK bool
}

// ResolvedAssignment is one entry of resolveCommandSecretsFromActiveSnapshot's
// successful output.
type ResolvedAssignment struct {
	Path         string
	PathSegments []string
	Value        configtree.Node
}

// CommandSecretResult is resolveCommandSecretsFromActiveSnapshot's output.
type CommandSecretResult struct {
	Assignments []ResolvedAssignment
	Diagnostics []string
}

// UnresolvedTargetError reports a requested target whose value is absent
// from the active snapshot and whose surface the caller didn't mark as
// expected-inactive — always fatal.
type UnresolvedTargetError struct {
	CommandName string
	Path        string
}

func (e *UnresolvedTargetError) Error() string {
	return e.CommandName + ": no resolved value available at " + e.Path + " in the active snapshot"
}

// ResolveCommandSecretsFromActiveSnapshot walks q.Targets against the
// active snapshot and reads the already-resolved value at each path. A
// target whose value is absent raises *UnresolvedTargetError unless the
// caller marked it InactiveOK, in which case it is silently omitted from
// Assignments and noted in Diagnostics instead.
func (a *Activator) ResolveCommandSecretsFromActiveSnapshot(q CommandSecretQuery) (CommandSecretResult, error) {
	snap := a.Current()
	if snap == nil {
		return CommandSecretResult{}, &UnresolvedTargetError{CommandName: q.CommandName, Path: "(no active snapshot)"}
	}

	var result CommandSecretResult
	for _, t := range q.Targets {
		doc := snap.ResolvedConfig
		if t.AgentDir != "" {
			store, ok := snap.authStoreByDir(t.AgentDir)
			if !ok {
				if t.InactiveOK {
					result.Diagnostics = append(result.Diagnostics, t.Path+": no auth-profile store for agent "+t.AgentDir)
					continue
				}
				return CommandSecretResult{}, &UnresolvedTargetError{CommandName: q.CommandName, Path: t.Path}
			}
			doc = store
		}
		value, ok := configtree.GetPath(doc, t.PathSegments)
		if !ok || value == nil {
			if t.InactiveOK {
				result.Diagnostics = append(result.Diagnostics, t.Path+": unresolved, treated as expected given a prior inactive-surface diagnostic")
				continue
			}
			return CommandSecretResult{}, &UnresolvedTargetError{CommandName: q.CommandName, Path: t.Path}
		}
		result.Assignments = append(result.Assignments, ResolvedAssignment{
			Path:         t.Path,
			PathSegments: t.PathSegments,
			Value:        value,
		})
	}
	sort.SliceStable(result.Assignments, func(i, j int) bool {
		return result.Assignments[i].Path < result.Assignments[j].Path
	})
	return result, nil
}
