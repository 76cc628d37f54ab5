// Package registry implements the target registry (spec component C2): the
// compiled, queryable list of every location in the main configuration tree
// and per-agent auth-profile stores that may hold a secret.
package registry

import (
	"fmt"
	"strings"

	"aureuma/secrets-gateway/internal/configtree"
)

// ConfigFile names which on-disk document a target's path is relative to.
type ConfigFile string

const (
	ConfigFileMain        ConfigFile = "main"
	ConfigFileAuthProfile ConfigFile = "auth-profile"
)

// SecretShape names how a target's secret is represented at its path.
type SecretShape string

const (
	// ShapeSecretInput means the path itself holds either plaintext or a
	// ref object — there is no sibling ref path.
	ShapeSecretInput SecretShape = "secret_input"
	// ShapeSiblingRef means plaintext lives at the target's path and a ref,
	// when configured, lives at the sibling RefPathPattern location.
	ShapeSiblingRef SecretShape = "sibling_ref"
)

// ExpectedResolvedValue names the shape a resolved value must take for the
// resolver's post-condition check to accept it.
type ExpectedResolvedValue string

const (
	ExpectedString         ExpectedResolvedValue = "string"
	ExpectedStringOrObject ExpectedResolvedValue = "string-or-object"
)

// Entry is one compiled target registry entry.
type Entry struct {
	ID      string
	Aliases []string

	ConfigFile ConfigFile

	PathPattern    string
	RefPathPattern string

	PathTokens    []configtree.Token
	RefPathTokens []configtree.Token

	SecretShape            SecretShape
	ExpectedResolvedValue  ExpectedResolvedValue
	ProviderIDSegmentIndex *int
	AccountIDSegmentIndex  *int

	AuthProfileType string

	IncludeInPlan           bool
	IncludeInConfigure      bool
	IncludeInAudit          bool
	TrackProviderShadowing  bool
}

// Registry is the compiled, queryable form of a set of Entry definitions.
type Registry struct {
	entries []Entry

	byTargetType    map[string]*Entry
	byMainID        map[string]*Entry
	byAuthProfileID map[string]*Entry
}

// Compile validates and indexes a set of entry definitions. It is a pure
// function: given the same defs it always produces an equivalent Registry.
// Intended to run once at process startup against the package-level
// DefaultEntries, but exported so tests can compile smaller fixtures.
func Compile(defs []Entry) (*Registry, error) {
	r := &Registry{
		byTargetType:    make(map[string]*Entry, len(defs)*2),
		byMainID:        make(map[string]*Entry, len(defs)),
		byAuthProfileID: make(map[string]*Entry, len(defs)),
	}
	r.entries = make([]Entry, len(defs))
	copy(r.entries, defs)

	for i := range r.entries {
		e := &r.entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("registry: entry %d has empty id", i)
		}
		if e.PathPattern == "" {
			return nil, fmt.Errorf("registry: entry %q has empty pathPattern", e.ID)
		}
		e.PathTokens = configtree.ParsePattern(e.PathPattern)

		switch e.SecretShape {
		case ShapeSiblingRef:
			if e.RefPathPattern == "" {
				return nil, fmt.Errorf("registry: sibling_ref entry %q must declare refPathPattern", e.ID)
			}
			e.RefPathTokens = configtree.ParsePattern(e.RefPathPattern)
			if configtree.DynamicTokenCount(e.PathTokens) != configtree.DynamicTokenCount(e.RefPathTokens) {
				return nil, fmt.Errorf("registry: entry %q path/refPath dynamic token counts disagree (%d vs %d)",
					e.ID, configtree.DynamicTokenCount(e.PathTokens), configtree.DynamicTokenCount(e.RefPathTokens))
			}
		case ShapeSecretInput:
			if e.RefPathPattern != "" {
				return nil, fmt.Errorf("registry: secret_input entry %q must not declare refPathPattern", e.ID)
			}
		default:
			return nil, fmt.Errorf("registry: entry %q has unknown secretShape %q", e.ID, e.SecretShape)
		}

		idIndex := r.byMainID
		if e.ConfigFile == ConfigFileAuthProfile {
			idIndex = r.byAuthProfileID
		}
		if _, dup := idIndex[e.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate id %q within configFile %q", e.ID, e.ConfigFile)
		}
		idIndex[e.ID] = e

		for _, tt := range append([]string{e.ID}, e.Aliases...) {
			if existing, dup := r.byTargetType[tt]; dup && existing != e {
				return nil, fmt.Errorf("registry: targetType %q claimed by both %q and %q", tt, existing.ID, e.ID)
			}
			r.byTargetType[tt] = e
		}
	}
	return r, nil
}

// Entries returns the compiled entries in declaration order.
func (r *Registry) Entries() []Entry { return r.entries }

// IsKnownSecretTargetType reports whether targetType names a registered
// entry, either by its id or one of its declared aliases.
func (r *Registry) IsKnownSecretTargetType(targetType string) bool {
	_, ok := r.byTargetType[targetType]
	return ok
}

// IsKnownSecretTargetId reports whether id names a registered entry within
// the given configFile scope.
func (r *Registry) IsKnownSecretTargetId(cf ConfigFile, id string) bool {
	idx := r.byMainID
	if cf == ConfigFileAuthProfile {
		idx = r.byAuthProfileID
	}
	_, ok := idx[id]
	return ok
}

// PlanTargetQuery is the input to ResolvePlanTargetAgainstRegistry: a plan's
// claim about where a secret lives, as supplied by an untrusted plan file.
type PlanTargetQuery struct {
	Type         string
	PathSegments []string
	ProviderID   *string
	AccountID    *string
}

// ResolvedPlanTarget is the registry's answer to a PlanTargetQuery: the
// matched entry plus, for sibling_ref entries, the materialized ref path.
type ResolvedPlanTarget struct {
	Entry           *Entry
	RefPathSegments []string
}

// ResolvePlanTargetAgainstRegistry looks up q.Type and verifies q.PathSegments
// actually matches that entry's compiled pattern, re-deriving the ref path
// for sibling_ref entries from the same captures. If the entry declares a
// provider-id or account-id segment index, a caller-supplied ProviderID or
// AccountID (when non-nil) must equal the value extracted from the path.
func (r *Registry) ResolvePlanTargetAgainstRegistry(q PlanTargetQuery) (*ResolvedPlanTarget, bool) {
	e, ok := r.byTargetType[q.Type]
	if !ok {
		return nil, false
	}
	captures, ok := configtree.MatchSegments(e.PathTokens, q.PathSegments)
	if !ok {
		return nil, false
	}
	if e.ProviderIDSegmentIndex != nil && q.ProviderID != nil {
		idx := *e.ProviderIDSegmentIndex
		if idx < 0 || idx >= len(captures) || captures[idx] != *q.ProviderID {
			return nil, false
		}
	}
	if e.AccountIDSegmentIndex != nil && q.AccountID != nil {
		idx := *e.AccountIDSegmentIndex
		if idx < 0 || idx >= len(captures) || captures[idx] != *q.AccountID {
			return nil, false
		}
	}
	out := &ResolvedPlanTarget{Entry: e}
	if e.SecretShape == ShapeSiblingRef {
		out.RefPathSegments = configtree.Materialize(e.RefPathTokens, captures)
	}
	return out, true
}

// DiscoveredTarget is one concrete secret-bearing location found by walking
// the registry's patterns over an actual configuration tree or auth-profile
// store.
type DiscoveredTarget struct {
	Entry           *Entry
	Path            string
	PathSegments    []string
	RefPath         string
	RefPathSegments []string
	Value           configtree.Node
	RefValue        configtree.Node
	ProviderID      string
	AccountID       string
}

func joinPath(segments []string) string { return strings.Join(segments, ".") }

// DiscoverConfigSecretTargets expands every main-config registry entry's
// pattern against root, deduplicating by (id, path). If ids is non-nil, only
// entries whose id is in the set are considered.
func (r *Registry) DiscoverConfigSecretTargets(root configtree.Node, ids map[string]bool) []DiscoveredTarget {
	return r.discover(root, ConfigFileMain, ids)
}

// DiscoverAuthProfileSecretTargets is DiscoverConfigSecretTargets for
// auth-profile-scoped entries walked over a single agent's profile store.
func (r *Registry) DiscoverAuthProfileSecretTargets(store configtree.Node, ids map[string]bool) []DiscoveredTarget {
	return r.discover(store, ConfigFileAuthProfile, ids)
}

func (r *Registry) discover(root configtree.Node, cf ConfigFile, ids map[string]bool) []DiscoveredTarget {
	var out []DiscoveredTarget
	seen := make(map[string]bool)
	for i := range r.entries {
		e := &r.entries[i]
		if e.ConfigFile != cf {
			continue
		}
		if ids != nil && !ids[e.ID] {
			continue
		}
		for _, hit := range configtree.Expand(root, e.PathTokens) {
			path := joinPath(hit.Segments)
			dedupKey := e.ID + "\x00" + path
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true

			dt := DiscoveredTarget{
				Entry:        e,
				Path:         path,
				PathSegments: hit.Segments,
				Value:        hit.Value,
			}
			if e.ProviderIDSegmentIndex != nil && *e.ProviderIDSegmentIndex < len(hit.Captures) {
				dt.ProviderID = hit.Captures[*e.ProviderIDSegmentIndex]
			}
			if e.AccountIDSegmentIndex != nil && *e.AccountIDSegmentIndex < len(hit.Captures) {
				dt.AccountID = hit.Captures[*e.AccountIDSegmentIndex]
			}
			if e.SecretShape == ShapeSiblingRef {
				refSegs := configtree.Materialize(e.RefPathTokens, hit.Captures)
				dt.RefPath = joinPath(refSegs)
				dt.RefPathSegments = refSegs
				if rv, ok := configtree.GetPath(root, refSegs); ok {
					dt.RefValue = rv
				}
			}
			out = append(out, dt)
		}
	}
	return out
}

func intPtr(i int) *int { return &i }
