// Package plan implements the versioned plan file model (spec component
// C8): the document a configure flow or a human author produces to move
// secrets between plaintext, refs, and provider configuration, plus its
// strict validation against the target registry.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

const (
	SupportedVersion         = 1
	SupportedProtocolVersion = 1
)

// Target is one entry in a plan's targets list: a claim about where a
// secret should end up, named the way the registry names it rather than by
// a raw file path, so the same plan can be validated against either the
// in-memory registry or re-derived later from scratch.
type Target struct {
	Type                string         `json:"type"`
	Path                string         `json:"path"`
	PathSegments        []string       `json:"pathSegments,omitempty"`
	Ref                 *secretref.Ref `json:"ref,omitempty"`
	AgentID             string         `json:"agentId,omitempty"`
	ProviderID          *string        `json:"providerId,omitempty"`
	AccountID           *string        `json:"accountId,omitempty"`
	AuthProfileProvider string         `json:"authProfileProvider,omitempty"`
}

// Options are the apply engine's scrub toggles. Every option defaults to
// enabled; Normalize fills in the pointer fields so downstream code can
// read plain bools without re-deriving the default.
type Options struct {
	ScrubEnv                            *bool `json:"scrubEnv,omitempty"`
	ScrubAuthProfilesForProviderTargets *bool `json:"scrubAuthProfilesForProviderTargets,omitempty"`
	ScrubLegacyAuthJSON                 *bool `json:"scrubLegacyAuthJson,omitempty"`
}

// Normalize returns a copy of o (or a fresh all-enabled Options if o is
// nil) with every pointer field populated.
func (o *Options) Normalize() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.ScrubEnv == nil {
		out.ScrubEnv = boolPtr(true)
	}
	if out.ScrubAuthProfilesForProviderTargets == nil {
		out.ScrubAuthProfilesForProviderTargets = boolPtr(true)
	}
	if out.ScrubLegacyAuthJSON == nil {
		out.ScrubLegacyAuthJSON = boolPtr(true)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

// Plan is the versioned migration plan file produced by configure and
// consumed by apply.
type Plan struct {
	Version         int    `json:"version"`
	ProtocolVersion int    `json:"protocolVersion"`
	GeneratedAt     string `json:"generatedAt,omitempty"`
	GeneratedBy     string `json:"generatedBy,omitempty"`

	Targets []Target `json:"targets"`

	ProviderUpserts map[string]json.RawMessage `json:"providerUpserts,omitempty"`
	ProviderDeletes []string                   `json:"providerDeletes,omitempty"`

	Options *Options `json:"options,omitempty"`
}

// ValidationError collects every violation found while validating a plan;
// Error() joins them so a single %w/%v still reports everything, while
// Issues lets a --json caller render them as a list.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan: %d validation issue(s): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

var reservedSegments = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// Parse decodes raw plan JSON. It does not validate against the registry —
// call Validate afterward.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	return &p, nil
}

// Validate runs strict, total validation: version and protocol-version
// pins, per-target shape and registry agreement, ref shape validation,
// and provider upsert/delete alias validity. Every violation found is
// collected rather than stopping at the first, so a
// caller can report them all at once.
func (p *Plan) Validate(reg *registry.Registry) error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if p.Version != SupportedVersion {
		add("version must be %d, got %d", SupportedVersion, p.Version)
	}
	if p.ProtocolVersion != SupportedProtocolVersion {
		add("protocolVersion must be %d, got %d", SupportedProtocolVersion, p.ProtocolVersion)
	}
	if p.Targets == nil {
		add("targets must be present")
	}

	for i, t := range p.Targets {
		p.validateTarget(reg, i, t, add)
	}

	for alias, raw := range p.ProviderUpserts {
		if !isValidProviderAlias(alias) {
			add("providerUpserts[%q]: invalid provider alias", alias)
			continue
		}
		var spec providers.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			add("providerUpserts[%q]: invalid provider config: %v", alias, err)
			continue
		}
		if _, err := spec.Build(alias); err != nil {
			add("providerUpserts[%q]: invalid provider config: %v", alias, err)
		}
	}
	for _, alias := range p.ProviderDeletes {
		if !isValidProviderAlias(alias) {
			add("providerDeletes: invalid provider alias %q", alias)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func (p *Plan) validateTarget(reg *registry.Registry, i int, t Target, add func(string, ...any)) {
	label := fmt.Sprintf("targets[%d]", i)
	if t.Path == "" {
		add("%s: path must be non-empty", label)
		return
	}
	for _, seg := range t.PathSegments {
		if reservedSegments[seg] {
			add("%s: path segment %q is reserved", label, seg)
			return
		}
	}
	if t.PathSegments != nil && strings.Join(t.PathSegments, ".") != t.Path {
		add("%s: pathSegments does not re-serialize to path %q", label, t.Path)
		return
	}

	query := registry.PlanTargetQuery{
		Type:         t.Type,
		PathSegments: t.PathSegments,
		ProviderID:   t.ProviderID,
		AccountID:    t.AccountID,
	}
	if query.PathSegments == nil {
		query.PathSegments = strings.Split(t.Path, ".")
	}
	resolved, ok := reg.ResolvePlanTargetAgainstRegistry(query)
	if !ok {
		add("%s: type %q does not match path %q in the registry", label, t.Type, t.Path)
		return
	}

	if resolved.Entry.ConfigFile == registry.ConfigFileAuthProfile {
		if t.AgentID == "" {
			add("%s: auth-profile target requires agentId", label)
		}
	}

	if t.Ref != nil && !t.Ref.Valid() {
		add("%s: ref fails shape validation (source=%q provider=%q id=%q)", label, t.Ref.Source, t.Ref.Provider, t.Ref.ID)
	}
}

func isValidProviderAlias(alias string) bool {
	if alias == "" || len(alias) > 64 {
		return false
	}
	if alias[0] < 'a' || alias[0] > 'z' {
		return false
	}
	for _, r := range alias[1:] {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
