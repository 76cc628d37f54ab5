// Package secretref implements the secret reference model (spec component
// C3): the {source, provider, id} shape that stands in for a plaintext
// secret anywhere in the configuration tree, plus the sibling-ref precedence
// rule that lets a ref silently override a plaintext value at runtime.
package secretref

import "regexp"

// Source discriminates the provider families a Ref may point at.
type Source string

const (
	SourceEnv  Source = "env"
	SourceFile Source = "file"
	SourceExec Source = "exec"
)

var (
	providerAliasPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	envIDPattern         = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,127}$`)
	// execIDPattern allows the exec provider's id to double as a path-like
	// token (colons and slashes), matching the exec provider's use of id as
	// an opaque lookup key rather than a shell argument.
	execIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]{0,255}$`)
)

// Ref is the canonical secret reference: {source, provider, id}.
type Ref struct {
	Source   Source `json:"source"`
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// Key returns the provider-batching key "source:provider:id" used to
// dedupe and group refs for a single resolver context.
func (r Ref) Key() string {
	return string(r.Source) + ":" + r.Provider + ":" + r.ID
}

// Valid reports whether r satisfies the shape validation for its source:
// a known source, a syntactically valid provider alias, and an id shaped
// per that source's own id grammar (env: uppercase identifier; file: an
// absolute JSON pointer per RFC 6901, or the literal "value"; exec: a
// path-like token).
func (r Ref) Valid() bool {
	if !providerAliasPattern.MatchString(r.Provider) {
		return false
	}
	switch r.Source {
	case SourceEnv:
		return envIDPattern.MatchString(r.ID)
	case SourceFile:
		return r.ID == "value" || isJSONPointer(r.ID)
	case SourceExec:
		return execIDPattern.MatchString(r.ID)
	default:
		return false
	}
}

func isJSONPointer(id string) bool {
	if id == "" {
		return false
	}
	if id[0] != '/' {
		return false
	}
	// RFC 6901 only constrains how "~" is escaped (must be followed by "0"
	// or "1"); reject anything else to catch obviously malformed pointers
	// early, before the file provider attempts to walk it.
	for i := 0; i < len(id); i++ {
		if id[i] != '~' {
			continue
		}
		if i+1 >= len(id) || (id[i+1] != '0' && id[i+1] != '1') {
			return false
		}
	}
	return true
}

// Defaults supplies fallback fields (notably Provider) for refs discovered
// as bare value/refValue pairs that didn't spell out every field.
type Defaults struct {
	Provider string
}

// coerceShape reports whether v decodes to a map with the three ref fields,
// returning a populated Ref (Defaults.Provider filling a missing/blank
// provider) and true, or a zero Ref and false if v isn't ref-shaped at all.
func coerceShape(v any, defaults Defaults) (Ref, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Ref{}, false
	}
	sourceRaw, hasSource := m["source"]
	idRaw, hasID := m["id"]
	if !hasSource || !hasID {
		return Ref{}, false
	}
	sourceStr, ok := sourceRaw.(string)
	if !ok {
		return Ref{}, false
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return Ref{}, false
	}
	provider, _ := m["provider"].(string)
	if provider == "" {
		provider = defaults.Provider
	}
	return Ref{Source: Source(sourceStr), Provider: provider, ID: idStr}, true
}

// CoerceSecretRef returns the Ref that value decodes to (with defaults
// filled in) if value is ref-shaped, or ok=false otherwise. It does not
// itself enforce Valid(); callers that need shape validation call Valid
// separately so "ref-shaped but invalid" and "not ref-shaped" stay distinct
// outcomes (the resolver treats the former as a hard validation error, the
// latter as "no ref configured here").
func CoerceSecretRef(value any, defaults Defaults) (Ref, bool) {
	return coerceShape(value, defaults)
}

// HasConfiguredSecretInput reports whether value is either a non-empty
// plaintext string or a ref-shaped value.
func HasConfiguredSecretInput(value any) bool {
	if s, ok := value.(string); ok {
		return s != ""
	}
	_, ok := coerceShape(value, Defaults{})
	return ok
}

// ResolveSecretInputRefParams bundles resolveSecretInputRef's inputs: the
// plaintext-or-ref value at a secret_input target's own path, and — for
// sibling_ref targets — the value at the sibling ref path.
type ResolveSecretInputRefParams struct {
	Value    any
	RefValue any
	Defaults Defaults
}

// ResolveSecretInputRefResult is resolveSecretInputRef's output.
type ResolveSecretInputRefResult struct {
	// ExplicitRef is non-nil only when the ref came from a sibling RefValue
	// field distinct from Value — the case that also triggers the
	// SECRETS_REF_OVERRIDES_PLAINTEXT warning upstream in the resolver.
	ExplicitRef *Ref
	// Ref is the ref to resolve, from whichever source it came; nil if
	// neither Value nor RefValue carried one.
	Ref *Ref
}

// ResolveSecretInputRef implements the three-way precedence from the
// secret reference model: an explicit sibling ref (RefValue) always wins;
// failing that, a ref-shaped Value is used as-is; failing that, there is no
// ref at all (the target is plaintext-only, or empty).
func ResolveSecretInputRef(p ResolveSecretInputRefParams) ResolveSecretInputRefResult {
	if p.RefValue != nil {
		if ref, ok := coerceShape(p.RefValue, p.Defaults); ok {
			return ResolveSecretInputRefResult{ExplicitRef: &ref, Ref: &ref}
		}
	}
	if ref, ok := coerceShape(p.Value, p.Defaults); ok {
		return ResolveSecretInputRefResult{Ref: &ref}
	}
	return ResolveSecretInputRefResult{}
}
