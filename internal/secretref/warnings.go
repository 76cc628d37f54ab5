package secretref

// Warning is a diagnostic carrying a machine-checkable code plus enough
// context for an operator to find the offending location. The resolver,
// audit engine, and apply engine all accumulate these, deduplicated by
// (Code, Path, Message).
type Warning struct {
	Code    string
	Path    string
	Message string
}

const (
	CodeRefOverridesPlaintext = "SECRETS_REF_OVERRIDES_PLAINTEXT"
	CodeRefIgnoredInactive    = "SECRETS_REF_IGNORED_INACTIVE_SURFACE"
)

// WarningSet accumulates Warnings with (code, path, message) deduplication.
type WarningSet struct {
	seen  map[string]bool
	items []Warning
}

// NewWarningSet returns an empty WarningSet ready to use.
func NewWarningSet() *WarningSet {
	return &WarningSet{seen: make(map[string]bool)}
}

// Add records w unless an identical (Code, Path, Message) triple was
// already added, returning true iff this call actually added it.
func (s *WarningSet) Add(w Warning) bool {
	key := w.Code + "\x00" + w.Path + "\x00" + w.Message
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.items = append(s.items, w)
	return true
}

// Items returns the accumulated warnings in insertion order.
func (s *WarningSet) Items() []Warning {
	out := make([]Warning, len(s.items))
	copy(out, s.items)
	return out
}

// RefOverridesPlaintext builds the standard warning emitted whenever a
// sibling ref takes precedence over a plaintext value at path.
func RefOverridesPlaintext(path string) Warning {
	return Warning{
		Code:    CodeRefOverridesPlaintext,
		Path:    path,
		Message: path + ": configured ref overrides sibling plaintext value",
	}
}

// RefIgnoredInactiveSurface builds the standard warning emitted when a
// configured ref sits on a surface the active-surface rules judge inactive.
// The exact sentinel substring here (": secret ref is configured on an
// inactive surface;") is load-bearing: the gateway RPC CLI helper greps for
// it to decide which assignments to treat as expected-missing.
func RefIgnoredInactiveSurface(path, reason string) Warning {
	return Warning{
		Code:    CodeRefIgnoredInactive,
		Path:    path,
		Message: path + ": secret ref is configured on an inactive surface; " + reason,
	}
}
