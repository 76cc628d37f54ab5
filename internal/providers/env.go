package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"aureuma/secrets-gateway/internal/secretref"
)

// EnvConfig configures one env-source provider alias.
type EnvConfig struct {
	// Allowlist, if non-empty, restricts which variable names this
	// provider alias may resolve. An empty Allowlist permits any id that
	// passes Ref.Valid's env id grammar.
	Allowlist []string
}

// EnvProvider resolves refs against process environment variables. It has
// no IO latency worth bounding, so Resolve is allowed to run fully
// synchronously from the caller's perspective; the concurrency cap in
// batch.go still applies uniformly across provider kinds for simplicity.
type EnvProvider struct {
	Alias  string
	Config EnvConfig
}

func (p *EnvProvider) allowed(id string) bool {
	if len(p.Config.Allowlist) == 0 {
		return true
	}
	for _, a := range p.Config.Allowlist {
		if a == id {
			return true
		}
	}
	return false
}

// Resolve implements Provider. Each id is looked up via os.LookupEnv and
// trimmed; an absent or blank variable is a per-ref ResolutionError, never
// a batch-scoped failure, since other ids in the same batch may well be
// set.
func (p *EnvProvider) Resolve(_ context.Context, refs []secretref.Ref) (Result, error) {
	res := newResult()
	for _, ref := range refs {
		if !p.allowed(ref.ID) {
			res.Errors[ref.Key()] = &ResolutionError{
				RefKey: ref.Key(),
				Err:    fmt.Errorf("variable %q is not in this provider's allowlist", ref.ID),
			}
			continue
		}
		raw, ok := os.LookupEnv(ref.ID)
		trimmed := strings.TrimSpace(raw)
		if !ok || trimmed == "" {
			res.Errors[ref.Key()] = &ResolutionError{
				RefKey: ref.Key(),
				Err:    fmt.Errorf("environment variable %q is not set or empty", ref.ID),
			}
			continue
		}
		res.Values[ref.Key()] = trimmed
	}
	return res, nil
}
