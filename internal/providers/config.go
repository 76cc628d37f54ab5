package providers

import (
	"encoding/json"
	"fmt"
	"time"

	"aureuma/secrets-gateway/internal/secretref"
)

// Spec is the decoded shape of one entry in the main config's
// secrets.providers map: a discriminated union over the three provider
// kinds, keyed by alias at the call site.
type Spec struct {
	Source secretref.Source `json:"source"`

	// Env fields.
	Allowlist []string `json:"allowlist,omitempty"`

	// File fields.
	Path            string `json:"path,omitempty"`
	Mode            string `json:"mode,omitempty"`
	MaxBytes        int64  `json:"maxBytes,omitempty"`
	TimeoutMillis   int64  `json:"timeoutMs,omitempty"`

	// Exec fields.
	Command             string            `json:"command,omitempty"`
	Args                []string          `json:"args,omitempty"`
	Env                 map[string]string `json:"env,omitempty"`
	PassEnv             []string          `json:"passEnv,omitempty"`
	AllowSymlinkCommand bool              `json:"allowSymlinkCommand,omitempty"`
	AllowInsecurePath   bool              `json:"allowInsecurePath,omitempty"`
	TrustedDirs         []string          `json:"trustedDirs,omitempty"`
	JSONOnly            bool              `json:"jsonOnly,omitempty"`
	TotalTimeoutMillis  int64             `json:"totalTimeoutMs,omitempty"`
	IdleTimeoutMillis   int64             `json:"idleTimeoutMs,omitempty"`
	MaxStdoutBytes      int64             `json:"maxStdoutBytes,omitempty"`
}

// Build constructs the concrete Provider this Spec describes, for use under
// the given alias.
func (s Spec) Build(alias string) (Provider, error) {
	switch s.Source {
	case secretref.SourceEnv:
		return &EnvProvider{Alias: alias, Config: EnvConfig{Allowlist: s.Allowlist}}, nil
	case secretref.SourceFile:
		return &FileProvider{Alias: alias, Config: FileConfig{
			Path:     s.Path,
			Mode:     FileMode(s.Mode),
			MaxBytes: s.MaxBytes,
			Timeout:  time.Duration(s.TimeoutMillis) * time.Millisecond,
		}}, nil
	case secretref.SourceExec:
		return &ExecProvider{Alias: alias, Config: ExecConfig{
			Command:             s.Command,
			Args:                s.Args,
			Env:                 s.Env,
			PassEnv:             s.PassEnv,
			AllowSymlinkCommand: s.AllowSymlinkCommand,
			AllowInsecurePath:   s.AllowInsecurePath,
			TrustedDirs:         s.TrustedDirs,
			JSONOnly:            s.JSONOnly,
			TotalTimeout:        time.Duration(s.TotalTimeoutMillis) * time.Millisecond,
			IdleTimeout:         time.Duration(s.IdleTimeoutMillis) * time.Millisecond,
			MaxStdoutBytes:      s.MaxStdoutBytes,
		}}, nil
	default:
		return nil, fmt.Errorf("providers: unknown source %q", s.Source)
	}
}

// BuildRegistry decodes the secrets.providers sub-tree (a JSON object
// mapping alias to Spec) into a Registry of live Provider instances.
func BuildRegistry(raw map[string]json.RawMessage) (Registry, error) {
	reg := make(Registry, len(raw))
	for alias, msg := range raw {
		var spec Spec
		if err := json.Unmarshal(msg, &spec); err != nil {
			return nil, fmt.Errorf("providers: decode alias %q: %w", alias, err)
		}
		provider, err := spec.Build(alias)
		if err != nil {
			return nil, fmt.Errorf("providers: alias %q: %w", alias, err)
		}
		reg[alias] = provider
	}
	return reg, nil
}
