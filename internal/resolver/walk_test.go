package resolver

import (
	"testing"

	"aureuma/secrets-gateway/internal/registry"
)

func compileTestRegistry(t *testing.T, defs []registry.Entry) *registry.Registry {
	t.Helper()
	reg, err := registry.Compile(defs)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return reg
}

func TestWalkProducesAssignmentForRefShapedValue(t *testing.T) {
	reg := compileTestRegistry(t, []registry.Entry{
		{
			ID:                    "gateway.auth.password",
			ConfigFile:            registry.ConfigFileMain,
			PathPattern:           "gateway.auth.password",
			SecretShape:           registry.ShapeSecretInput,
			ExpectedResolvedValue: registry.ExpectedString,
		},
	})
	config := map[string]any{
		"gateway": map[string]any{
			"auth": map[string]any{
				"mode":     "password",
				"password": map[string]any{"source": "env", "provider": "env", "id": "GATEWAY_PASSWORD"},
			},
		},
	}
	result := Walk(reg, config, nil)
	if len(result.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(result.Assignments))
	}
	a := result.Assignments[0]
	if a.Ref.ID != "GATEWAY_PASSWORD" || a.Path != "gateway.auth.password" {
		t.Errorf("unexpected assignment: %+v", a)
	}
	if a.Target != TargetResolvedConfig {
		t.Errorf("target = %v, want TargetResolvedConfig", a.Target)
	}
}

func TestWalkEmitsOverridesPlaintextWarningForSiblingRef(t *testing.T) {
	reg := compileTestRegistry(t, []registry.Entry{
		{
			ID:                    "channels.telegram.botToken",
			ConfigFile:            registry.ConfigFileMain,
			PathPattern:           "channels.telegram.botToken",
			RefPathPattern:        "channels.telegram.botTokenRef",
			SecretShape:           registry.ShapeSiblingRef,
			ExpectedResolvedValue: registry.ExpectedString,
		},
	})
	config := map[string]any{
		"channels": map[string]any{
			"telegram": map[string]any{
				"botToken":    "1234:plaintext-leftover",
				"botTokenRef": map[string]any{"source": "env", "provider": "env", "id": "TG_TOKEN"},
			},
		},
	}
	result := Walk(reg, config, nil)
	if len(result.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(result.Assignments))
	}
	found := false
	for _, w := range result.Warnings.Items() {
		if w.Code == "SECRETS_REF_OVERRIDES_PLAINTEXT" {
			found = true
		}
	}
	if !found {
		t.Error("expected a SECRETS_REF_OVERRIDES_PLAINTEXT warning")
	}
}

func TestWalkSkipsInactiveSurfaceAndWarns(t *testing.T) {
	reg := compileTestRegistry(t, []registry.Entry{
		{
			ID:                    "gateway.auth.password",
			ConfigFile:            registry.ConfigFileMain,
			PathPattern:           "gateway.auth.password",
			SecretShape:           registry.ShapeSecretInput,
			ExpectedResolvedValue: registry.ExpectedString,
		},
	})
	config := map[string]any{
		"gateway": map[string]any{
			"auth": map[string]any{
				"mode":     "none",
				"password": map[string]any{"source": "env", "provider": "env", "id": "GATEWAY_PASSWORD"},
			},
		},
	}
	result := Walk(reg, config, nil)
	if len(result.Assignments) != 0 {
		t.Fatalf("got %d assignments, want 0 (auth mode is none)", len(result.Assignments))
	}
	found := false
	for _, w := range result.Warnings.Items() {
		if w.Code == "SECRETS_REF_IGNORED_INACTIVE_SURFACE" {
			found = true
		}
	}
	if !found {
		t.Error("expected a SECRETS_REF_IGNORED_INACTIVE_SURFACE warning")
	}
}

func TestWalkFiltersAuthProfileByDeclaredType(t *testing.T) {
	reg := compileTestRegistry(t, []registry.Entry{
		{
			ID:                    "auth.profile.apiKey",
			ConfigFile:            registry.ConfigFileAuthProfile,
			PathPattern:           "profiles.*.key",
			RefPathPattern:        "profiles.*.keyRef",
			SecretShape:           registry.ShapeSiblingRef,
			ExpectedResolvedValue: registry.ExpectedString,
			AuthProfileType:       "api_key",
		},
		{
			ID:                    "auth.profile.oauthAccessToken",
			ConfigFile:            registry.ConfigFileAuthProfile,
			PathPattern:           "profiles.*.accessToken",
			RefPathPattern:        "profiles.*.accessTokenRef",
			SecretShape:           registry.ShapeSiblingRef,
			ExpectedResolvedValue: registry.ExpectedString,
			AuthProfileType:       "oauth",
		},
	})
	store := map[string]any{
		"profiles": map[string]any{
			"p1": map[string]any{
				"type":           "api_key",
				"key":            "plain",
				"keyRef":         map[string]any{"source": "env", "provider": "env", "id": "P1_KEY"},
				"accessToken":    "should-not-match-oauth-entry",
				"accessTokenRef": map[string]any{"source": "env", "provider": "env", "id": "P1_ACCESS_TOKEN"},
			},
		},
	}
	result := Walk(reg, nil, map[string]any{"agent-a": store})
	if len(result.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1 (only the api_key entry should match profile type)", len(result.Assignments))
	}
	if result.Assignments[0].Ref.ID != "P1_KEY" {
		t.Errorf("assignment = %+v, want the api_key ref", result.Assignments[0])
	}
	if result.Assignments[0].AgentID != "agent-a" {
		t.Errorf("AgentID = %q, want agent-a", result.Assignments[0].AgentID)
	}
}

func TestWalkResolvesTokenTypeAuthProfile(t *testing.T) {
	reg := compileTestRegistry(t, []registry.Entry{
		{
			ID:                    "auth-profiles.token.token",
			ConfigFile:            registry.ConfigFileAuthProfile,
			PathPattern:           "profiles.*.token",
			RefPathPattern:        "profiles.*.tokenRef",
			SecretShape:           registry.ShapeSiblingRef,
			ExpectedResolvedValue: registry.ExpectedString,
			AuthProfileType:       "token",
		},
	})
	store := map[string]any{
		"profiles": map[string]any{
			"svc:acct1": map[string]any{
				"type":     "token",
				"provider": "svc",
				"tokenRef": map[string]any{"source": "env", "provider": "env", "id": "SVC_TOKEN"},
			},
		},
	}
	result := Walk(reg, nil, map[string]any{"agent-a": store})
	if len(result.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1 (the token-typed profile should resolve)", len(result.Assignments))
	}
	if result.Assignments[0].Ref.ID != "SVC_TOKEN" {
		t.Errorf("assignment = %+v, want the token ref SVC_TOKEN", result.Assignments[0])
	}
}
