package providers

import (
	"context"
	"testing"

	"aureuma/secrets-gateway/internal/secretref"
)

func TestEnvProviderResolvesTrimmedValue(t *testing.T) {
	t.Setenv("SECRETS_TEST_VAR", "  sk-live  ")
	p := &EnvProvider{Alias: "env", Config: EnvConfig{}}
	refs := []secretref.Ref{{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_VAR"}}
	res, err := p.Resolve(context.Background(), refs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Values[refs[0].Key()]; got != "sk-live" {
		t.Errorf("value = %q, want trimmed \"sk-live\"", got)
	}
}

func TestEnvProviderFailsMissingOrEmptyAsPerRef(t *testing.T) {
	t.Setenv("SECRETS_TEST_EMPTY", "")
	p := &EnvProvider{Alias: "env", Config: EnvConfig{}}
	refs := []secretref.Ref{
		{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_EMPTY"},
		{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_NEVER_SET"},
	}
	res, err := p.Resolve(context.Background(), refs)
	if err != nil {
		t.Fatalf("env provider must never return a batch-scoped error, got %v", err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 per-ref errors, got %d: %+v", len(res.Errors), res.Errors)
	}
}

func TestEnvProviderAllowlist(t *testing.T) {
	t.Setenv("SECRETS_TEST_NOT_ALLOWED", "value")
	p := &EnvProvider{Alias: "env", Config: EnvConfig{Allowlist: []string{"SECRETS_TEST_ALLOWED"}}}
	refs := []secretref.Ref{{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_NOT_ALLOWED"}}
	res, _ := p.Resolve(context.Background(), refs)
	if _, failed := res.Errors[refs[0].Key()]; !failed {
		t.Error("expected id outside allowlist to fail")
	}
}
