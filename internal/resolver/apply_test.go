package resolver

import (
	"context"
	"testing"

	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

func TestBatchAndApplyWritesResolvedValueIntoResolvedConfig(t *testing.T) {
	t.Setenv("SECRETS_TEST_APPLY_PASSWORD", "hunter2")

	entry := &registry.Entry{ID: "gateway.auth.password", ExpectedResolvedValue: registry.ExpectedString}
	config := map[string]any{
		"gateway": map[string]any{
			"auth": map[string]any{
				"password": map[string]any{"source": "env", "provider": "env", "id": "SECRETS_TEST_APPLY_PASSWORD"},
			},
		},
	}
	assignments := []Assignment{
		{
			Ref:          secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_APPLY_PASSWORD"},
			Entry:        entry,
			Target:       TargetResolvedConfig,
			PathSegments: []string{"gateway", "auth", "password"},
			Expected:     registry.ExpectedString,
			Path:         "gateway.auth.password",
		},
	}
	reg := providers.Registry{"env": &providers.EnvProvider{Alias: "env"}}

	outcome, err := BatchAndApply(context.Background(), reg, providers.DefaultLimits, assignments, config, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", outcome.Failed)
	}
	got := config["gateway"].(map[string]any)["auth"].(map[string]any)["password"]
	if got != "hunter2" {
		t.Errorf("password = %v, want \"hunter2\"", got)
	}
}

func TestBatchAndApplyRecordsPerRefFailureWithoutSinkingOthers(t *testing.T) {
	t.Setenv("SECRETS_TEST_APPLY_GOOD", "value")

	entryGood := &registry.Entry{ID: "good", ExpectedResolvedValue: registry.ExpectedString}
	entryBad := &registry.Entry{ID: "bad", ExpectedResolvedValue: registry.ExpectedString}
	config := map[string]any{
		"good": map[string]any{"source": "env", "provider": "env", "id": "SECRETS_TEST_APPLY_GOOD"},
		"bad":  map[string]any{"source": "env", "provider": "env", "id": "SECRETS_TEST_APPLY_MISSING"},
	}
	assignments := []Assignment{
		{Ref: secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_APPLY_GOOD"}, Entry: entryGood, Target: TargetResolvedConfig, PathSegments: []string{"good"}, Expected: registry.ExpectedString, Path: "good"},
		{Ref: secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_APPLY_MISSING"}, Entry: entryBad, Target: TargetResolvedConfig, PathSegments: []string{"bad"}, Expected: registry.ExpectedString, Path: "bad"},
	}
	reg := providers.Registry{"env": &providers.EnvProvider{Alias: "env"}}

	outcome, err := BatchAndApply(context.Background(), reg, providers.DefaultLimits, assignments, config, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Failed) != 1 {
		t.Fatalf("got %d failures, want 1: %+v", len(outcome.Failed), outcome.Failed)
	}
	if _, failed := outcome.Failed["bad"]; !failed {
		t.Error("expected \"bad\" to be recorded as failed")
	}
	if config["good"] != "value" {
		t.Errorf("good = %v, want \"value\" (unaffected by bad's failure)", config["good"])
	}
}

func TestBatchAndApplyRejectsShapeMismatch(t *testing.T) {
	t.Setenv("SECRETS_TEST_APPLY_EMPTY_AFTER_TRIM", "   ")

	entry := &registry.Entry{ID: "x", ExpectedResolvedValue: registry.ExpectedString}
	config := map[string]any{
		"x": map[string]any{"source": "env", "provider": "env", "id": "SECRETS_TEST_APPLY_EMPTY_AFTER_TRIM"},
	}
	assignments := []Assignment{
		{Ref: secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_APPLY_EMPTY_AFTER_TRIM"}, Entry: entry, Target: TargetResolvedConfig, PathSegments: []string{"x"}, Expected: registry.ExpectedString, Path: "x"},
	}
	reg := providers.Registry{"env": &providers.EnvProvider{Alias: "env"}}

	outcome, err := BatchAndApply(context.Background(), reg, providers.DefaultLimits, assignments, config, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Failed) != 1 {
		t.Fatalf("expected the trimmed-to-empty value to fail as a per-ref resolution error, got %+v", outcome.Failed)
	}
}

func TestBatchAndApplyWritesIntoAuthStoreByAgentID(t *testing.T) {
	t.Setenv("SECRETS_TEST_APPLY_PROFILE_KEY", "sk-abc")

	entry := &registry.Entry{ID: "auth.profile.apiKey", ExpectedResolvedValue: registry.ExpectedString}
	store := map[string]any{
		"profiles": map[string]any{
			"p1": map[string]any{"key": "plain"},
		},
	}
	assignments := []Assignment{
		{
			Ref:          secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_APPLY_PROFILE_KEY"},
			Entry:        entry,
			Target:       TargetAuthStore,
			AgentID:      "agent-a",
			PathSegments: []string{"profiles", "p1", "key"},
			Expected:     registry.ExpectedString,
			Path:         "agent-a:profiles.p1.key",
		},
	}
	reg := providers.Registry{"env": &providers.EnvProvider{Alias: "env"}}
	stores := map[string]interface{}{"agent-a": store}

	outcome, err := BatchAndApply(context.Background(), reg, providers.DefaultLimits, assignments, nil, stores)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", outcome.Failed)
	}
	got := store["profiles"].(map[string]any)["p1"].(map[string]any)["key"]
	if got != "sk-abc" {
		t.Errorf("key = %v, want \"sk-abc\"", got)
	}
}
