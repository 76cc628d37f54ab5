package providers

import (
	"context"
	"testing"

	"aureuma/secrets-gateway/internal/secretref"
)

func TestGroupBySourceAndProviderSplitsOversizedGroups(t *testing.T) {
	var refs []secretref.Ref
	for i := 0; i < 5; i++ {
		refs = append(refs, secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: "VAR"})
	}
	batches := GroupBySourceAndProvider(refs, Limits{MaxRefsPerProvider: 2})
	key := BatchKey{Source: secretref.SourceEnv, Provider: "env"}
	groups := batches[key]
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3 (2+2+1)", len(groups))
	}
	if len(groups[0]) != 2 || len(groups[1]) != 2 || len(groups[2]) != 1 {
		t.Errorf("group sizes = %v, %v, %v", len(groups[0]), len(groups[1]), len(groups[2]))
	}
}

func TestResolveAllMergesAcrossProviders(t *testing.T) {
	t.Setenv("SECRETS_TEST_BATCH_A", "value-a")
	t.Setenv("SECRETS_TEST_BATCH_B", "value-b")

	reg := Registry{
		"env": &EnvProvider{Alias: "env"},
	}
	refs := []secretref.Ref{
		{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_BATCH_A"},
		{Source: secretref.SourceEnv, Provider: "env", ID: "SECRETS_TEST_BATCH_B"},
	}
	res, err := ResolveAll(context.Background(), reg, refs, DefaultLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Values) != 2 {
		t.Fatalf("got %d values, want 2: %+v", len(res.Values), res.Values)
	}
}

func TestResolveAllFailsEntireBatchOnScopedError(t *testing.T) {
	reg := Registry{
		"broken-exec": &ExecProvider{Alias: "broken-exec", Config: ExecConfig{Command: "not-absolute"}},
	}
	refs := []secretref.Ref{
		{Source: secretref.SourceExec, Provider: "broken-exec", ID: "a"},
		{Source: secretref.SourceExec, Provider: "broken-exec", ID: "b"},
	}
	res, err := ResolveAll(context.Background(), reg, refs, DefaultLimits)
	if err != nil {
		t.Fatalf("ResolveAll itself should not error, failures are per-ref: %v", err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected both refs to fail as part of the scoped batch failure, got %d: %+v", len(res.Errors), res.Errors)
	}
}

func TestResolveAllReportsUnconfiguredProvider(t *testing.T) {
	refs := []secretref.Ref{{Source: secretref.SourceEnv, Provider: "missing", ID: "X"}}
	res, err := ResolveAll(context.Background(), Registry{}, refs, DefaultLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, failed := res.Errors[refs[0].Key()]; !failed {
		t.Error("expected an error for a ref naming an unconfigured provider alias")
	}
}
