package gatewayrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/resolver"
	"aureuma/secrets-gateway/internal/snapshot"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Compile([]registry.Entry{
		{
			ID:                    "talk.apiKey",
			ConfigFile:            registry.ConfigFileMain,
			PathPattern:           "talk.apiKey",
			SecretShape:           registry.ShapeSecretInput,
			ExpectedResolvedValue: registry.ExpectedString,
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return reg
}

func newTestServer(t *testing.T, loader Loader) *Server {
	t.Helper()
	return &Server{
		Registry:     testRegistry(t),
		Providers:    providers.Registry{"env": &providers.EnvProvider{}},
		Limits:       providers.DefaultLimits,
		StateMachine: resolver.NewStateMachine(),
		Activator:    snapshot.New(),
		Loader:       loader,
	}
}

func TestDispatchReloadActivatesSnapshotOnSuccess(t *testing.T) {
	t.Setenv("TALK_KEY", "sk-live")
	loader := func(ctx context.Context) (configtree.Node, []snapshot.AgentStore, error) {
		source := map[string]any{
			"talk": map[string]any{"apiKey": map[string]any{"source": "env", "provider": "env", "id": "TALK_KEY"}},
		}
		return source, nil, nil
	}
	s := newTestServer(t, loader)

	resp := s.Dispatch(context.Background(), Request{ID: "1", Method: MethodReload, Params: json.RawMessage(`{}`)})
	if resp.Error != nil {
		t.Fatalf("Dispatch error: %+v", resp.Error)
	}
	var result ReloadResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.OK {
		t.Fatalf("result = %+v, want ok", result)
	}

	snap := s.Activator.Current()
	if snap == nil {
		t.Fatal("expected a snapshot to be activated")
	}
	got, ok := configtree.GetPath(snap.ResolvedConfig, []string{"talk", "apiKey"})
	if !ok || got != "sk-live" {
		t.Fatalf("resolved talk.apiKey = %#v, want sk-live", got)
	}
}

func TestDispatchReloadReturnsUnavailableOnFailureAndKeepsLKG(t *testing.T) {
	goodLoader := func(ctx context.Context) (configtree.Node, []snapshot.AgentStore, error) {
		source := map[string]any{
			"talk": map[string]any{"apiKey": "plaintext-already-fine"},
		}
		return source, nil, nil
	}
	s := newTestServer(t, goodLoader)
	if resp := s.Dispatch(context.Background(), Request{ID: "1", Method: MethodReload}); resp.Error != nil {
		t.Fatalf("seed reload failed: %+v", resp.Error)
	}
	lkg := s.Activator.Current()

	s.Loader = func(ctx context.Context) (configtree.Node, []snapshot.AgentStore, error) {
		source := map[string]any{
			"talk": map[string]any{"apiKey": map[string]any{"source": "env", "provider": "env", "id": "NOT_SET_ANYWHERE"}},
		}
		return source, nil, nil
	}

	resp := s.Dispatch(context.Background(), Request{ID: "2", Method: MethodReload})
	if resp.Error == nil {
		t.Fatal("expected a reload failure")
	}
	if resp.Error.Code != CodeUnavailable {
		t.Errorf("error code = %q, want %q", resp.Error.Code, CodeUnavailable)
	}

	after := s.Activator.Current()
	got, _ := configtree.GetPath(after.ResolvedConfig, []string{"talk", "apiKey"})
	want, _ := configtree.GetPath(lkg.ResolvedConfig, []string{"talk", "apiKey"})
	if got != want {
		t.Fatalf("active snapshot changed after a failed reload: got %#v, want %#v", got, want)
	}
}

func TestDispatchResolveReturnsUnavailableWithNoSnapshot(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.Dispatch(context.Background(), Request{
		ID: "1", Method: MethodResolve,
		Params: json.RawMessage(`{"commandName":"memory status","targetIds":["talk.apiKey"]}`),
	})
	if resp.Error == nil || resp.Error.Code != CodeUnavailable {
		t.Fatalf("resp.Error = %+v, want UNAVAILABLE", resp.Error)
	}
}

func TestDispatchResolveRejectsUnknownTargetID(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.Dispatch(context.Background(), Request{
		ID: "1", Method: MethodResolve,
		Params: json.RawMessage(`{"commandName":"memory status","targetIds":["no.such.id"]}`),
	})
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("resp.Error = %+v, want INVALID_REQUEST", resp.Error)
	}
}

func TestDispatchResolveReturnsResolvedAssignment(t *testing.T) {
	loader := func(ctx context.Context) (configtree.Node, []snapshot.AgentStore, error) {
		source := map[string]any{"talk": map[string]any{"apiKey": "sk-live"}}
		return source, nil, nil
	}
	s := newTestServer(t, loader)
	if resp := s.Dispatch(context.Background(), Request{ID: "seed", Method: MethodReload}); resp.Error != nil {
		t.Fatalf("seed reload: %+v", resp.Error)
	}

	resp := s.Dispatch(context.Background(), Request{
		ID: "2", Method: MethodResolve,
		Params: json.RawMessage(`{"commandName":"memory status","targetIds":["talk.apiKey"]}`),
	})
	if resp.Error != nil {
		t.Fatalf("Dispatch error: %+v", resp.Error)
	}
	var result ResolveResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.OK || len(result.Assignments) != 1 || result.Assignments[0].Value != "sk-live" {
		t.Fatalf("result = %+v, want one assignment of sk-live", result)
	}
}

func TestDispatchRejectsMalformedResolveParams(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.Dispatch(context.Background(), Request{
		ID: "1", Method: MethodResolve,
		Params: json.RawMessage(`{"commandName": 7}`),
	})
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("resp.Error = %+v, want INVALID_REQUEST for a schema-violating body", resp.Error)
	}
}

func TestDispatchRejectsUnknownMethod(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.Dispatch(context.Background(), Request{ID: "1", Method: "secrets.bogus"})
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("resp.Error = %+v, want INVALID_REQUEST", resp.Error)
	}
}

// fakeCaller is a Caller that returns a canned ResolveResult (or error)
// without a real connection, so hydrate.go's branching can be tested in
// isolation.
type fakeCaller struct {
	result  ResolveResult
	err     error
	called  bool
	lastIDs []string
}

func (f *fakeCaller) Call(ctx context.Context, method string, params, result any) error {
	f.called = true
	if p, ok := params.(ResolveParams); ok {
		f.lastIDs = p.TargetIDs
	}
	if f.err != nil {
		return f.err
	}
	out, err := json.Marshal(f.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(out, result)
}

func TestResolveCommandSecretRefsViaGatewaySkipsRPCWhenNoRefConfigured(t *testing.T) {
	reg := testRegistry(t)
	localConfig := map[string]any{"talk": map[string]any{"apiKey": "already-plaintext"}}
	caller := &fakeCaller{}

	got, err := ResolveCommandSecretRefsViaGateway(context.Background(), caller, reg, "memory status", localConfig, []string{"talk.apiKey"})
	if err != nil {
		t.Fatalf("ResolveCommandSecretRefsViaGateway: %v", err)
	}
	if caller.called {
		t.Fatal("expected no RPC call when no target is ref-configured locally")
	}
	if v, _ := configtree.GetPath(got, []string{"talk", "apiKey"}); v != "already-plaintext" {
		t.Fatalf("config mutated unexpectedly: %#v", got)
	}
}

func TestResolveCommandSecretRefsViaGatewayHydratesConfiguredRef(t *testing.T) {
	reg := testRegistry(t)
	localConfig := map[string]any{
		"talk": map[string]any{"apiKey": map[string]any{"source": "env", "provider": "env", "id": "TALK_KEY"}},
	}
	caller := &fakeCaller{result: ResolveResult{
		OK: true,
		Assignments: []Assignment{
			{Path: "talk.apiKey", PathSegments: []string{"talk", "apiKey"}, Value: "sk-live"},
		},
	}}

	got, err := ResolveCommandSecretRefsViaGateway(context.Background(), caller, reg, "memory status", localConfig, []string{"talk.apiKey"})
	if err != nil {
		t.Fatalf("ResolveCommandSecretRefsViaGateway: %v", err)
	}
	if !caller.called {
		t.Fatal("expected an RPC call for a ref-configured target")
	}
	v, ok := configtree.GetPath(got, []string{"talk", "apiKey"})
	if !ok || v != "sk-live" {
		t.Fatalf("talk.apiKey = %#v, want hydrated to sk-live", v)
	}
}

func TestResolveCommandSecretRefsViaGatewayTreatsInactiveSurfaceAsExpected(t *testing.T) {
	reg := testRegistry(t)
	localConfig := map[string]any{
		"talk": map[string]any{"apiKey": map[string]any{"source": "env", "provider": "env", "id": "TALK_KEY"}},
	}
	caller := &fakeCaller{result: ResolveResult{
		OK:          true,
		Assignments: nil,
		Diagnostics: []string{"talk.apiKey: secret ref is configured on an inactive surface; channel disabled"},
	}}

	got, err := ResolveCommandSecretRefsViaGateway(context.Background(), caller, reg, "memory status", localConfig, []string{"talk.apiKey"})
	if err != nil {
		t.Fatalf("ResolveCommandSecretRefsViaGateway: %v", err)
	}
	if v, ok := configtree.GetPath(got, []string{"talk", "apiKey"}); !ok {
		t.Fatalf("expected the untouched ref to remain in place, got %#v", v)
	}
}

func TestResolveCommandSecretRefsViaGatewayRaisesOnUnresolvedNonInactiveRef(t *testing.T) {
	reg := testRegistry(t)
	localConfig := map[string]any{
		"talk": map[string]any{"apiKey": map[string]any{"source": "env", "provider": "env", "id": "TALK_KEY"}},
	}
	caller := &fakeCaller{result: ResolveResult{OK: true}}

	_, err := ResolveCommandSecretRefsViaGateway(context.Background(), caller, reg, "memory status", localConfig, []string{"talk.apiKey"})
	if err == nil {
		t.Fatal("expected an error for an unresolved, non-inactive ref")
	}
	var unresolved *snapshot.UnresolvedTargetError
	if !errors.As(err, &unresolved) {
		t.Fatalf("err = %v, want *snapshot.UnresolvedTargetError", err)
	}
}
