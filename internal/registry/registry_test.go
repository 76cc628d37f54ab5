package registry

import (
	"testing"
)

func TestCompileDefaultEntriesSucceeds(t *testing.T) {
	r, err := Compile(DefaultEntries)
	if err != nil {
		t.Fatalf("Compile(DefaultEntries) failed: %v", err)
	}
	if !r.IsKnownSecretTargetType("gateway.auth.password") {
		t.Error("expected gateway.auth.password to be a known target type")
	}
	if !r.IsKnownSecretTargetId(ConfigFileAuthProfile, "auth-profiles.api_key.key") {
		t.Error("expected auth-profiles.api_key.key to be known in the auth-profile scope")
	}
	if r.IsKnownSecretTargetId(ConfigFileMain, "auth-profiles.api_key.key") {
		t.Error("auth-profile id must not also resolve in the main-config scope")
	}
	if !r.IsKnownSecretTargetId(ConfigFileAuthProfile, "auth-profiles.token.token") {
		t.Error("expected auth-profiles.token.token to be known in the auth-profile scope")
	}
	for _, e := range DefaultEntries {
		if e.AuthProfileType == "oauth" {
			t.Errorf("expected no default entry to declare AuthProfileType oauth (out-of-scope for ref resolution), found %q", e.ID)
		}
	}
}

func TestCompileRejectsSiblingRefWithoutRefPathPattern(t *testing.T) {
	_, err := Compile([]Entry{{
		ID:                    "bad.entry",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "bad.entry",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedString,
	}})
	if err == nil {
		t.Fatal("expected Compile to reject a sibling_ref entry with no refPathPattern")
	}
}

func TestCompileRejectsMismatchedDynamicTokenCounts(t *testing.T) {
	_, err := Compile([]Entry{{
		ID:                    "bad.entry",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "agents.*.apiKey",
		RefPathPattern:        "agents.apiKeyRef",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedString,
	}})
	if err == nil {
		t.Fatal("expected Compile to reject path/refPath with differing dynamic token counts")
	}
}

func TestCompileRejectsDuplicateID(t *testing.T) {
	_, err := Compile([]Entry{
		{ID: "dup", ConfigFile: ConfigFileMain, PathPattern: "a.b", SecretShape: ShapeSecretInput, ExpectedResolvedValue: ExpectedString},
		{ID: "dup", ConfigFile: ConfigFileMain, PathPattern: "a.c", SecretShape: ShapeSecretInput, ExpectedResolvedValue: ExpectedString},
	})
	if err == nil {
		t.Fatal("expected Compile to reject duplicate ids within the same configFile scope")
	}
}

func TestDiscoverConfigSecretTargetsDedupesAndCaptures(t *testing.T) {
	r, err := Compile(DefaultEntries)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	tree := map[string]any{
		"channels": map[string]any{
			"telegram": map[string]any{
				"accounts": map[string]any{
					"work":     map[string]any{"botToken": "ref-or-plaintext-1"},
					"personal": map[string]any{"botToken": "ref-or-plaintext-2"},
				},
			},
		},
	}
	hits := r.DiscoverConfigSecretTargets(tree, map[string]bool{"channels.telegram.accounts.botToken": true})
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2: %+v", len(hits), hits)
	}
	byAccount := map[string]DiscoveredTarget{}
	for _, h := range hits {
		byAccount[h.AccountID] = h
	}
	if byAccount["work"].Value != "ref-or-plaintext-1" {
		t.Errorf("work account value = %v", byAccount["work"].Value)
	}
	if byAccount["personal"].Path != "channels.telegram.accounts.personal.botToken" {
		t.Errorf("unexpected path: %q", byAccount["personal"].Path)
	}
}

func TestDiscoverConfigSecretTargetsSiblingRef(t *testing.T) {
	r, err := Compile(DefaultEntries)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	tree := map[string]any{
		"channels": map[string]any{
			"googlechat": map[string]any{
				"serviceAccount":    "plaintext-json-blob",
				"serviceAccountRef": map[string]any{"source": "ref", "provider": "env", "id": "GCHAT_SA"},
			},
		},
	}
	hits := r.DiscoverConfigSecretTargets(tree, map[string]bool{"channels.googlechat.serviceAccount": true})
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.RefPath != "channels.googlechat.serviceAccountRef" {
		t.Errorf("RefPath = %q", h.RefPath)
	}
	refMap, ok := h.RefValue.(map[string]any)
	if !ok || refMap["id"] != "GCHAT_SA" {
		t.Errorf("RefValue = %+v", h.RefValue)
	}
}

func TestResolvePlanTargetAgainstRegistry(t *testing.T) {
	r, err := Compile(DefaultEntries)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	providerID := "openai"
	resolved, ok := r.ResolvePlanTargetAgainstRegistry(PlanTargetQuery{
		Type:         "models.providers.apiKey",
		PathSegments: []string{"models", "providers", "openai", "apiKey"},
		ProviderID:   &providerID,
	})
	if !ok {
		t.Fatal("expected plan target to resolve")
	}
	if resolved.Entry.ID != "models.providers.apiKey" {
		t.Errorf("resolved entry id = %q", resolved.Entry.ID)
	}

	mismatched := "anthropic"
	if _, ok := r.ResolvePlanTargetAgainstRegistry(PlanTargetQuery{
		Type:         "models.providers.apiKey",
		PathSegments: []string{"models", "providers", "openai", "apiKey"},
		ProviderID:   &mismatched,
	}); ok {
		t.Error("expected resolution to fail when supplied providerId disagrees with the path segment")
	}
}

func TestResolvePlanTargetSiblingRefMaterializesRefPath(t *testing.T) {
	r, err := Compile(DefaultEntries)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	resolved, ok := r.ResolvePlanTargetAgainstRegistry(PlanTargetQuery{
		Type:         "auth-profiles.api_key.key",
		PathSegments: []string{"profiles", "openai:default", "key"},
	})
	if !ok {
		t.Fatal("expected plan target to resolve")
	}
	want := []string{"profiles", "openai:default", "keyRef"}
	if len(resolved.RefPathSegments) != len(want) {
		t.Fatalf("RefPathSegments = %v, want %v", resolved.RefPathSegments, want)
	}
	for i := range want {
		if resolved.RefPathSegments[i] != want[i] {
			t.Fatalf("RefPathSegments = %v, want %v", resolved.RefPathSegments, want)
		}
	}
}
