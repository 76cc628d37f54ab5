package configtree

import (
	"errors"
	"testing"
)

func TestGetPathWalksMixedMappingAndArray(t *testing.T) {
	tree := map[string]any{
		"channels": map[string]any{
			"discord": map[string]any{
				"voice": map[string]any{
					"tts": map[string]any{
						"providers": []any{
							map[string]any{"apiKey": "k0"},
							map[string]any{"apiKey": "k1"},
						},
					},
				},
			},
		},
	}
	v, ok := GetPath(tree, []string{"channels", "discord", "voice", "tts", "providers", "1", "apiKey"})
	if !ok || v != "k1" {
		t.Fatalf("GetPath = (%v, %v), want (\"k1\", true)", v, ok)
	}
	if _, ok := GetPath(tree, []string{"channels", "discord", "voice", "tts", "providers", "5", "apiKey"}); ok {
		t.Error("expected GetPath to fail on out-of-range array index")
	}
	if _, ok := GetPath(tree, []string{"channels", "telegram"}); ok {
		t.Error("expected GetPath to fail on absent key")
	}
}

func TestSetPathCreateStrictCreatesIntermediates(t *testing.T) {
	tree := map[string]any{}
	changed, err := SetPathCreateStrict(tree, []string{"channels", "telegram", "botToken"}, "secret-value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true on first write")
	}
	got, ok := GetPath(tree, []string{"channels", "telegram", "botToken"})
	if !ok || got != "secret-value" {
		t.Fatalf("GetPath after set = (%v, %v)", got, ok)
	}

	changed, err = SetPathCreateStrict(tree, []string{"channels", "telegram", "botToken"}, "secret-value")
	if err != nil {
		t.Fatalf("unexpected error on idempotent rewrite: %v", err)
	}
	if changed {
		t.Error("expected changed=false when writing an equal value")
	}
}

func TestSetPathCreateStrictRejectsScalarOverwrite(t *testing.T) {
	tree := map[string]any{
		"channels": "not-a-mapping",
	}
	_, err := SetPathCreateStrict(tree, []string{"channels", "telegram", "botToken"}, "x")
	if !errors.Is(err, ErrShapeConflict) {
		t.Fatalf("expected ErrShapeConflict, got %v", err)
	}
}

func TestSetPathExistingStrictRequiresPresence(t *testing.T) {
	tree := map[string]any{
		"channels": map[string]any{"telegram": map[string]any{}},
	}
	if _, err := SetPathExistingStrict(tree, []string{"channels", "telegram", "botToken"}, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tree["channels"].(map[string]any)["telegram"].(map[string]any)["botToken"] = "old"
	changed, err := SetPathExistingStrict(tree, []string{"channels", "telegram", "botToken"}, "new")
	if err != nil || !changed {
		t.Fatalf("SetPathExistingStrict = (%v, %v), want (true, nil)", changed, err)
	}
}

func TestDeletePathStrictCompactsArray(t *testing.T) {
	tree := map[string]any{
		"channels": map[string]any{
			"discord": map[string]any{
				"voice": map[string]any{
					"tts": map[string]any{
						"providers": []any{
							map[string]any{"name": "elevenlabs"},
							map[string]any{"name": "openai"},
							map[string]any{"name": "azure"},
						},
					},
				},
			},
		},
	}
	changed, err := DeletePathStrict(tree, []string{"channels", "discord", "voice", "tts", "providers", "1"})
	if err != nil || !changed {
		t.Fatalf("DeletePathStrict = (%v, %v), want (true, nil)", changed, err)
	}
	providers := tree["channels"].(map[string]any)["discord"].(map[string]any)["voice"].(map[string]any)["tts"].(map[string]any)["providers"].([]any)
	if len(providers) != 2 {
		t.Fatalf("expected array to compact to length 2, got %d: %+v", len(providers), providers)
	}
	if providers[0].(map[string]any)["name"] != "elevenlabs" || providers[1].(map[string]any)["name"] != "azure" {
		t.Errorf("unexpected compacted array contents: %+v", providers)
	}
}

func TestDeletePathStrictRequiresPresence(t *testing.T) {
	tree := map[string]any{"channels": map[string]any{}}
	if _, err := DeletePathStrict(tree, []string{"channels", "telegram"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	a := map[string]any{"x": []any{"a", float64(1), map[string]any{"y": true}}}
	b := map[string]any{"x": []any{"a", float64(1), map[string]any{"y": true}}}
	if !Equal(a, b) {
		t.Error("expected structurally identical trees to be Equal")
	}
	c := map[string]any{"x": []any{"a", float64(2), map[string]any{"y": true}}}
	if Equal(a, c) {
		t.Error("expected differing trees to not be Equal")
	}
}

// TestRoundTripInvariant exercises the property that for every registry-style
// pattern and every concrete segment list it matches, materializing the
// captures MatchSegments extracted reproduces the original segments exactly.
func TestRoundTripInvariant(t *testing.T) {
	tree := map[string]any{
		"channels": map[string]any{
			"discord": map[string]any{
				"voice": map[string]any{
					"tts": map[string]any{
						"providers": []any{
							map[string]any{"apiKey": "k0"},
							map[string]any{"apiKey": "k1"},
						},
					},
				},
			},
		},
		"agents": map[string]any{
			"support-bot": map[string]any{"memorySearch": map[string]any{"apiKey": "a0"}},
		},
	}
	patterns := []string{
		"channels.discord.voice.tts.providers[].apiKey",
		"agents.*.memorySearch.apiKey",
	}
	for _, pattern := range patterns {
		tokens := ParsePattern(pattern)
		for _, hit := range Expand(tree, tokens) {
			captures, ok := MatchSegments(tokens, hit.Segments)
			if !ok {
				t.Fatalf("pattern %q: MatchSegments rejected its own Expand output %v", pattern, hit.Segments)
			}
			rebuilt := Materialize(tokens, captures)
			if len(rebuilt) != len(hit.Segments) {
				t.Fatalf("pattern %q: round trip length mismatch: got %v, want %v", pattern, rebuilt, hit.Segments)
			}
			for i := range rebuilt {
				if rebuilt[i] != hit.Segments[i] {
					t.Fatalf("pattern %q: round trip mismatch at %d: got %v, want %v", pattern, i, rebuilt, hit.Segments)
				}
			}
		}
	}
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	original := map[string]any{
		"a": "x",
		"b": []any{1.0, map[string]any{"c": "y"}},
	}
	cloned := Clone(original).(map[string]any)

	if !Equal(original, cloned) {
		t.Fatal("clone should be structurally equal to the original")
	}

	cloned["a"] = "mutated"
	cloned["b"].([]any)[1].(map[string]any)["c"] = "mutated"

	if original["a"] != "x" {
		t.Errorf("mutating the clone's top-level field leaked into the original: %v", original["a"])
	}
	nested := original["b"].([]any)[1].(map[string]any)["c"]
	if nested != "y" {
		t.Errorf("mutating the clone's nested field leaked into the original: %v", nested)
	}
}
