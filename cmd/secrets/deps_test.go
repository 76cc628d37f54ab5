package main

import "testing"

func TestBuildGatewayDepsCompilesDefaultRegistryAndEmptyProviders(t *testing.T) {
	deps, err := buildGatewayDeps(map[string]any{})
	if err != nil {
		t.Fatalf("buildGatewayDeps() unexpected err: %v", err)
	}
	if deps.registry == nil {
		t.Fatalf("expected a compiled registry")
	}
	if len(deps.providers) != 0 {
		t.Fatalf("expected no providers for an empty main config, got %v", deps.providers)
	}
}

func TestBuildProviderRegistryDecodesConfiguredProviders(t *testing.T) {
	mainConfig := map[string]any{
		"secrets": map[string]any{
			"providers": map[string]any{
				"env": map[string]any{"source": "env"},
			},
		},
	}
	reg, err := buildProviderRegistry(mainConfig)
	if err != nil {
		t.Fatalf("buildProviderRegistry() unexpected err: %v", err)
	}
	if _, ok := reg["env"]; !ok {
		t.Fatalf("expected an 'env' provider alias, got %v", reg)
	}
}

func TestBuildProviderRegistryNoProvidersIsEmpty(t *testing.T) {
	reg, err := buildProviderRegistry(map[string]any{})
	if err != nil {
		t.Fatalf("buildProviderRegistry() unexpected err: %v", err)
	}
	if len(reg) != 0 {
		t.Fatalf("expected empty registry, got %v", reg)
	}
}
