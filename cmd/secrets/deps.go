package main

import (
	"encoding/json"
	"fmt"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
)

// gatewayDeps bundles the compiled registry and provider wiring every
// subcommand needs, built fresh from settings + the current on-disk main
// config each time a command runs (this CLI has no long-lived process
// state of its own).
type gatewayDeps struct {
	registry  *registry.Registry
	providers providers.Registry
	limits    providers.Limits
}

func buildGatewayDeps(mainConfig configtree.Node) (*gatewayDeps, error) {
	reg, err := registry.Compile(registry.DefaultEntries)
	if err != nil {
		return nil, fmt.Errorf("compile registry: %w", err)
	}

	providerRegistry, err := buildProviderRegistry(mainConfig)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	return &gatewayDeps{
		registry:  reg,
		providers: providerRegistry,
		limits:    providers.DefaultLimits,
	}, nil
}

// buildProviderRegistry re-encodes the main config's secrets.providers
// sub-tree (already decoded into plain Go values by readJSONDocument) back
// into the map[string]json.RawMessage shape providers.BuildRegistry wants.
func buildProviderRegistry(mainConfig configtree.Node) (providers.Registry, error) {
	raw, ok := configtree.GetPath(mainConfig, []string{"secrets", "providers"})
	if !ok {
		return providers.Registry{}, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var specs map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &specs); err != nil {
		return nil, err
	}
	return providers.BuildRegistry(specs)
}
