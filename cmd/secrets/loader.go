package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aureuma/secrets-gateway/internal/audit"
	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/dotenv"
	"aureuma/secrets-gateway/internal/snapshot"
)

// readJSONDocument decodes a JSON file into a configtree.Node (a
// map[string]any for any well-formed document this CLI cares about). A
// missing file decodes to an empty mapping rather than erroring, since an
// absent main config or auth store is a legitimate "nothing configured
// yet" starting point for configure/apply.
func readJSONDocument(path string) (configtree.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// agentStoreDir returns the directory an agent's auth-profiles.json lives
// under: the agent's own "dir" override if the main config sets one, else
// the default <stateDir>/agents/<id> layout.
func agentStoreDir(settings Settings, mainConfig configtree.Node, agentID string) string {
	if dirVal, ok := configtree.GetPath(mainConfig, []string{"agents", agentID, "dir"}); ok {
		if dir, ok := dirVal.(string); ok && dir != "" {
			return dir
		}
	}
	return filepath.Join(settings.Paths.StateDir, "agents", agentID)
}

func agentStorePath(settings Settings, mainConfig configtree.Node, agentID string) string {
	return filepath.Join(agentStoreDir(settings, mainConfig, agentID), "agent", "auth-profiles.json")
}

// discoverAgentIDs lists every key under the main config's "agents" map,
// the same wildcard surface the registry's "agents.*.…" entries capture.
func discoverAgentIDs(mainConfig configtree.Node) []string {
	agents, ok := configtree.GetPath(mainConfig, []string{"agents"})
	if !ok {
		return nil
	}
	m, ok := agents.(map[string]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// loadAgentStores reads every discovered agent's auth-profiles.json into a
// snapshot.AgentStore, keyed by the same agentDir string used both as the
// snapshot's AgentStore.AgentDir and as plan targets' agentId.
func loadAgentStores(settings Settings, mainConfig configtree.Node) ([]snapshot.AgentStore, error) {
	var stores []snapshot.AgentStore
	for _, id := range discoverAgentIDs(mainConfig) {
		path := agentStorePath(settings, mainConfig, id)
		doc, err := readJSONDocument(path)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", id, err)
		}
		stores = append(stores, snapshot.AgentStore{AgentDir: id, Store: doc})
	}
	return stores, nil
}

func loadLegacyAuthStore(settings Settings) (map[string]any, error) {
	path := settings.Paths.LegacyAuthStore
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func loadDotenv(settings Settings) (*dotenv.File, error) {
	if settings.Paths.Dotenv == "" {
		return nil, nil
	}
	f, err := dotenv.ReadFile(settings.Paths.Dotenv)
	if err != nil {
		if os.IsNotExist(err) {
			empty := dotenv.Parse(nil)
			return &empty, nil
		}
		return nil, err
	}
	return &f, nil
}

// buildAuditInput assembles an audit.Input from the files settings names,
// reusing the same registry and provider wiring the gateway resolves with.
func buildAuditInput(settings Settings, deps *gatewayDeps) (audit.Input, error) {
	mainConfig, err := readJSONDocument(settings.Paths.MainConfig)
	if err != nil {
		return audit.Input{}, err
	}
	agentStores, err := loadAgentStores(settings, mainConfig)
	if err != nil {
		return audit.Input{}, err
	}
	legacy, err := loadLegacyAuthStore(settings)
	if err != nil {
		return audit.Input{}, err
	}
	env, err := loadDotenv(settings)
	if err != nil {
		return audit.Input{}, err
	}

	auditStores := make([]audit.AgentAuthStore, 0, len(agentStores))
	for _, as := range agentStores {
		auditStores = append(auditStores, audit.AgentAuthStore{
			AgentID: as.AgentDir,
			File:    agentStorePath(settings, mainConfig, as.AgentDir),
			Store:   as.Store,
		})
	}

	return audit.Input{
		Registry:           deps.registry,
		Providers:          deps.providers,
		Limits:             deps.limits,
		MainConfig:         mainConfig,
		MainFile:           settings.Paths.MainConfig,
		AuthStores:         auditStores,
		LegacyAuthStore:    legacy,
		LegacyFile:         settings.Paths.LegacyAuthStore,
		Dotenv:             env,
		DotenvFile:         settings.Paths.Dotenv,
		KnownEnvSecretVars: settings.Paths.KnownEnvSecrets,
	}, nil
}
