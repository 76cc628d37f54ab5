package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the CLI's own persisted configuration: where the main config,
// agent stores, legacy auth store, and .env live, plus the gateway RPC
// endpoint reload/resolve dial. Unlike a multi-bridge tool this CLI has
// exactly one domain, so settings live in a single file rather than being
// split per module.
type Settings struct {
	SchemaVersion int              `toml:"schema_version"`
	Paths         SettingsPaths    `toml:"paths"`
	Gateway       GatewaySettings  `toml:"gateway,omitempty"`
	Metadata      SettingsMetadata `toml:"metadata,omitempty"`
}

type SettingsPaths struct {
	MainConfig      string   `toml:"main_config,omitempty"`
	StateDir        string   `toml:"state_dir,omitempty"`
	AgentsDir       string   `toml:"agents_dir,omitempty"`
	LegacyAuthStore string   `toml:"legacy_auth_store,omitempty"`
	Dotenv          string   `toml:"dotenv,omitempty"`
	KnownEnvSecrets []string `toml:"known_env_secrets,omitempty"`
}

type GatewaySettings struct {
	URL string `toml:"url,omitempty"`
}

type SettingsMetadata struct {
	UpdatedAt string `toml:"updated_at,omitempty"`
}

const settingsSchemaVersion = 1

func defaultSettings() Settings {
	return Settings{
		SchemaVersion: settingsSchemaVersion,
		Paths: SettingsPaths{
			MainConfig:      "config.json",
			StateDir:        ".secrets-gateway",
			AgentsDir:       "agents",
			LegacyAuthStore: "auth-store.json",
			Dotenv:          ".env",
			KnownEnvSecrets: nil,
		},
		Gateway: GatewaySettings{URL: "ws://127.0.0.1:4411/secrets"},
	}
}

func applySettingsDefaults(s *Settings) {
	d := defaultSettings()
	if s.SchemaVersion == 0 {
		s.SchemaVersion = d.SchemaVersion
	}
	if strings.TrimSpace(s.Paths.MainConfig) == "" {
		s.Paths.MainConfig = d.Paths.MainConfig
	}
	if strings.TrimSpace(s.Paths.StateDir) == "" {
		s.Paths.StateDir = d.Paths.StateDir
	}
	if strings.TrimSpace(s.Paths.AgentsDir) == "" {
		s.Paths.AgentsDir = d.Paths.AgentsDir
	}
	if strings.TrimSpace(s.Paths.LegacyAuthStore) == "" {
		s.Paths.LegacyAuthStore = d.Paths.LegacyAuthStore
	}
	if strings.TrimSpace(s.Paths.Dotenv) == "" {
		s.Paths.Dotenv = d.Paths.Dotenv
	}
	if strings.TrimSpace(s.Gateway.URL) == "" {
		s.Gateway.URL = d.Gateway.URL
	}
}

func settingsHomeDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("SECRETS_SETTINGS_HOME")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if os.Geteuid() == 0 && home == "/root" {
		return "", fmt.Errorf("refusing to write settings under /root as root; set SECRETS_SETTINGS_HOME")
	}
	return home, nil
}

func settingsPath() (string, error) {
	home, err := settingsHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".secrets-gateway", "settings.toml"), nil
}

func loadSettings() (Settings, error) {
	settings := defaultSettings()
	path, err := settingsPath()
	if err != nil {
		return settings, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applySettingsDefaults(&settings)
			return settings, nil
		}
		return settings, fmt.Errorf("read settings (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return defaultSettings(), fmt.Errorf("parse settings (%s): %w", path, err)
	}
	applySettingsDefaults(&settings)
	return settings, nil
}

func loadSettingsOrDefault() Settings {
	settings, err := loadSettings()
	if err != nil {
		warnf("settings: %v; using defaults", err)
		fallback := defaultSettings()
		applySettingsDefaults(&fallback)
		return fallback
	}
	return settings
}

func saveSettings(settings Settings) error {
	applySettingsDefaults(&settings)
	settings.Metadata.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	path, err := settingsPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := writeSettingsFileAtomic(path, data); err != nil {
		return fmt.Errorf("write settings (%s): %w", path, err)
	}
	return nil
}

func writeSettingsFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "settings-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
