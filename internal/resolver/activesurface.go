package resolver

import (
	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/registry"
)

// activeness computes whether a discovered target's surface is active,
// returning a human-readable reason either way — the reason is surfaced
// in the InactiveSurface diagnostic when inactive, and otherwise discarded.
type activeness func(root configtree.Node, dt registry.DiscoveredTarget) (active bool, reason string)

// activenessByID dispatches each registry entry id to the activeness rule
// that governs it. Entries with no rule registered here default to
// "always active" (gateway auth and model-provider api keys have no
// enable/disable surface of their own).
var activenessByID = map[string]activeness{
	"gateway.auth.password":    gatewayAuthPasswordActive,
	"gateway.auth.remoteToken": gatewayAuthRemoteTokenActive,

	"channels.telegram.botToken":         telegramTopBotTokenActive,
	"channels.telegram.accounts.botToken": telegramAccountBotTokenActive,
	"channels.telegram.webhookSecret":         telegramTopWebhookSecretActive,
	"channels.telegram.accounts.webhookSecret": telegramAccountWebhookSecretActive,

	"channels.slack.signingSecret":          slackTopSigningSecretActive,
	"channels.slack.accounts.signingSecret": slackAccountSigningSecretActive,

	"channels.discord.pluralkit.token":                     discordTopSubsurfaceActive([]string{"pluralkit", "token"}, []string{"pluralkit", "enabled"}),
	"channels.discord.accounts.pluralkit.token":             discordAccountSubsurfaceActive([]string{"pluralkit", "token"}, []string{"pluralkit", "enabled"}),
	"channels.discord.voice.tts.elevenlabs.apiKey":          discordTopSubsurfaceActive([]string{"voice", "tts", "elevenlabs", "apiKey"}, []string{"voice", "tts", "elevenlabs", "enabled"}),
	"channels.discord.voice.tts.openai.apiKey":              discordTopSubsurfaceActive([]string{"voice", "tts", "openai", "apiKey"}, []string{"voice", "tts", "openai", "enabled"}),
	"channels.discord.accounts.voice.tts.elevenlabs.apiKey": discordAccountSubsurfaceActive([]string{"voice", "tts", "elevenlabs", "apiKey"}, []string{"voice", "tts", "elevenlabs", "enabled"}),
	"channels.discord.accounts.voice.tts.openai.apiKey":     discordAccountSubsurfaceActive([]string{"voice", "tts", "openai", "apiKey"}, []string{"voice", "tts", "openai", "enabled"}),

	"channels.googlechat.serviceAccount":          channelTopFieldActiveFn("googlechat"),
	"channels.googlechat.accounts.serviceAccount": channelAccountFieldActiveFn("googlechat"),

	"agents.defaults.memorySearch.apiKey": agentsDefaultsMemorySearchActive,
	"agents.memorySearch.apiKey":          agentMemorySearchActive,

	"tools.webSearch.gemini.apiKey":     toolsWebSearchChildActive("gemini"),
	"tools.webSearch.grok.apiKey":       toolsWebSearchChildActive("grok"),
	"tools.webSearch.kimi.apiKey":       toolsWebSearchChildActive("kimi"),
	"tools.webSearch.perplexity.apiKey": toolsWebSearchChildActive("perplexity"),
}

func evaluateActiveness(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	if fn, ok := activenessByID[dt.Entry.ID]; ok {
		return fn(root, dt)
	}
	return true, ""
}

func getBool(root configtree.Node, segments ...string) (bool, bool) {
	v, ok := configtree.GetPath(root, segments)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func getString(root configtree.Node, segments ...string) (string, bool) {
	v, ok := configtree.GetPath(root, segments)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// enabledDefaultTrue reads an "enabled" bool at segments, treating absence
// as true (every optional-feature flag in this registry defaults to on).
func enabledDefaultTrue(root configtree.Node, segments ...string) bool {
	b, ok := getBool(root, segments...)
	if !ok {
		return true
	}
	return b
}

// --- gateway auth -------------------------------------------------------

func gatewayAuthPasswordActive(root configtree.Node, _ registry.DiscoveredTarget) (bool, string) {
	mode, _ := getString(root, "gateway", "auth", "mode")
	if mode != "password" {
		return false, "gateway.auth.mode is not \"password\""
	}
	return true, ""
}

func gatewayAuthRemoteTokenActive(root configtree.Node, _ registry.DiscoveredTarget) (bool, string) {
	remoteEnabled := enabledDefaultTrue(root, "gateway", "auth", "remote", "enabled")
	if !remoteEnabled {
		return false, "gateway.auth.remote is not enabled"
	}
	if _, hasLocal := configtree.GetPath(root, []string{"gateway", "auth", "password"}); hasLocal {
		mode, _ := getString(root, "gateway", "auth", "mode")
		if mode == "password" {
			return false, "a local-mode auth secret is configured, suppressing the remote token"
		}
	}
	return true, ""
}

// --- generic channel top/account inheritance ----------------------------

// channelTopFieldActive implements the shared account-inheritance rule for
// a channel's top-level field: active when there are no accounts (or an
// empty accounts map) and the channel itself is enabled, OR when at least
// one account is enabled and does not itself override the field.
func channelTopFieldActive(root configtree.Node, channel string, fieldPresentAtAccount func(accountID string) bool) (bool, string) {
	channelEnabled := enabledDefaultTrue(root, "channels", channel, "enabled")
	accountsNode, hasAccounts := configtree.GetPath(root, []string{"channels", channel, "accounts"})
	accounts, _ := accountsNode.(map[string]any)
	if !hasAccounts || len(accounts) == 0 {
		if !channelEnabled {
			return false, "channel " + channel + " is disabled"
		}
		return true, ""
	}
	for accountID := range accounts {
		accountEnabled := enabledDefaultTrue(root, "channels", channel, "accounts", accountID, "enabled")
		if channelEnabled && accountEnabled && !fieldPresentAtAccount(accountID) {
			return true, ""
		}
	}
	return false, "every enabled account under " + channel + " overrides this field"
}

func channelTopFieldActiveFn(channel string) activeness {
	return func(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
		return channelTopFieldActive(root, channel, func(accountID string) bool {
			_, present := configtree.GetPath(root, []string{"channels", channel, "accounts", accountID, "serviceAccount"})
			if present {
				return true
			}
			_, present = configtree.GetPath(root, []string{"channels", channel, "accounts", accountID, "serviceAccountRef"})
			return present
		})
	}
}

func channelAccountFieldActive(root configtree.Node, channel, accountID string) (bool, string) {
	channelEnabled := enabledDefaultTrue(root, "channels", channel, "enabled")
	if !channelEnabled {
		return false, "channel " + channel + " is disabled"
	}
	accountEnabled := enabledDefaultTrue(root, "channels", channel, "accounts", accountID, "enabled")
	if !accountEnabled {
		return false, "account " + accountID + " is disabled"
	}
	return true, ""
}

func channelAccountFieldActiveFn(channel string) activeness {
	return func(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
		return channelAccountFieldActive(root, channel, dt.AccountID)
	}
}

// --- telegram -------------------------------------------------------------

func telegramTopBotTokenActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	active, reason := channelTopFieldActive(root, "telegram", func(accountID string) bool {
		_, present := configtree.GetPath(root, []string{"channels", "telegram", "accounts", accountID, "botToken"})
		return present
	})
	if !active {
		return false, reason
	}
	if tokenFile, ok := getString(root, "channels", "telegram", "tokenFile"); ok && tokenFile != "" {
		return false, "channels.telegram.tokenFile is configured, superseding botToken"
	}
	return true, ""
}

func telegramAccountBotTokenActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	return channelAccountFieldActive(root, "telegram", dt.AccountID)
}

func telegramTopWebhookSecretActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	active, reason := channelTopFieldActive(root, "telegram", func(accountID string) bool {
		_, present := configtree.GetPath(root, []string{"channels", "telegram", "accounts", accountID, "webhookSecret"})
		return present
	})
	if !active {
		return false, reason
	}
	url, _ := getString(root, "channels", "telegram", "webhookUrl")
	if url == "" {
		return false, "channels.telegram.webhookUrl is not configured"
	}
	return true, ""
}

func telegramAccountWebhookSecretActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	active, reason := channelAccountFieldActive(root, "telegram", dt.AccountID)
	if !active {
		return false, reason
	}
	url, ok := getString(root, "channels", "telegram", "accounts", dt.AccountID, "webhookUrl")
	if !ok || url == "" {
		url, _ = getString(root, "channels", "telegram", "webhookUrl")
	}
	if url == "" {
		return false, "no webhookUrl configured for this account (and none inherited from the channel)"
	}
	return true, ""
}

// --- slack -----------------------------------------------------------------

func slackTopSigningSecretActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	active, reason := channelTopFieldActive(root, "slack", func(accountID string) bool {
		_, present := configtree.GetPath(root, []string{"channels", "slack", "accounts", accountID, "signingSecret"})
		return present
	})
	if !active {
		return false, reason
	}
	mode, _ := getString(root, "channels", "slack", "mode")
	if mode != "http" {
		return false, "channels.slack.mode is not \"http\""
	}
	return true, ""
}

func slackAccountSigningSecretActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	active, reason := channelAccountFieldActive(root, "slack", dt.AccountID)
	if !active {
		return false, reason
	}
	mode, ok := getString(root, "channels", "slack", "accounts", dt.AccountID, "mode")
	if !ok || mode == "" {
		mode, _ = getString(root, "channels", "slack", "mode")
	}
	if mode != "http" {
		return false, "mode is not \"http\" for this account (and none inherited from the channel)"
	}
	return true, ""
}

// --- discord ---------------------------------------------------------------

// discordTopSubsurfaceActive builds the activeness rule for a top-level
// Discord nested sub-surface (pluralkit, voice.tts.elevenlabs, ...):
// dataField is the secret's own path under "channels.discord" (e.g.
// ["pluralkit","token"]); enabledField is the sibling "enabled" flag's path
// under "channels.discord" gating that sub-surface specifically.
func discordTopSubsurfaceActive(dataField, enabledField []string) activeness {
	return func(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
		active, reason := channelTopFieldActive(root, "discord", func(accountID string) bool {
			full := append([]string{"channels", "discord", "accounts", accountID}, dataField...)
			_, present := configtree.GetPath(root, full)
			return present
		})
		if !active {
			return false, reason
		}
		full := append([]string{"channels", "discord"}, enabledField...)
		if !enabledDefaultTrue(root, full...) {
			return false, "sub-surface " + joinDot(dataField) + " is disabled"
		}
		return true, ""
	}
}

// discordAccountSubsurfaceActive is discordTopSubsurfaceActive's per-account
// counterpart: the account's own enabled flag for this sub-surface, if
// present, overrides; otherwise the top-level flag is inherited.
func discordAccountSubsurfaceActive(dataField, enabledField []string) activeness {
	return func(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
		active, reason := channelAccountFieldActive(root, "discord", dt.AccountID)
		if !active {
			return false, reason
		}
		full := append([]string{"channels", "discord", "accounts", dt.AccountID}, enabledField...)
		if b, ok := getBool(root, full...); ok {
			if !b {
				return false, "sub-surface " + joinDot(dataField) + " is disabled for this account"
			}
			return true, ""
		}
		topFull := append([]string{"channels", "discord"}, enabledField...)
		if !enabledDefaultTrue(root, topFull...) {
			return false, "sub-surface " + joinDot(dataField) + " is disabled at the channel level"
		}
		return true, ""
	}
}

func joinDot(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// --- agents / tools ----------------------------------------------------

func agentsDefaultsMemorySearchActive(root configtree.Node, _ registry.DiscoveredTarget) (bool, string) {
	agentsNode, ok := configtree.GetPath(root, []string{"agents"})
	agents, _ := agentsNode.(map[string]any)
	if !ok || len(agents) == 0 {
		return true, ""
	}
	for agentID, v := range agents {
		if agentID == "defaults" {
			continue
		}
		agentMap, ok := v.(map[string]any)
		if !ok {
			continue
		}
		enabled, hasEnabled := agentMap["enabled"].(bool)
		if hasEnabled && !enabled {
			continue
		}
		if _, overridden := configtree.GetPath(root, []string{"agents", agentID, "memorySearch", "remote", "apiKey"}); !overridden {
			return true, ""
		}
	}
	return false, "every enabled agent overrides memorySearch.remote.apiKey"
}

func agentMemorySearchActive(root configtree.Node, dt registry.DiscoveredTarget) (bool, string) {
	enabled, hasEnabled := getBool(root, "agents", dt.AccountID, "enabled")
	if hasEnabled && !enabled {
		return false, "agent " + dt.AccountID + " is disabled"
	}
	return true, ""
}

func toolsWebSearchChildActive(name string) activeness {
	return func(root configtree.Node, _ registry.DiscoveredTarget) (bool, string) {
		parentEnabled := enabledDefaultTrue(root, "tools", "webSearch", "enabled")
		if !parentEnabled {
			return false, "tools.webSearch is disabled"
		}
		if !enabledDefaultTrue(root, "tools", "webSearch", name, "enabled") {
			return false, "tools.webSearch." + name + " is disabled"
		}
		return true, ""
	}
}
