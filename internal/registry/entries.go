package registry

// DefaultEntries is the full set of target registry entries for this
// gateway's configuration surface. Ordering mirrors the top-level shape of
// the configuration tree: gateway auth, then each channel, then agents and
// tools, then the auth-profile store entries. Compile(DefaultEntries) is
// called once at process startup by the resolver's prepare path.
var DefaultEntries = []Entry{
	// --- gateway auth -----------------------------------------------------
	{
		ID:                    "gateway.auth.password",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "gateway.auth.password",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "gateway.auth.remoteToken",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "gateway.auth.remote.token",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- channels: telegram -------------------------------------------------
	{
		ID:                    "channels.telegram.botToken",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.telegram.botToken",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                     "channels.telegram.accounts.botToken",
		ConfigFile:             ConfigFileMain,
		PathPattern:            "channels.telegram.accounts.*.botToken",
		SecretShape:            ShapeSecretInput,
		ExpectedResolvedValue:  ExpectedString,
		AccountIDSegmentIndex:  intPtr(0),
		IncludeInPlan:          true,
		IncludeInConfigure:     true,
		IncludeInAudit:         true,
	},
	{
		ID:                    "channels.telegram.webhookSecret",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.telegram.webhookSecret",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.telegram.accounts.webhookSecret",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.telegram.accounts.*.webhookSecret",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- channels: slack -----------------------------------------------------
	{
		ID:                    "channels.slack.signingSecret",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.slack.signingSecret",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.slack.accounts.signingSecret",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.slack.accounts.*.signingSecret",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- channels: discord -----------------------------------------------------
	{
		ID:                    "channels.discord.pluralkit.token",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.pluralkit.token",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.discord.accounts.pluralkit.token",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.accounts.*.pluralkit.token",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.discord.voice.tts.elevenlabs.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.voice.tts.elevenlabs.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.discord.voice.tts.openai.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.voice.tts.openai.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.discord.accounts.voice.tts.elevenlabs.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.accounts.*.voice.tts.elevenlabs.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "channels.discord.accounts.voice.tts.openai.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.discord.accounts.*.voice.tts.openai.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- channels: google chat -----------------------------------------------------
	{
		ID:                    "channels.googlechat.serviceAccount",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.googlechat.serviceAccount",
		RefPathPattern:        "channels.googlechat.serviceAccountRef",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedStringOrObject,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
		TrackProviderShadowing: true,
	},
	{
		ID:                    "channels.googlechat.accounts.serviceAccount",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "channels.googlechat.accounts.*.serviceAccount",
		RefPathPattern:        "channels.googlechat.accounts.*.serviceAccountRef",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedStringOrObject,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
		TrackProviderShadowing: true,
	},

	// --- agents: memory search -----------------------------------------------------
	{
		ID:                    "agents.defaults.memorySearch.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "agents.defaults.memorySearch.remote.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "agents.memorySearch.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "agents.*.memorySearch.remote.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		AccountIDSegmentIndex: intPtr(0),
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- tools: web search -----------------------------------------------------
	{
		ID:                    "tools.webSearch.gemini.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "tools.webSearch.gemini.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "tools.webSearch.grok.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "tools.webSearch.grok.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "tools.webSearch.kimi.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "tools.webSearch.kimi.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},
	{
		ID:                    "tools.webSearch.perplexity.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "tools.webSearch.perplexity.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		IncludeInPlan:         true,
		IncludeInConfigure:    true,
		IncludeInAudit:        true,
	},

	// --- secrets providers: generic model/provider api keys -----------------
	{
		ID:                    "models.providers.apiKey",
		ConfigFile:            ConfigFileMain,
		PathPattern:           "models.providers.*.apiKey",
		SecretShape:           ShapeSecretInput,
		ExpectedResolvedValue: ExpectedString,
		ProviderIDSegmentIndex: intPtr(0),
		IncludeInPlan:          true,
		IncludeInConfigure:     true,
		IncludeInAudit:         true,
	},

	// --- auth-profile store (per agent) --------------------------------------
	{
		ID:                    "auth-profiles.api_key.key",
		ConfigFile:            ConfigFileAuthProfile,
		PathPattern:           "profiles.*.key",
		RefPathPattern:        "profiles.*.keyRef",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedString,
		AuthProfileType:       "api_key",
		ProviderIDSegmentIndex: intPtr(0),
		IncludeInPlan:          true,
		IncludeInConfigure:     true,
		IncludeInAudit:         true,
		TrackProviderShadowing: true,
	},
	{
		ID:                    "auth-profiles.token.token",
		ConfigFile:            ConfigFileAuthProfile,
		PathPattern:           "profiles.*.token",
		RefPathPattern:        "profiles.*.tokenRef",
		SecretShape:           ShapeSiblingRef,
		ExpectedResolvedValue: ExpectedString,
		AuthProfileType:       "token",
		ProviderIDSegmentIndex: intPtr(0),
		IncludeInPlan:          true,
		IncludeInConfigure:     true,
		IncludeInAudit:         true,
		TrackProviderShadowing: true,
	},

	// oauth profiles (type:"oauth") have no registry entry: they are
	// recognized by the auth-profile store's shape but out-of-scope for
	// ref resolution, so nothing here ever matches or resolves one.
}
