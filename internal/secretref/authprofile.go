package secretref

// Store is the decoded shape of one agent's auth-profiles.json:
// {version, profiles:{[id]:{type, provider, ...}}, order?, lastGood?,
// usageStats?}. Profile bodies are kept as raw maps (not further typed)
// since their shape varies by Type and the registry's path patterns, not a
// Go struct, are what give meaning to their fields.
type Store struct {
	Version     int                       `json:"version"`
	Profiles    map[string]map[string]any `json:"profiles"`
	Order       []string                  `json:"order,omitempty"`
	LastGood    string                    `json:"lastGood,omitempty"`
	UsageStats  map[string]any            `json:"usageStats,omitempty"`
}

// ProfileType names the auth-profile store's three recognized shapes.
// api_key and token each have a resolvable secret field (key/keyRef and
// token/tokenRef respectively); oauth is recognized but carries no
// registry entry of its own — it is out-of-scope for ref resolution.
type ProfileType string

const (
	ProfileTypeAPIKey ProfileType = "api_key"
	ProfileTypeToken  ProfileType = "token"
	ProfileTypeOAuth  ProfileType = "oauth"
)

// AsNode exposes the store as a configtree.Node-compatible value so the
// path engine and registry discovery can walk it uniformly with the main
// configuration tree. The returned map aliases s.Profiles, so mutations
// through the path engine are visible on s after a round trip through
// ToMap/FromMap.
func (s *Store) ToMap() map[string]any {
	profiles := make(map[string]any, len(s.Profiles))
	for id, p := range s.Profiles {
		profiles[id] = p
	}
	out := map[string]any{
		"version":  float64(s.Version),
		"profiles": profiles,
	}
	if len(s.Order) > 0 {
		order := make([]any, len(s.Order))
		for i, id := range s.Order {
			order[i] = id
		}
		out["order"] = order
	}
	if s.LastGood != "" {
		out["lastGood"] = s.LastGood
	}
	if s.UsageStats != nil {
		out["usageStats"] = s.UsageStats
	}
	return out
}

// FromMap rebuilds a Store from a configtree.Node previously produced by
// ToMap (and possibly mutated in place by the path engine). It returns
// false if m isn't shaped like a store document.
func FromMap(m map[string]any) (*Store, bool) {
	profilesRaw, ok := m["profiles"].(map[string]any)
	if !ok {
		return nil, false
	}
	profiles := make(map[string]map[string]any, len(profilesRaw))
	for id, v := range profilesRaw {
		pm, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		profiles[id] = pm
	}
	s := &Store{Profiles: profiles}
	if v, ok := m["version"].(float64); ok {
		s.Version = int(v)
	}
	if orderRaw, ok := m["order"].([]any); ok {
		for _, o := range orderRaw {
			if id, ok := o.(string); ok {
				s.Order = append(s.Order, id)
			}
		}
	}
	if lg, ok := m["lastGood"].(string); ok {
		s.LastGood = lg
	}
	if us, ok := m["usageStats"].(map[string]any); ok {
		s.UsageStats = us
	}
	return s, true
}

// ProfileProviderKey returns the "<providerId>:<accountId>" style profile
// id the registry's wildcard captures discover profiles under, splitting on
// the first colon. accountId is empty for profiles with no account suffix.
func ProfileProviderKey(profileID string) (providerID, accountID string) {
	for i := 0; i < len(profileID); i++ {
		if profileID[i] == ':' {
			return profileID[:i], profileID[i+1:]
		}
	}
	return profileID, ""
}
