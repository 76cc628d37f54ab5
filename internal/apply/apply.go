// Package apply implements the apply engine (spec component C9): it
// projects a validated plan into an in-memory patch over the main config,
// per-agent auth-profile stores, the legacy auth store, and .env, runs a
// preflight resolution to make sure the result actually activates, then
// commits every touched file atomically with best-effort rollback.
package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/dotenv"
	"aureuma/secrets-gateway/internal/plan"
	"aureuma/secrets-gateway/internal/providers"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/resolver"
	"aureuma/secrets-gateway/internal/secretref"
)

// AuthStoreFile pairs one agent's auth-profile store document with the path
// it should be (re)written to.
type AuthStoreFile struct {
	AgentID string
	Path    string
	Store   configtree.Node
}

// Input bundles every on-disk surface the apply engine may touch, already
// loaded into memory by the caller (cmd/secrets owns file discovery and
// decoding; this package only ever mutates and rewrites the documents it's
// handed).
type Input struct {
	Plan      *plan.Plan
	Registry  *registry.Registry
	Providers providers.Registry
	Limits    providers.Limits

	MainConfig     configtree.Node
	MainConfigPath string

	// AuthStores holds every agent store the plan references, keyed by
	// agentId. CreateAuthStore is called when a plan target names an
	// agentId with no existing entry here.
	AuthStores      map[string]*AuthStoreFile
	CreateAuthStore func(agentID string) (*AuthStoreFile, error)

	LegacyAuthStore     map[string]any
	LegacyAuthStorePath string

	Dotenv     *dotenv.File
	DotenvPath string
	// KnownEnvSecretVars names the .env keys scrubDotenv is willing to
	// touch, the same list the audit engine is handed.
	KnownEnvSecretVars []string

	DryRun bool

	// Logger receives apply diagnostics (targets applied, scrub warnings,
	// commit/rollback outcome). Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Result is Apply's output: which files changed (or would change, in dry
// run), and any non-fatal warnings collected along the way (oauth residue
// left behind by a provider-target scrub, most notably).
type Result struct {
	ChangedFiles []string
	Warnings     []string
	DryRun       bool
}

// Apply runs the projection/commit sequence: clone the on-disk config,
// project the plan's targets and provider changes onto it, scrub any
// plaintext the plan migrated away, preflight-resolve the result, then
// commit every touched file. On any preflight or commit failure it returns
// a non-nil error and, for commit failures, has already attempted to
// restore every file it had begun writing from its pre-apply snapshot.
func Apply(ctx context.Context, in Input) (Result, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := in.Plan.Validate(in.Registry); err != nil {
		return Result{}, err
	}
	opts := in.Plan.Options.Normalize()

	nextConfig := configtree.Clone(in.MainConfig).(map[string]any)
	scrubbedValues := map[string]bool{}
	providerTargets := map[string]bool{}
	var warnings []string
	changedAuthStores := map[string]bool{}

	applyProviderUpserts(nextConfig, in.Plan.ProviderUpserts)
	applyProviderDeletes(nextConfig, in.Plan.ProviderDeletes)

	for i, t := range in.Plan.Targets {
		resolved, ok := in.Registry.ResolvePlanTargetAgainstRegistry(registry.PlanTargetQuery{
			Type:         t.Type,
			PathSegments: t.PathSegments,
			ProviderID:   t.ProviderID,
			AccountID:    t.AccountID,
		})
		if !ok {
			return Result{}, fmt.Errorf("apply: targets[%d]: %q does not resolve against the registry", i, t.Type)
		}

		var doc configtree.Node
		if resolved.Entry.ConfigFile == registry.ConfigFileAuthProfile {
			store, err := ensureAuthStore(&in, t.AgentID)
			if err != nil {
				return Result{}, fmt.Errorf("apply: targets[%d]: %w", i, err)
			}
			if err := ensureProfileObject(store.Store, t, resolved.Entry); err != nil {
				return Result{}, fmt.Errorf("apply: targets[%d]: %w", i, err)
			}
			doc = store.Store
			changedAuthStores[t.AgentID] = true
		} else {
			doc = nextConfig
		}

		prior, _ := configtree.GetPath(doc, t.PathSegments)
		if priorStr, ok := prior.(string); ok && priorStr != "" {
			scrubbedValues[priorStr] = true
		}

		if resolved.Entry.SecretShape == registry.ShapeSiblingRef {
			if t.Ref == nil {
				return Result{}, fmt.Errorf("apply: targets[%d]: sibling_ref target requires ref", i)
			}
			refNode := refToNode(*t.Ref)
			if _, err := configtree.SetPathCreateStrict(doc, resolved.RefPathSegments, refNode); err != nil {
				return Result{}, fmt.Errorf("apply: targets[%d]: writing ref: %w", i, err)
			}
			if _, err := configtree.DeletePathStrict(doc, t.PathSegments); err != nil && err != configtree.ErrNotFound {
				return Result{}, fmt.Errorf("apply: targets[%d]: deleting plaintext: %w", i, err)
			}
		} else {
			var value configtree.Node
			if t.Ref != nil {
				value = refToNode(*t.Ref)
			}
			if _, err := configtree.SetPathCreateStrict(doc, t.PathSegments, value); err != nil {
				return Result{}, fmt.Errorf("apply: targets[%d]: writing value: %w", i, err)
			}
		}

		if resolved.Entry.TrackProviderShadowing {
			providerID := normalizedProviderID(resolved.Entry, t)
			if providerID != "" {
				providerTargets[providerID] = true
			}
		}
	}

	if *opts.ScrubAuthProfilesForProviderTargets && len(providerTargets) > 0 {
		for agentID, store := range in.AuthStores {
			if scrubAuthProfilesForProviders(in.Registry, store.Store, providerTargets, scrubbedValues, &warnings) {
				changedAuthStores[agentID] = true
			}
		}
	}

	if *opts.ScrubLegacyAuthJSON && in.LegacyAuthStore != nil {
		scrubLegacyAuthStore(in.LegacyAuthStore, scrubbedValues)
	}

	dotenvChanged := false
	if *opts.ScrubEnv && in.Dotenv != nil {
		before := string(in.Dotenv.Bytes())
		scrubDotenv(in.Dotenv, in.KnownEnvSecretVars, scrubbedValues)
		dotenvChanged = string(in.Dotenv.Bytes()) != before
	}

	if err := preflight(ctx, in, nextConfig); err != nil {
		logger.Warn("apply preflight failed", "targets", len(in.Plan.Targets), "error", err)
		return Result{}, fmt.Errorf("apply: preflight: %w", err)
	}
	for _, w := range warnings {
		logger.Warn("apply scrub warning", "warning", w)
	}

	writeLegacy := *opts.ScrubLegacyAuthJSON && in.LegacyAuthStore != nil
	writeDotenv := dotenvChanged

	changed := []string{in.MainConfigPath}
	for agentID := range changedAuthStores {
		if store := in.AuthStores[agentID]; store != nil {
			changed = append(changed, store.Path)
		}
	}
	if writeLegacy {
		changed = append(changed, in.LegacyAuthStorePath)
	}
	if writeDotenv {
		changed = append(changed, in.DotenvPath)
	}

	if in.DryRun {
		logger.Info("apply dry run ok", "changedFiles", len(changed), "targets", len(in.Plan.Targets))
		return Result{ChangedFiles: changed, Warnings: warnings, DryRun: true}, nil
	}

	if err := commit(in, nextConfig, changedAuthStores, writeLegacy, writeDotenv); err != nil {
		logger.Error("apply commit failed, rolled back", "error", err)
		return Result{}, err
	}
	logger.Info("apply committed", "changedFiles", changed, "targets", len(in.Plan.Targets))
	return Result{ChangedFiles: changed, Warnings: warnings}, nil
}

func refToNode(ref secretref.Ref) map[string]any {
	return map[string]any{"source": string(ref.Source), "provider": ref.Provider, "id": ref.ID}
}

func ensureAuthStore(in *Input, agentID string) (*AuthStoreFile, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agentId is required for an auth-profile target")
	}
	if store, ok := in.AuthStores[agentID]; ok {
		return store, nil
	}
	if in.CreateAuthStore == nil {
		return nil, fmt.Errorf("no auth-profile store loaded for agent %q", agentID)
	}
	store, err := in.CreateAuthStore(agentID)
	if err != nil {
		return nil, fmt.Errorf("creating auth-profile store for agent %q: %w", agentID, err)
	}
	if in.AuthStores == nil {
		in.AuthStores = map[string]*AuthStoreFile{}
	}
	in.AuthStores[agentID] = store
	return store, nil
}

// ensureProfileObject makes sure the profile object t.PathSegments[:len-1]
// names exists with the expected type/provider, refusing to silently
// reinterpret an existing profile of a different type.
func ensureProfileObject(store configtree.Node, t plan.Target, entry *registry.Entry) error {
	profileSegs := t.PathSegments[:len(t.PathSegments)-1]
	existing, ok := configtree.GetPath(store, profileSegs)
	if ok {
		m, isMap := existing.(map[string]any)
		if !isMap {
			return fmt.Errorf("profile at %v is not an object", profileSegs)
		}
		if existingType, _ := m["type"].(string); existingType != "" && existingType != entry.AuthProfileType {
			return fmt.Errorf("profile at %v already has type %q, refusing to reinterpret as %q", profileSegs, existingType, entry.AuthProfileType)
		}
		return nil
	}
	if t.AuthProfileProvider == "" {
		return fmt.Errorf("authProfileProvider is required to create a new profile at %v", profileSegs)
	}
	fresh := map[string]any{"type": entry.AuthProfileType, "provider": t.AuthProfileProvider}
	_, err := configtree.SetPathCreateStrict(store, profileSegs, fresh)
	return err
}

// normalizedProviderID mirrors the audit engine's shadowIdentity: a dynamic
// provider-id capture when the entry declares one, else the channel-name
// path segment for fixed-provider entries like googlechat's. The capture
// index is into the pattern's wildcard/array captures, not the raw path
// segments, so the target's path is re-matched against the entry's compiled
// pattern to recover them — the same captures the registry itself derived
// when it resolved this target, just not threaded back out of
// ResolvePlanTargetAgainstRegistry's return value.
func normalizedProviderID(entry *registry.Entry, t plan.Target) string {
	if t.ProviderID != nil {
		return *t.ProviderID
	}
	if entry.ProviderIDSegmentIndex != nil {
		if captures, ok := configtree.MatchSegments(entry.PathTokens, t.PathSegments); ok {
			idx := *entry.ProviderIDSegmentIndex
			if idx >= 0 && idx < len(captures) {
				return captures[idx]
			}
		}
		return ""
	}
	if len(t.PathSegments) >= 2 {
		return t.PathSegments[1]
	}
	return ""
}

// scrubAuthProfilesForProviders strips the value and ref fields of every
// api_key/token/oauth profile whose provider matches providerTargets,
// recording removed plaintext into scrubbedValues and warning on oauth
// residue. Reports whether it changed the store.
func scrubAuthProfilesForProviders(reg *registry.Registry, store configtree.Node, providerTargets map[string]bool, scrubbedValues map[string]bool, warnings *[]string) bool {
	changed := false
	for _, dt := range reg.DiscoverAuthProfileSecretTargets(store, nil) {
		switch dt.Entry.AuthProfileType {
		case "api_key", "token", "oauth":
		default:
			continue
		}
		if !matchesDeclaredProfileType(store, dt) {
			continue
		}
		profileID, _ := secretref.ProfileProviderKey(dt.ProviderID)
		if !providerTargets[profileID] {
			continue
		}
		if plaintext, ok := dt.Value.(string); ok && plaintext != "" {
			scrubbedValues[plaintext] = true
		}
		if _, err := configtree.DeletePathStrict(store, dt.PathSegments); err == nil {
			changed = true
		}
		if dt.RefPath != "" {
			if _, err := configtree.DeletePathStrict(store, dt.RefPathSegments); err == nil {
				changed = true
			}
		}
		if dt.Entry.AuthProfileType == "oauth" {
			*warnings = append(*warnings, fmt.Sprintf("%s: oauth credential for provider %q left residual after scrub", dt.Path, profileID))
		}
	}
	return changed
}

// matchesDeclaredProfileType reports whether dt's profile actually declares
// the type dt.Entry.AuthProfileType expects. Duplicated from the audit
// engine's identically-named helper rather than exported, since pattern
// matching alone would still discover a "token" field sitting on a
// differently-typed (or malformed) profile object; the stored "type" is
// the only authoritative signal.
func matchesDeclaredProfileType(store configtree.Node, dt registry.DiscoveredTarget) bool {
	typeSegs := append(append([]string{}, dt.PathSegments[:len(dt.PathSegments)-1]...), "type")
	profileType, _ := configtree.GetPath(store, typeSegs)
	s, ok := profileType.(string)
	return ok && s == dt.Entry.AuthProfileType
}

func scrubLegacyAuthStore(store map[string]any, scrubbedValues map[string]bool) {
	for providerID, v := range store {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := entry["type"].(string); t != "api_key" {
			continue
		}
		if key, _ := entry["key"].(string); key != "" {
			scrubbedValues[key] = true
		}
		delete(store, providerID)
	}
}

// scrubDotenv removes every known secret variable whose current value was
// just written elsewhere as a ref (i.e. is present in scrubbedValues),
// leaving variables with unrelated values untouched.
func scrubDotenv(f *dotenv.File, knownEnvSecretVars []string, scrubbedValues map[string]bool) {
	for _, name := range knownEnvSecretVars {
		if value, ok := f.Lookup(name); ok && scrubbedValues[value] {
			f.Delete(name)
		}
	}
}

func applyProviderUpserts(nextConfig map[string]any, upserts map[string]json.RawMessage) {
	if len(upserts) == 0 {
		return
	}
	providersNode := ensureProvidersMap(nextConfig)
	for alias, raw := range upserts {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			continue
		}
		if existing, ok := providersNode[alias]; ok && configtree.Equal(existing, decoded) {
			continue
		}
		providersNode[alias] = decoded
	}
}

func applyProviderDeletes(nextConfig map[string]any, deletes []string) {
	if len(deletes) == 0 {
		return
	}
	providersNode := ensureProvidersMap(nextConfig)
	for _, alias := range deletes {
		delete(providersNode, alias)
	}
}

func ensureProvidersMap(nextConfig map[string]any) map[string]any {
	secrets, ok := nextConfig["secrets"].(map[string]any)
	if !ok {
		secrets = map[string]any{}
		nextConfig["secrets"] = secrets
	}
	providersNode, ok := secrets["providers"].(map[string]any)
	if !ok {
		providersNode = map[string]any{}
		secrets["providers"] = providersNode
	}
	return providersNode
}

// preflight resolves every plan target's ref through the providers, failing
// on the first one that does not resolve, then runs the full resolver
// against a scratch clone of nextConfig and the touched auth stores. The
// plan refs are checked for resolution only; value shapes are checked by the
// resolver pass, for the targets on active surfaces. Nothing here is
// persisted: a successful preflight only proves nextConfig (still holding
// refs, not resolved values) would activate cleanly; the resolved clones are
// discarded once checked.
func preflight(ctx context.Context, in Input, nextConfig map[string]any) error {
	var refs []secretref.Ref
	for _, t := range in.Plan.Targets {
		if t.Ref != nil {
			refs = append(refs, *t.Ref)
		}
	}
	planRefs, err := providers.ResolveAll(ctx, in.Providers, refs, in.Limits)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if e := planRefs.Errors[ref.Key()]; e != nil {
			return fmt.Errorf("plan ref %s does not resolve: %w", ref.Key(), e)
		}
	}

	resolvedConfig := configtree.Clone(nextConfig).(map[string]any)
	authStores := make(map[string]configtree.Node, len(in.AuthStores))
	for agentID, store := range in.AuthStores {
		authStores[agentID] = configtree.Clone(store.Store)
	}

	result, err := resolver.Prepare(ctx, resolver.PrepareInput{
		Registry:       in.Registry,
		Providers:      in.Providers,
		Limits:         in.Limits,
		ResolvedConfig: resolvedConfig,
		AuthStores:     authStores,
	})
	if err != nil {
		return err
	}
	if !result.OK {
		var first error
		for _, e := range result.Failed {
			first = e
			break
		}
		return fmt.Errorf("%d target(s) would fail to resolve after this plan, e.g. %w", len(result.Failed), first)
	}
	return nil
}

// commit snapshots every file about to change, writes them all, and on any
// write error restores every snapshot taken so far before propagating the
// original error.
func commit(in Input, nextConfig map[string]any, changedAuthStores map[string]bool, writeLegacy, writeDotenv bool) error {
	type snapshot struct {
		path    string
		content []byte
		existed bool
	}
	var snapshots []snapshot
	snapshotOf := func(path string) (snapshot, error) {
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return snapshot{path: path, existed: false}, nil
		}
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{path: path, content: content, existed: true}, nil
	}

	paths := []string{in.MainConfigPath}
	for agentID := range changedAuthStores {
		if store := in.AuthStores[agentID]; store != nil {
			paths = append(paths, store.Path)
		}
	}
	if writeLegacy {
		paths = append(paths, in.LegacyAuthStorePath)
	}
	if writeDotenv {
		paths = append(paths, in.DotenvPath)
	}
	for _, p := range paths {
		snap, err := snapshotOf(p)
		if err != nil {
			return fmt.Errorf("apply: snapshotting %s: %w", p, err)
		}
		snapshots = append(snapshots, snap)
	}

	rollback := func() {
		for _, s := range snapshots {
			if !s.existed {
				_ = os.Remove(s.path)
				continue
			}
			_ = writeAtomicJSONBytes(s.path, s.content)
		}
	}

	if err := writeAtomicJSON(in.MainConfigPath, nextConfig); err != nil {
		rollback()
		return fmt.Errorf("apply: writing main config: %w", err)
	}
	for agentID := range changedAuthStores {
		store := in.AuthStores[agentID]
		if store == nil {
			continue
		}
		if err := writeAtomicJSON(store.Path, store.Store); err != nil {
			rollback()
			return fmt.Errorf("apply: writing auth-profile store for %s: %w", agentID, err)
		}
	}
	if writeLegacy {
		if err := writeAtomicJSON(in.LegacyAuthStorePath, in.LegacyAuthStore); err != nil {
			rollback()
			return fmt.Errorf("apply: writing legacy auth store: %w", err)
		}
	}
	if writeDotenv {
		if err := dotenv.WriteAtomic(in.DotenvPath, in.Dotenv.Bytes()); err != nil {
			rollback()
			return fmt.Errorf("apply: writing .env: %w", err)
		}
	}
	return nil
}

// writeAtomicJSON marshals v and writes it to path via temp-file-then-rename
// in the same directory with mode 0o600.
func writeAtomicJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	return writeAtomicJSONBytes(path, raw)
}

func writeAtomicJSONBytes(path string, raw []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".apply-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
