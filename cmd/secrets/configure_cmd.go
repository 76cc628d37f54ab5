package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"aureuma/secrets-gateway/internal/configtree"
	"aureuma/secrets-gateway/internal/plan"
	"aureuma/secrets-gateway/internal/registry"
	"aureuma/secrets-gateway/internal/secretref"
)

const defaultPlanOutPath = "secrets-plan.json"

var nonEnvNameChars = regexp.MustCompile(`[^A-Z0-9]+`)

func cmdConfigure(args []string) {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	providersOnly := fs.Bool("providers-only", false, "only ensure a default provider alias exists; propose no secret migrations")
	skipProviderSetup := fs.Bool("skip-provider-setup", false, "skip ensuring a default provider alias exists")
	agent := fs.String("agent", "", "restrict auth-profile migration to this agent id")
	planOut := fs.String("plan-out", "", "write the generated plan to this path")
	applyNow := fs.Bool("apply", false, "apply the generated plan immediately instead of (or in addition to) writing it out")
	yes := fs.Bool("yes", false, "skip the interactive confirmation")
	jsonOut := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)

	settings := loadSettingsOrDefault()
	mainConfig, err := readJSONDocument(settings.Paths.MainConfig)
	if err != nil {
		fatal(err)
	}
	deps, err := buildGatewayDeps(mainConfig)
	if err != nil {
		fatal(err)
	}

	p := &plan.Plan{
		Version:         plan.SupportedVersion,
		ProtocolVersion: plan.SupportedProtocolVersion,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		GeneratedBy:     "secrets configure",
	}

	if !*providersOnly {
		targets, err := buildConfigureTargets(settings, mainConfig, deps, *agent)
		if err != nil {
			fatal(err)
		}
		p.Targets = targets
	}
	if !*skipProviderSetup {
		ensureDefaultEnvProvider(p, mainConfig)
	}

	if err := p.Validate(deps.registry); err != nil {
		fatal(err)
	}

	if len(p.Targets) == 0 && len(p.ProviderUpserts) == 0 {
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string]any{"ok": true, "targets": 0})
			return
		}
		successf("nothing to configure: no plaintext secrets found")
		return
	}

	if !*jsonOut {
		printConfigurePlan(p)
	}

	if !*yes {
		confirmed, ok := confirmYN(fmt.Sprintf("Write/apply a plan migrating %d target(s)?", len(p.Targets)), true)
		if !ok || !confirmed {
			if !*jsonOut {
				warnf("aborted")
			}
			os.Exit(1)
		}
	}

	outPath := *planOut
	if outPath == "" && !*applyNow {
		outPath = defaultPlanOutPath
	}
	if outPath != "" {
		raw, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(outPath, raw, 0o600); err != nil {
			fatal(err)
		}
		if !*jsonOut {
			infof("wrote plan to %s", outPath)
		}
	}

	if *applyNow {
		result, err := applyPlan(settings, p, false)
		if err != nil {
			fatal(err)
		}
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string]any{"ok": true, "changedFiles": result.ChangedFiles, "warnings": result.Warnings})
			return
		}
		successf("applied: changed %d file(s)", len(result.ChangedFiles))
		return
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"ok": true, "targets": len(p.Targets), "planPath": outPath})
	}
}

// buildConfigureTargets walks every includeInConfigure registry entry over
// the main config and, when --agent is set, over that single agent's
// auth-profile store, proposing an env-provider ref for each plaintext
// value it finds still in place.
func buildConfigureTargets(settings Settings, mainConfig configtree.Node, deps *gatewayDeps, agentFilter string) ([]plan.Target, error) {
	var targets []plan.Target

	configIDs := includeInConfigureIDs(deps.registry, registry.ConfigFileMain)
	for _, dt := range deps.registry.DiscoverConfigSecretTargets(mainConfig, configIDs) {
		if t, ok := configureTargetFor(dt, ""); ok {
			targets = append(targets, t)
		}
	}

	agentStores, err := loadAgentStores(settings, mainConfig)
	if err != nil {
		return nil, err
	}
	authIDs := includeInConfigureIDs(deps.registry, registry.ConfigFileAuthProfile)
	for _, as := range agentStores {
		if agentFilter != "" && as.AgentDir != agentFilter {
			continue
		}
		for _, dt := range deps.registry.DiscoverAuthProfileSecretTargets(as.Store, authIDs) {
			if t, ok := configureTargetFor(dt, as.AgentDir); ok {
				targets = append(targets, t)
			}
		}
	}
	return targets, nil
}

// configureTargetFor inspects one discovered location and, if it still
// holds plaintext (not already a ref), proposes migrating it to an env
// provider ref named after its path.
func configureTargetFor(dt registry.DiscoveredTarget, agentID string) (plan.Target, bool) {
	switch dt.Entry.SecretShape {
	case registry.ShapeSecretInput:
		if _, isRef := secretref.CoerceSecretRef(dt.Value, secretref.Defaults{}); isRef {
			return plan.Target{}, false
		}
		s, ok := dt.Value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return plan.Target{}, false
		}
	case registry.ShapeSiblingRef:
		if dt.RefValue != nil {
			return plan.Target{}, false
		}
		s, ok := dt.Value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return plan.Target{}, false
		}
	default:
		return plan.Target{}, false
	}

	ref := secretref.Ref{Source: secretref.SourceEnv, Provider: "env", ID: envNameFor(dt.Path)}
	return plan.Target{
		Type:         dt.Entry.ID,
		Path:         dt.Path,
		PathSegments: dt.PathSegments,
		Ref:          &ref,
		AgentID:      agentID,
	}, true
}

func envNameFor(path string) string {
	upper := strings.ToUpper(path)
	return strings.Trim(nonEnvNameChars.ReplaceAllString(upper, "_"), "_")
}

func includeInConfigureIDs(reg *registry.Registry, cf registry.ConfigFile) map[string]bool {
	ids := map[string]bool{}
	all := true
	for _, e := range reg.Entries() {
		if e.ConfigFile != cf {
			continue
		}
		if e.IncludeInConfigure {
			ids[e.ID] = true
		} else {
			all = false
		}
	}
	if all {
		return nil
	}
	return ids
}

// ensureDefaultEnvProvider adds a providerUpsert for the "env" provider
// alias when the main config doesn't already declare one, so a freshly
// configured gateway always has at least one working provider.
func ensureDefaultEnvProvider(p *plan.Plan, mainConfig configtree.Node) {
	if raw, ok := configtree.GetPath(mainConfig, []string{"secrets", "providers", "env"}); ok && raw != nil {
		return
	}
	spec, err := json.Marshal(map[string]any{"source": "env"})
	if err != nil {
		return
	}
	if p.ProviderUpserts == nil {
		p.ProviderUpserts = map[string]json.RawMessage{}
	}
	p.ProviderUpserts["env"] = spec
}

func printConfigurePlan(p *plan.Plan) {
	if len(p.Targets) == 0 {
		infof("no secret migrations proposed")
	} else {
		infof("proposed %d migration(s):", len(p.Targets))
		rows := make([][]string, 0, len(p.Targets))
		for _, t := range p.Targets {
			id := ""
			if t.Ref != nil {
				id = t.Ref.Provider + ":" + t.Ref.ID
			}
			rows = append(rows, []string{t.Path, t.AgentID, id})
		}
		printAlignedTable([]string{"path", "agent", "ref"}, rows, 2)
	}
	for alias := range p.ProviderUpserts {
		infof("will ensure provider %q is configured", alias)
	}
}
