package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"aureuma/secrets-gateway/internal/apply"
	"aureuma/secrets-gateway/internal/plan"
)

func cmdApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	from := fs.String("from", "", "plan file to apply")
	dryRun := fs.Bool("dry-run", false, "project and preflight the plan without writing any file")
	yes := fs.Bool("yes", false, "skip the interactive confirmation")
	jsonOut := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)

	if *from == "" {
		printUsage("secrets apply --from <plan> [--dry-run] [--yes] [--json]")
		os.Exit(1)
	}

	if !*dryRun && !*yes && !*jsonOut {
		confirmed, ok := confirmYN(fmt.Sprintf("Apply plan %q to the live configuration?", *from), false)
		if !ok || !confirmed {
			warnf("aborted")
			os.Exit(1)
		}
	}

	settings := loadSettingsOrDefault()
	result, err := runApply(settings, *from, *dryRun)
	if err != nil {
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string]any{"ok": false, "error": err.Error()})
			os.Exit(1)
		}
		fatal(err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"ok":           true,
			"dryRun":       result.DryRun,
			"changedFiles": result.ChangedFiles,
			"warnings":     result.Warnings,
		})
		return
	}

	for _, w := range result.Warnings {
		warnf("%s", w)
	}
	if result.DryRun {
		successf("dry run ok: would change %d file(s)", len(result.ChangedFiles))
	} else {
		successf("applied: changed %d file(s)", len(result.ChangedFiles))
	}
	for _, f := range result.ChangedFiles {
		infof("  %s", f)
	}
}

func runApply(settings Settings, planPath string, dryRun bool) (apply.Result, error) {
	raw, err := os.ReadFile(planPath)
	if err != nil {
		return apply.Result{}, err
	}
	p, err := plan.Parse(raw)
	if err != nil {
		return apply.Result{}, err
	}
	return applyPlan(settings, p, dryRun)
}

// applyPlan validates p against the live registry and projects/commits it.
// Shared by "secrets apply --from" (plan read from disk) and "secrets
// configure --apply" (plan built in-process), so both go through identical
// validation and file wiring.
func applyPlan(settings Settings, p *plan.Plan, dryRun bool) (apply.Result, error) {
	mainConfig, err := readJSONDocument(settings.Paths.MainConfig)
	if err != nil {
		return apply.Result{}, err
	}
	deps, err := buildGatewayDeps(mainConfig)
	if err != nil {
		return apply.Result{}, err
	}
	if err := p.Validate(deps.registry); err != nil {
		return apply.Result{}, err
	}

	agentStores, err := loadAgentStores(settings, mainConfig)
	if err != nil {
		return apply.Result{}, err
	}
	authStores := make(map[string]*apply.AuthStoreFile, len(agentStores))
	for _, as := range agentStores {
		authStores[as.AgentDir] = &apply.AuthStoreFile{
			AgentID: as.AgentDir,
			Path:    agentStorePath(settings, mainConfig, as.AgentDir),
			Store:   as.Store,
		}
	}

	legacy, err := loadLegacyAuthStore(settings)
	if err != nil {
		return apply.Result{}, err
	}
	env, err := loadDotenv(settings)
	if err != nil {
		return apply.Result{}, err
	}

	in := apply.Input{
		Plan:           p,
		Registry:       deps.registry,
		Providers:      deps.providers,
		Limits:         deps.limits,
		MainConfig:     mainConfig,
		MainConfigPath: settings.Paths.MainConfig,
		AuthStores:     authStores,
		CreateAuthStore: func(agentID string) (*apply.AuthStoreFile, error) {
			return &apply.AuthStoreFile{
				AgentID: agentID,
				Path:    agentStorePath(settings, mainConfig, agentID),
				Store:   map[string]any{"version": float64(1), "profiles": map[string]any{}},
			}, nil
		},
		LegacyAuthStore:     legacy,
		LegacyAuthStorePath: settings.Paths.LegacyAuthStore,
		KnownEnvSecretVars:  settings.Paths.KnownEnvSecrets,
		DryRun:              dryRun,
	}
	if env != nil {
		in.Dotenv = env
		in.DotenvPath = settings.Paths.Dotenv
	}

	return apply.Apply(context.Background(), in)
}
