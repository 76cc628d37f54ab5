package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"aureuma/secrets-gateway/internal/audit"
)

func cmdAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	check := fs.Bool("check", false, "exit non-zero if any finding is present, not only unresolved ones")
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
	in, err := buildAuditInput(settings, deps)
	if err != nil {
		fatal(err)
	}

	result, err := audit.RunSecretsAudit(context.Background(), in)
	if err != nil {
		fatal(err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"status":   result.Status,
			"findings": result.Findings,
		})
		os.Exit(result.ExitCode(*check))
	}

	printAuditResult(result)
	os.Exit(result.ExitCode(*check))
}

func printAuditResult(result audit.Result) {
	switch result.Status {
	case audit.StatusClean:
		successf("clean: no findings")
		return
	case audit.StatusUnresolved:
		warnf("unresolved refs present")
	case audit.StatusFindings:
		warnf("%d finding(s)", len(result.Findings))
	}

	rows := make([][]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		sev := string(f.Severity)
		if f.Severity == audit.SeverityError {
			sev = styleError(sev)
		} else {
			sev = styleWarn(sev)
		}
		rows = append(rows, []string{sev, string(f.Code), f.JSONPath, f.Message})
	}
	printAlignedTable([]string{"severity", "code", "path", "message"}, rows, 2)
}
