package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"aureuma/secrets-gateway/internal/gatewayrpc"
)

func cmdReload(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)

	settings := loadSettingsOrDefault()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := gatewayrpc.DialWS(ctx, settings.Gateway.URL)
	if err != nil {
		fatal(fmt.Errorf("reload: dial %s: %w", settings.Gateway.URL, err))
	}
	defer conn.Close()

	var result gatewayrpc.ReloadResult
	callErr := conn.Call(ctx, gatewayrpc.MethodReload, gatewayrpc.ReloadParams{}, &result)

	if *jsonOut {
		payload := map[string]any{"ok": callErr == nil && result.OK}
		if callErr != nil {
			payload["error"] = callErr.Error()
		} else {
			payload["warningCount"] = result.WarningCount
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
		if callErr != nil {
			os.Exit(1)
		}
		return
	}

	if callErr != nil {
		fatal(fmt.Errorf("reload failed: %w", callErr))
	}
	if result.WarningCount > 0 {
		warnf("reloaded with %d warning(s)", result.WarningCount)
	} else {
		successf("reloaded")
	}
}
