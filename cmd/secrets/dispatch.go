package main

import "strings"

// dispatchRootCommand routes the top-level subcommand. Unlike a CLI with
// dozens of bridge integrations, this one has a handful of subcommands, so
// there's no lazy-loading registry here — just a flat switch.
func dispatchRootCommand(cmd string, args []string) bool {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "reload":
		cmdReload(args)
	case "audit":
		cmdAudit(args)
	case "configure":
		cmdConfigure(args)
	case "apply":
		cmdApply(args)
	case "providers":
		cmdProviders(args)
	case "help", "-h", "--help":
		usage()
	case "version", "--version", "-v":
		printVersion()
	default:
		return false
	}
	return true
}

func printVersion() {
	infof("secrets (dev build)")
}
