package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func usage() {
	fmt.Print(`secrets [command] [args]

CLI for the secrets subsystem: reload the gateway's live snapshot, audit
on-disk configuration, migrate plaintext secrets into refs, and apply a
generated plan.

Usage:
  secrets <command> [args...]
  secrets help | -h | --help

Commands:
  secrets reload [--json]
  secrets audit [--check] [--json]
  secrets configure [--providers-only] [--skip-provider-setup] [--agent <id>] [--plan-out <path>] [--apply] [--yes] [--json]
  secrets apply --from <plan> [--dry-run] [--yes] [--json]
  secrets providers doctor [--json]
`)
}

func printUsage(line string) {
	fmt.Println(styleUsage("usage:"), line)
}

func printUnknown(kind, cmd string) {
	if kind == "" {
		fmt.Fprintf(os.Stderr, "%s unknown command %q\n", styleError("secrets:"), cmd)
		return
	}
	fmt.Fprintf(os.Stderr, "%s unknown %s subcommand %q\n", styleError("secrets:"), kind, cmd)
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, styleError(err.Error()))
	os.Exit(1)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, styleWarn(fmt.Sprintf(format, args...)))
}

func infof(format string, args ...interface{}) {
	fmt.Println(styleInfo(fmt.Sprintf(format, args...)))
}

func successf(format string, args ...interface{}) {
	fmt.Println(styleSuccess(fmt.Sprintf(format, args...)))
}

var ansiEnabled = initAnsiEnabled()

func initAnsiEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("SECRETS_NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	if force := strings.TrimSpace(os.Getenv("SECRETS_COLOR")); force != "" {
		return force == "1" || strings.EqualFold(force, "true")
	}
	if force := strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")); force != "" && force != "0" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ansi(codes ...string) string {
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorize(s string, codes ...string) string {
	if !ansiEnabled || s == "" {
		return s
	}
	return ansi(codes...) + s + ansi("0")
}

func styleHeading(s string) string { return colorize(s, "1", "36") }
func styleCmd(s string) string     { return colorize(s, "1", "32") }
func styleFlag(s string) string    { return colorize(s, "33") }
func styleDim(s string) string     { return colorize(s, "90") }
func styleInfo(s string) string    { return colorize(s, "36") }
func styleSuccess(s string) string { return colorize(s, "32") }
func styleWarn(s string) string    { return colorize(s, "33") }
func styleError(s string) string   { return colorize(s, "31") }
func styleUsage(s string) string   { return colorize(s, "1", "33") }

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func isEscCancelInput(value string) bool {
	return strings.ContainsRune(value, '\x1b')
}
