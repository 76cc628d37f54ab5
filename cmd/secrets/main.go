// Command secrets reloads the gateway's live snapshot, audits on-disk
// configuration for plaintext/unresolved/shadowed secrets, migrates
// plaintext into refs via a generated plan, and applies a plan across
// every file the secrets subsystem touches.
package main

import "os"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	if !dispatchRootCommand(cmd, args) {
		printUnknown("", cmd)
		usage()
		os.Exit(1)
	}
}
