//go:build unix

package providers

import (
	"fmt"
	"os"
	"syscall"
)

// checkOwnerAndPermissions enforces "regular file, owner = effective user,
// mode & 0o077 == 0" on platforms with POSIX ownership bits. Set
// SECRETS_ALLOW_INSECURE_FILE_PROVIDER=1 to bypass during local
// development against a file the caller can't chmod (e.g. a bind mount).
func checkOwnerAndPermissions(path string, info os.FileInfo) error {
	if os.Getenv("SECRETS_ALLOW_INSECURE_FILE_PROVIDER") != "" {
		return nil
	}
	perm := info.Mode().Perm()
	if perm&0o077 != 0 {
		return fmt.Errorf("file provider: insecure permissions on %s: expected no group/other bits, got %04o", path, perm)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if int(stat.Uid) != os.Geteuid() {
		return fmt.Errorf("file provider: %s is not owned by the effective user", path)
	}
	return nil
}
