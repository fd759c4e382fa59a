//go:build !windows

package update

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// CanReplace reports whether the current user may swap the binary at exe,
// which needs write access to its directory.
func CanReplace(exe string) bool {
	return unix.Access(filepath.Dir(exe), unix.W_OK) == nil
}

// Elevate replaces the process with `sudo exe args...`. It returns only on
// failure.
func Elevate(exe string, args []string) error {
	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return fmt.Errorf("%s is not writable and sudo is not on PATH; rerun 'pyez update' as a user who can write it", filepath.Dir(exe))
	}

	fmt.Fprintf(os.Stderr, "pyez is installed in %s, which needs sudo to update.\n", filepath.Dir(exe))

	argv := append([]string{"sudo", exe}, args...)
	if err := syscall.Exec(sudo, argv, os.Environ()); err != nil { //nolint:gosec // re-exec of our own binary
		return fmt.Errorf("exec sudo: %w", err)
	}

	return nil
}
