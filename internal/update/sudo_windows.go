//go:build windows

package update

import "fmt"

// CanReplace is always true on Windows; the installer runs per user.
func CanReplace(string) bool {
	return true
}

// Elevate is not supported on Windows.
func Elevate(string, []string) error {
	return fmt.Errorf("automatic elevation is not supported on Windows; run 'pyez update' from an Administrator shell")
}
