// Package buildinfo stores build-time metadata shared across packages.
package buildinfo

import "fmt"

// Set via ldflags during release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `pyez version`.
func String() string {
	if Commit == "none" {
		return Version
	}

	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}

	return fmt.Sprintf("%s (%s, built %s)", Version, short, Date)
}
