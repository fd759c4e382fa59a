// Package terminal provides terminal detection and capabilities.
//
// This package handles:
//   - TTY detection for stdin and stdout
//   - NO_COLOR environment variable support
//   - CI detection for non-interactive defaults
package terminal

import (
	"os"

	"golang.org/x/term"
)

// Info holds terminal capability information.
type Info struct {
	IsTTY      bool
	StdinIsTTY bool
	NoColor    bool
	CI         bool
	Width      int
	Height     int
	ForceFlag  bool // Set when --no-color flag is used
}

// Detect returns terminal information for the current environment.
func Detect() *Info {
	stdoutFD := int(os.Stdout.Fd())
	isTTY := term.IsTerminal(stdoutFD)

	width, height := 80, 24

	if isTTY {
		if w, h, err := term.GetSize(stdoutFD); err == nil {
			width, height = w, h
		}
	}

	// https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")

	if os.Getenv("TERM") == "dumb" {
		noColor = true
	}

	return &Info{
		IsTTY:      isTTY,
		StdinIsTTY: term.IsTerminal(int(os.Stdin.Fd())),
		NoColor:    noColor,
		CI:         IsCI(),
		Width:      width,
		Height:     height,
	}
}

// IsCI reports whether the process runs under a CI system.
func IsCI() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "BUILDKITE", "GITLAB_CI"} {
		if v, ok := os.LookupEnv(key); ok && v != "" && v != "false" && v != "0" {
			return true
		}
	}

	return false
}

// ColorEnabled returns true if colored output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// InteractiveEnabled returns true if prompts and the TUI may be shown.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY && t.StdinIsTTY && !t.CI
}

// SpinnersEnabled returns true if spinners should be used.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}
