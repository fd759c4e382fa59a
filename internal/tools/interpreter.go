package tools

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNoInterpreter is returned when no Python interpreter can be found.
var ErrNoInterpreter = errors.New("no python interpreter found")

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// ResolveInterpreter picks the interpreter collaborators run under, in order:
// the configured path, the active virtualenv, then python3 and python on PATH.
func ResolveInterpreter(configured string) (string, error) {
	if configured != "" {
		return lookPath(configured)
	}

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidate := filepath.Join(venv, "bin", "python")
		if runtime.GOOS == "windows" {
			candidate = filepath.Join(venv, "Scripts", "python.exe")
		}

		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}

	return "", ErrNoInterpreter
}
