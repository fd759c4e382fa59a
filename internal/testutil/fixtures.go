package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	return path
}

// ReadLines returns the non-empty lines of a file.
func ReadLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	var lines []string

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// FakeInterpreter writes an executable shell script standing in for a Python
// interpreter and returns its path. Tests relying on it are skipped on Windows.
func FakeInterpreter(t *testing.T, dir, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell-script interpreter fakes require a POSIX shell")
	}

	path := filepath.Join(dir, "python")
	body := "#!/bin/sh\n" + script + "\n"

	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake interpreter: %v", err)
	}

	return path
}
