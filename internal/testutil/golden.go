// Package testutil provides testing utilities for the pyez CLI.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

// update rewrites golden files instead of comparing.
// Usage: go test ./... -update
var update = flag.Bool("update", false, "update golden files")

// AssertGolden compares got against testdata/<goldenFile>.
// With -update it writes got to the golden file instead.
func AssertGolden(t *testing.T, got, goldenFile string) {
	t.Helper()

	goldenPath := GoldenPath(goldenFile)

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatalf("failed to create testdata directory: %v", err)
		}

		if err := os.WriteFile(goldenPath, []byte(got), 0o644); err != nil {
			t.Fatalf("failed to update golden file %s: %v", goldenPath, err)
		}

		t.Logf("updated golden file: %s", goldenPath)

		return
	}

	want, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file %s does not exist; run with -update to create it", goldenPath)
		}

		t.Fatalf("failed to read golden file %s: %v", goldenPath, err)
	}

	if got != string(want) {
		t.Errorf("output mismatch for %s\n\ngot:\n%s\n\nwant:\n%s\n\nrun with -update to refresh golden files", goldenPath, got, string(want))
	}
}

// GoldenPath returns the full path to a golden file in testdata.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", filename)
}

// ReadGolden reads a golden file, returning "" when it does not exist.
func ReadGolden(t *testing.T, goldenFile string) string {
	t.Helper()

	data, err := os.ReadFile(GoldenPath(goldenFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}

		t.Fatalf("failed to read golden file %s: %v", goldenFile, err)
	}

	return string(data)
}
