package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssertGolden(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	goldenContent := "expected output\n"
	WriteFile(t, tmpDir, filepath.Join("testdata", "test.golden"), goldenContent)

	t.Run("matching content passes", func(t *testing.T) {
		AssertGolden(t, goldenContent, "test.golden")
	})

	t.Run("golden path resolves", func(t *testing.T) {
		path := GoldenPath("test.golden")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("GoldenPath should return valid path, got %s", path)
		}
	})
}

func TestReadGolden(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	WriteFile(t, tmpDir, filepath.Join("testdata", "read.golden"), "test content")

	t.Run("reads existing file", func(t *testing.T) {
		got := ReadGolden(t, "read.golden")
		if got != "test content" {
			t.Errorf("ReadGolden() = %q, want %q", got, "test content")
		}
	})

	t.Run("returns empty for missing file", func(t *testing.T) {
		got := ReadGolden(t, "nonexistent.golden")
		if got != "" {
			t.Errorf("ReadGolden() for missing file = %q, want empty", got)
		}
	})
}

func TestReadLines(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "requirements.in", "flask\n\nrequests==2.31.0\n")

	got := ReadLines(t, path)
	if len(got) != 2 || got[0] != "flask" || got[1] != "requests==2.31.0" {
		t.Errorf("ReadLines() = %q", got)
	}
}
