package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"web", true},
		{"data-pipeline_2", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{".hidden", false},
		{" padded ", false},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err == nil) != tt.valid {
			t.Errorf("ValidateName(%q) error = %v, valid %v", tt.name, err, tt.valid)
		}

		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.name, err)
		}
	}
}

func TestStore_CreateOnceThenDuplicate(t *testing.T) {
	s := openStore(t)

	for _, name := range []string{"web", "api", "ml"} {
		p, err := s.Create(name, "")
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}

		if p.Name != name || p.Dir != filepath.Join(s.Root(), name) {
			t.Errorf("Create(%q) = %+v", name, p)
		}

		for range 3 {
			if _, err := s.Create(name, ""); !errors.Is(err, ErrDuplicate) {
				t.Errorf("repeated Create(%q) error = %v, want ErrDuplicate", name, err)
			}
		}
	}

	names, err := s.List()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"api", "ml", "web"}, names); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_CreateWritesSettings(t *testing.T) {
	s := openStore(t)

	if _, err := s.Create("svc", "services/svc"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), "svc", SettingsFile))
	if err != nil {
		t.Fatalf("settings not written: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("settings file is empty")
	}

	p, err := s.Get("svc")
	if err != nil {
		t.Fatal(err)
	}

	if p.Settings.Source != "services/svc" || p.Settings.CreatedAt.IsZero() {
		t.Errorf("Settings = %+v", p.Settings)
	}

	cwd, _ := os.Getwd()
	if p.Source != filepath.Join(cwd, "services", "svc") {
		t.Errorf("Source = %q", p.Source)
	}
}

func TestStore_LegacyDirectoryWithoutSettings(t *testing.T) {
	s := openStore(t)

	if err := os.Mkdir(filepath.Join(s.Root(), "legacy"), 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := s.Get("legacy")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	cwd, _ := os.Getwd()
	if p.Settings.Source != "." || p.Source != cwd {
		t.Errorf("legacy project = %+v", p)
	}
}

func TestStore_ListIgnoresFilesAndHidden(t *testing.T) {
	s := openStore(t)

	if _, err := s.Create("real", ""); err != nil {
		t.Fatal(err)
	}

	_ = os.WriteFile(filepath.Join(s.Root(), "stray.txt"), nil, 0o644)
	_ = os.Mkdir(filepath.Join(s.Root(), ".cache"), 0o755)

	names, err := s.List()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"real"}, names); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_SelectPersists(t *testing.T) {
	s := openStore(t)

	if _, err := s.Create("web", ""); err != nil {
		t.Fatal(err)
	}

	sess := NewSession(s)

	if _, err := sess.Current(); !errors.Is(err, ErrNoProjectSelected) {
		t.Fatalf("Current() error = %v, want ErrNoProjectSelected", err)
	}

	if _, err := sess.Select("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Select(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := sess.Select("web"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	restored := NewSession(s)

	cur, err := restored.Current()
	if err != nil || cur.Name != "web" {
		t.Fatalf("restored Current() = %v, %v", cur, err)
	}
}

func TestSession_UseDoesNotPersist(t *testing.T) {
	s := openStore(t)

	for _, name := range []string{"a", "b"} {
		if _, err := s.Create(name, ""); err != nil {
			t.Fatal(err)
		}
	}

	sess := NewSession(s)
	if _, err := sess.Select("a"); err != nil {
		t.Fatal(err)
	}

	if _, err := sess.Use("b"); err != nil {
		t.Fatal(err)
	}

	if cur, _ := sess.Current(); cur.Name != "b" {
		t.Errorf("Current() = %q, want b", cur.Name)
	}

	if cur, _ := NewSession(s).Current(); cur.Name != "a" {
		t.Errorf("persisted selection = %q, want a", cur.Name)
	}
}

func TestSession_StaleSelectionIgnored(t *testing.T) {
	s := openStore(t)

	if err := os.WriteFile(filepath.Join(s.Root(), selectionFile), []byte("gone\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSession(s).Current(); !errors.Is(err, ErrNoProjectSelected) {
		t.Errorf("Current() error = %v, want ErrNoProjectSelected", err)
	}
}
