package tools

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func stubLookPath(t *testing.T, found map[string]string) {
	t.Helper()

	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	lookPath = func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}

		return "", exec.ErrNotFound
	}
}

func TestResolveInterpreter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("virtualenv layout differs on Windows")
	}

	venv := t.TempDir()
	if err := os.MkdirAll(filepath.Join(venv, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	venvPython := filepath.Join(venv, "bin", "python")
	if err := os.WriteFile(venvPython, nil, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		configured string
		venv       string
		found      map[string]string
		want       string
		wantErr    error
	}{
		{
			name:       "configured wins",
			configured: "/opt/python3.12",
			venv:       venv,
			found:      map[string]string{"/opt/python3.12": "/opt/python3.12", "python3": "/usr/bin/python3"},
			want:       "/opt/python3.12",
		},
		{
			name:  "virtualenv before PATH",
			venv:  venv,
			found: map[string]string{"python3": "/usr/bin/python3"},
			want:  venvPython,
		},
		{
			name:  "python3 on PATH",
			found: map[string]string{"python3": "/usr/bin/python3", "python": "/usr/bin/python"},
			want:  "/usr/bin/python3",
		},
		{
			name:  "python fallback",
			found: map[string]string{"python": "/usr/bin/python"},
			want:  "/usr/bin/python",
		},
		{
			name:    "nothing found",
			found:   map[string]string{},
			wantErr: ErrNoInterpreter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VIRTUAL_ENV", tt.venv)
			stubLookPath(t, tt.found)

			got, err := ResolveInterpreter(tt.configured)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveInterpreter() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("ResolveInterpreter() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("ResolveInterpreter() = %q, want %q", got, tt.want)
			}
		})
	}
}
