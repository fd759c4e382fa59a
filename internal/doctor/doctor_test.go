package doctor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/testutil"
	"github.com/pyeasyenv/pyez/internal/tools"
	"github.com/pyeasyenv/pyez/internal/update"
)

func TestSummary(t *testing.T) {
	results := []Result{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	passed, failed, warnings := Summary(results)
	if passed != 2 || failed != 1 || warnings != 1 {
		t.Errorf("Summary() = %d, %d, %d; want 2, 1, 1", passed, failed, warnings)
	}
}

func TestRunner_NamesResults(t *testing.T) {
	r := &Runner{}
	r.AddCheck("first", func(context.Context) Result { return Result{Status: StatusPass, Message: "ok"} })
	r.AddCheck("second", func(context.Context) Result { return Result{Name: "ignored", Status: StatusFail} })

	results := r.Run(t.Context())
	if len(results) != 2 {
		t.Fatalf("Run() returned %d results, want 2", len(results))
	}

	if results[0].Name != "first" || results[1].Name != "second" {
		t.Errorf("names = %q, %q", results[0].Name, results[1].Name)
	}
}

func TestRenderResults(t *testing.T) {
	var lines []string

	record := func(prefix string) func(string, ...any) {
		return func(format string, args ...any) {
			lines = append(lines, prefix+fmt.Sprintf(format, args...))
		}
	}

	RenderResults([]Result{
		{Name: "Python", Status: StatusPass, Message: "3.12"},
		{Name: "Package Index", Status: StatusWarn, Message: "no token", Detail: "login"},
	}, record("print:"), record("ok:"), record("warn:"), record("fail:"), record("muted:"))

	want := []string{
		"ok:Python           3.12",
		"warn:Package Index    no token",
		"muted:    login",
	}

	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("RenderResults() lines =\n%s\nwant\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPass, checkMark},
		{StatusWarn, warningMark},
		{StatusFail, xMark},
		{Status(42), "?"},
	}

	for _, tt := range tests {
		if got := tt.status.Symbol(); got != tt.want {
			t.Errorf("Status(%d).Symbol() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestCheckCollaborator(t *testing.T) {
	catalog := tools.Default()
	collab, ok := catalog.Get("pip")
	if !ok {
		t.Fatal("pip collaborator missing from catalog")
	}

	tests := []struct {
		name   string
		script string
		want   Status
		msg    string
	}{
		{
			name:   "current",
			script: `echo "pip 24.0 from /usr/lib/python3/site-packages/pip (python 3.12)"`,
			want:   StatusPass,
			msg:    "v24.0",
		},
		{
			name:   "outdated",
			script: `echo "pip 21.3.1 from /usr/lib/python3/site-packages/pip (python 3.9)"`,
			want:   StatusWarn,
			msg:    "v21.3.1 (v22.0 or newer recommended)",
		},
		{
			name:   "missing module",
			script: `echo "/usr/bin/python3: No module named pip" >&2; exit 1`,
			want:   StatusFail,
			msg:    "Not installed",
		},
		{
			name:   "garbled output",
			script: `echo "something else"`,
			want:   StatusWarn,
			msg:    "Found but version unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			python := testutil.FakeInterpreter(t, t.TempDir(), tt.script)

			got := CheckCollaborator(t.Context(), python, catalog, collab)
			if got.Status != tt.want || got.Message != tt.msg {
				t.Errorf("CheckCollaborator() = %v %q, want %v %q", got.Status, got.Message, tt.want, tt.msg)
			}
		})
	}
}

func TestCheckIndex_DefaultIndex(t *testing.T) {
	if got := checkIndex(""); got.Status != StatusPass || got.Message != "Default index" {
		t.Errorf("checkIndex(\"\") = %+v", got)
	}
}

func TestCheckProjects(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PYEZ_FILES_MANIFEST", "")
	t.Setenv("PYEZ_FILES_LOCKFILE", "")
	t.Setenv("PYEZ_PROJECTS_ROOT", "")

	t.Run("no root yet", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("PYEZ_LAYOUT", config.LayoutMulti)

		got := checkProjects(config.Load())
		if got.Status != StatusWarn || !strings.HasPrefix(got.Message, "No projects root") {
			t.Errorf("checkProjects() = %+v", got)
		}
	})

	t.Run("single without manifest", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("PYEZ_LAYOUT", config.LayoutSingle)

		got := checkProjects(config.Load())
		if got.Status != StatusWarn {
			t.Errorf("checkProjects() = %+v, want warning", got)
		}
	})

	t.Run("single with manifest", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv("PYEZ_LAYOUT", config.LayoutSingle)
		testutil.WriteFile(t, dir, config.DefaultManifest, "requests\n")

		got := checkProjects(config.Load())
		if got.Status != StatusPass {
			t.Errorf("checkProjects() = %+v, want pass", got)
		}
	})
}

func TestCheckCLIVersion(t *testing.T) {
	latest := func(v string, err error) func(context.Context) (*update.Info, error) {
		return func(context.Context) (*update.Info, error) {
			if err != nil {
				return nil, err
			}

			return &update.Info{CurrentVersion: "1.0.0", LatestVersion: v, UpdateAvailable: v != "1.0.0", Channel: update.ChannelStable}, nil
		}
	}

	tests := []struct {
		name       string
		current    string
		check      bool
		cached     *update.State
		latest     func(context.Context) (*update.Info, error)
		wantStatus Status
		wantMsg    string
		wantDetail string
	}{
		{
			name:       "development build",
			current:    "dev",
			check:      true,
			wantStatus: StatusWarn,
			wantMsg:    "Development build (version check skipped)",
		},
		{
			name:       "checks off",
			current:    "1.0.0",
			check:      false,
			wantStatus: StatusPass,
			wantMsg:    "v1.0.0 (update checks off: update.check is false)",
		},
		{
			name:       "newer release",
			current:    "1.0.0",
			check:      true,
			latest:     latest("1.2.0", nil),
			wantStatus: StatusWarn,
			wantMsg:    "v1.0.0 (v1.2.0 available on stable)",
			wantDetail: "Run 'pyez update' to update",
		},
		{
			name:       "up to date",
			current:    "1.0.0",
			check:      true,
			latest:     latest("1.0.0", nil),
			wantStatus: StatusPass,
			wantMsg:    "v1.0.0 (latest on stable)",
		},
		{
			name:       "offline with a stale cache",
			current:    "1.0.0",
			check:      true,
			cached:     &update.State{CheckedAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), Channel: update.ChannelStable, Latest: "1.0.0"},
			latest:     latest("", errors.New("dial tcp: no route to host")),
			wantStatus: StatusPass,
			wantMsg:    "v1.0.0 (latest on stable)",
			wantDetail: "Last checked 2026-01-05T08:00:00Z",
		},
		{
			name:       "offline without a cache",
			current:    "1.0.0",
			check:      true,
			latest:     latest("", errors.New("dial tcp: no route to host")),
			wantStatus: StatusWarn,
			wantMsg:    "v1.0.0 (could not check for updates)",
			wantDetail: "dial tcp: no route to host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_STATE_HOME", t.TempDir())
			t.Setenv(update.DisableEnv, "")

			if tt.cached != nil {
				if err := tt.cached.Save(); err != nil {
					t.Fatal(err)
				}
			}

			checker := &update.Checker{
				Settings: update.Settings{Check: tt.check, Channel: update.ChannelStable},
				Current:  tt.current,
				Latest:   tt.latest,
			}

			got := checkCLIVersion(context.Background(), checker)

			if got.Status != tt.wantStatus || got.Message != tt.wantMsg || got.Detail != tt.wantDetail {
				t.Errorf("checkCLIVersion() = %+v, want status %v, message %q, detail %q", got, tt.wantStatus, tt.wantMsg, tt.wantDetail)
			}
		})
	}
}

func TestCheckInstall(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "pyez")

	if got := checkInstall(exe, nil); got.Status != StatusPass || got.Message != exe {
		t.Errorf("checkInstall(writable) = %+v", got)
	}

	if got := checkInstall("", errors.New("no such file")); got.Status != StatusWarn {
		t.Errorf("checkInstall(error) = %+v, want a warning", got)
	}
}
