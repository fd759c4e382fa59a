package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/history"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/recovery"
	"github.com/pyeasyenv/pyez/internal/scheduler"
	"github.com/pyeasyenv/pyez/internal/testutil"
	"github.com/pyeasyenv/pyez/internal/workflow"
)

// sandbox points every pyez directory into a temp dir and runs the test there.
func sandbox(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("PYEZ_LOG_STDERR", "off")
	t.Setenv("PYEZ_UPDATE_DISABLED", "1")
	t.Setenv("PYEZ_INDEX_TOKEN", "")
	t.Setenv("CI", "")

	for _, key := range config.Keys {
		t.Setenv("PYEZ_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), "")
	}

	return dir
}

// fakePython installs an interpreter that appends its arguments to calls.log.
func fakePython(t *testing.T, dir, extra string) string {
	t.Helper()

	log := filepath.Join(dir, "calls.log")
	python := testutil.FakeInterpreter(t, dir, fmt.Sprintf("printf '%%s\\n' \"$*\" >> %q\n%s", log, extra))
	t.Setenv("PYEZ_PYTHON_EXEC", python)

	return log
}

func execute(t *testing.T, out *output.Writer, args ...string) error {
	t.Helper()

	root := newRootCmdWithWriter(out)
	root.SetArgs(args)

	return root.Execute()
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()

	out, buf := testWriter()
	if err := execute(t, out, args...); err != nil {
		t.Fatalf("pyez %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}

	return buf.String()
}

func exitCode(t *testing.T, err error) int {
	t.Helper()

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}

	return cliErr.Code
}

func TestWorkflowError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"no project", project.ErrNoProjectSelected, clierrors.ExitConfig, "No project selected"},
		{"manifest missing", &workflow.PreconditionError{Err: workflow.ErrManifestMissing, Path: "/p/requirements.in"}, clierrors.ExitConfig, "Input file not found: /p/requirements.in"},
		{"lockfile missing", &workflow.PreconditionError{Err: workflow.ErrLockfileMissing, Path: "/p/requirements.txt"}, clierrors.ExitConfig, "Lockfile not found: /p/requirements.txt"},
		{"invalid specifier", &workflow.PreconditionError{Err: project.ErrInvalidSpecifier}, clierrors.ExitUsage, "valid package name"},
		{"tool missing", &workflow.StepError{Step: "Locking dependencies", Tool: "pip-tools", State: recovery.StateFailed}, clierrors.ExitExecution, "Required tool is not installed: pip-tools"},
		{"retry failed after reinstall", &workflow.StepError{Step: "Locking dependencies", ExitCode: 2, Tool: "pip-tools", State: recovery.StateFailed, Retried: true}, clierrors.ExitExecution, "Locking dependencies failed with exit code 2"},
		{"step failed", &workflow.StepError{Step: "Syncing environment", ExitCode: 2}, clierrors.ExitExecution, "Syncing environment failed with exit code 2"},
		{"busy", fmt.Errorf("%w: Sync", scheduler.ErrBusy), clierrors.ExitGeneral, "Another task is still running"},
		{"not found", fmt.Errorf("%w: api", project.ErrNotFound), clierrors.ExitConfig, "Project not found: web"},
		{"panic", &scheduler.PanicError{Value: "boom"}, clierrors.ExitGeneral, "An unexpected error occurred"},
		{"other", errors.New("disk full"), clierrors.ExitGeneral, "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := workflowError(tt.err, "web")

			var cliErr *clierrors.CLIError
			if !clierrors.As(err, &cliErr) {
				t.Fatalf("workflowError() = %T, want *CLIError", err)
			}

			if cliErr.Code != tt.code {
				t.Errorf("code = %d, want %d", cliErr.Code, tt.code)
			}

			if !strings.Contains(cliErr.Message, tt.message) {
				t.Errorf("message = %q, want to contain %q", cliErr.Message, tt.message)
			}
		})
	}

	if workflowError(nil, "") != nil {
		t.Error("workflowError(nil) != nil")
	}
}

func TestLoadSession(t *testing.T) {
	t.Run("single layout rejects --project", func(t *testing.T) {
		sandbox(t)
		t.Setenv("PYEZ_LAYOUT", "single")

		_, err := loadSession(config.Load(), "api")
		if code := exitCode(t, err); code != clierrors.ExitUsage {
			t.Errorf("code = %d, want %d", code, clierrors.ExitUsage)
		}
	})

	t.Run("single layout uses the working directory", func(t *testing.T) {
		dir := sandbox(t)
		t.Setenv("PYEZ_LAYOUT", "single")

		session, err := loadSession(config.Load(), "")
		if err != nil {
			t.Fatal(err)
		}

		p, err := session.Current()
		if err != nil {
			t.Fatal(err)
		}

		want, _ := filepath.EvalSymlinks(dir)
		got, _ := filepath.EvalSymlinks(p.Dir)

		if got != want {
			t.Errorf("project dir = %q, want %q", got, want)
		}
	})

	t.Run("unknown --project", func(t *testing.T) {
		sandbox(t)

		_, err := loadSession(config.Load(), "ghost")
		if code := exitCode(t, err); code != clierrors.ExitConfig {
			t.Errorf("code = %d, want %d", code, clierrors.ExitConfig)
		}
	})

	t.Run("--project overrides the selection", func(t *testing.T) {
		sandbox(t)
		mustExecute(t, "project", "create", "api")
		mustExecute(t, "project", "create", "web")

		session, err := loadSession(config.Load(), "api")
		if err != nil {
			t.Fatal(err)
		}

		p, err := session.Current()
		if err != nil || p.Name != "api" {
			t.Fatalf("Current() = %v, %v, want api", p, err)
		}

		// The persisted selection is untouched.
		if again := project.NewSession(session.Store()); mustCurrent(t, again) != "web" {
			t.Error("--project changed the persisted selection")
		}
	})
}

func mustCurrent(t *testing.T, s *project.Session) string {
	t.Helper()

	p, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}

	return p.Name
}

func TestAddCommand_LocksSyncsAndRecords(t *testing.T) {
	dir := sandbox(t)
	calls := fakePython(t, dir, "")

	mustExecute(t, "project", "create", "web")
	got := mustExecute(t, "add", "requests")

	for _, want := range []string{
		"Added 'requests' to 'requirements.in'.",
		"--- Locking dependencies ---",
		"--- Syncing environment ---",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}

	manifest := filepath.Join(dir, ".pyeasyenv_projects", "web", "requirements.in")
	if lines := testutil.ReadLines(t, manifest); !cmp.Equal(lines, []string{"requests"}) {
		t.Errorf("manifest = %v, want [requests]", lines)
	}

	invocations := testutil.ReadLines(t, calls)
	if len(invocations) != 2 {
		t.Fatalf("interpreter called %d times, want 2: %v", len(invocations), invocations)
	}

	if !strings.HasPrefix(invocations[0], "-m piptools compile ") || !strings.HasPrefix(invocations[1], "-m piptools sync ") {
		t.Errorf("invocations = %v, want compile then sync", invocations)
	}

	sessions, err := history.ListSessions(filepath.Join(dir, "state", "pyez", "history"))
	if err != nil {
		t.Fatal(err)
	}

	if len(sessions) != 1 {
		t.Fatalf("history sessions = %d, want 1", len(sessions))
	}

	if s := sessions[0]; s.Runs != 2 || s.Failed != 0 || s.Project != "web" || s.Command != "pyez add" {
		t.Errorf("session = %+v", s.Meta)
	}
}

func TestAddCommand_AppendsRepeatedSpecifier(t *testing.T) {
	dir := sandbox(t)
	fakePython(t, dir, "")

	mustExecute(t, "project", "create", "web")
	mustExecute(t, "add", "flask")
	mustExecute(t, "add", "requests")
	mustExecute(t, "add", "requests")

	manifest := filepath.Join(dir, ".pyeasyenv_projects", "web", "requirements.in")
	want := []string{"flask", "requests", "requests"}

	if diff := cmp.Diff(want, testutil.ReadLines(t, manifest)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}

	if strings.Contains(newAddCmd().Long, "not added twice") {
		t.Error("add help claims duplicates are skipped")
	}
}

func TestAddCommand_CollaboratorFailure(t *testing.T) {
	dir := sandbox(t)
	fakePython(t, dir, "echo 'ResolutionImpossible: conflicting pins' >&2\nexit 1")

	mustExecute(t, "project", "create", "web")

	out, buf := testWriter()
	err := execute(t, out, "add", "requests")

	if code := exitCode(t, err); code != clierrors.ExitExecution {
		t.Errorf("code = %d, want %d", code, clierrors.ExitExecution)
	}

	if !strings.Contains(buf.String(), "Log: ResolutionImpossible: conflicting pins") {
		t.Errorf("stderr not streamed with the Log prefix:\n%s", buf.String())
	}
}

func TestWorkflowPreconditions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"sync without manifest", []string{"sync"}, clierrors.ExitConfig},
		{"locked sync without lockfile", []string{"sync", "--locked"}, clierrors.ExitConfig},
		{"lock with missing input", []string{"lock", "--input", "nope.in"}, clierrors.ExitConfig},
		{"add placeholder text", []string{"add", "e.g., requests==2.31.0"}, clierrors.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := sandbox(t)
			calls := fakePython(t, dir, "")

			mustExecute(t, "project", "create", "web")

			out, _ := testWriter()
			if code := exitCode(t, execute(t, out, tt.args...)); code != tt.code {
				t.Errorf("code = %d, want %d", code, tt.code)
			}

			if _, err := os.Stat(calls); !os.IsNotExist(err) {
				t.Error("interpreter ran despite the failed precondition")
			}
		})
	}
}

func TestWorkflow_NoProjectSelected(t *testing.T) {
	dir := sandbox(t)
	fakePython(t, dir, "")

	out, _ := testWriter()
	if code := exitCode(t, execute(t, out, "sync")); code != clierrors.ExitConfig {
		t.Errorf("code = %d, want %d", code, clierrors.ExitConfig)
	}
}

func TestProjectCommands(t *testing.T) {
	sandbox(t)

	mustExecute(t, "project", "create", "api")
	mustExecute(t, "project", "create", "web")
	mustExecute(t, "project", "select", "api")

	out, buf := testWriter()
	if err := execute(t, out, "project", "list", "--json"); err != nil {
		t.Fatal(err)
	}

	var infos []ProjectInfo
	if err := json.Unmarshal(buf.Bytes(), &infos); err != nil {
		t.Fatalf("decode project list: %v\n%s", err, buf.String())
	}

	type row struct {
		Name     string
		Selected bool
	}

	got := make([]row, 0, len(infos))
	for _, info := range infos {
		got = append(got, row{info.Name, info.Selected})
	}

	want := []row{{"api", true}, {"web", false}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("project list mismatch (-want +got):\n%s", diff)
	}

	show := mustExecute(t, "project", "show")
	if !strings.Contains(show, "Project:   api") || !strings.Contains(show, "(missing)") {
		t.Errorf("project show:\n%s", show)
	}

	out, _ = testWriter()
	if code := exitCode(t, execute(t, out, "project", "create", "api")); code != clierrors.ExitConfig {
		t.Errorf("duplicate create code = %d, want %d", code, clierrors.ExitConfig)
	}

	out, _ = testWriter()
	if code := exitCode(t, execute(t, out, "project", "create", "../escape")); code != clierrors.ExitUsage {
		t.Errorf("invalid name code = %d, want %d", code, clierrors.ExitUsage)
	}
}

func TestProjectCommands_SingleLayout(t *testing.T) {
	sandbox(t)

	out, _ := testWriter()
	if code := exitCode(t, execute(t, out, "--layout", "single", "project", "list")); code != clierrors.ExitUsage {
		t.Errorf("code = %d, want %d", code, clierrors.ExitUsage)
	}
}

func TestTUICmd_RequiresTerminal(t *testing.T) {
	sandbox(t)

	out, _ := testWriter()
	if code := exitCode(t, execute(t, out, "tui")); code != clierrors.ExitUsage {
		t.Errorf("code = %d, want %d", code, clierrors.ExitUsage)
	}
}
