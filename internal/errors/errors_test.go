package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pyeasyenv/pyez/internal/testutil"
)

func TestCollaboratorFailed(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		stderr   string
		wantMsg  string
		wantHint string
	}{
		{
			name:     "launch failure",
			exitCode: -1,
			stderr:   "",
			wantMsg:  "could not be started",
			wantHint: "pyez doctor",
		},
		{
			name:     "resolution impossible",
			exitCode: 2,
			stderr:   "ERROR: ResolutionImpossible: for help visit ...",
			wantMsg:  "exit code 2",
			wantHint: "version constraints",
		},
		{
			name:     "network",
			exitCode: 1,
			stderr:   "Read timed out.",
			wantMsg:  "exit code 1",
			wantHint: "network connection",
		},
		{
			name:     "permissions",
			exitCode: 1,
			stderr:   "[Errno 13] Permission denied: '/usr/lib/python3'",
			wantMsg:  "exit code 1",
			wantHint: "virtual environment",
		},
		{
			name:     "empty stderr",
			exitCode: 1,
			stderr:   "",
			wantMsg:  "failed",
			wantHint: "--log-level=debug",
		},
		{
			name:     "generic error",
			exitCode: 1,
			stderr:   "Some unknown error occurred",
			wantMsg:  "failed",
			wantHint: "Some unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CollaboratorFailed("Compile", tt.exitCode, tt.stderr)

			if !strings.Contains(err.Message, tt.wantMsg) {
				t.Errorf("message = %q, want to contain %q", err.Message, tt.wantMsg)
			}

			if !strings.Contains(err.Hint, tt.wantHint) {
				t.Errorf("hint = %q, want to contain %q", err.Hint, tt.wantHint)
			}

			if err.Code != ExitExecution {
				t.Errorf("code = %d, want %d", err.Code, ExitExecution)
			}
		})
	}
}

func TestCollaboratorFailed_TruncatesStderr(t *testing.T) {
	err := CollaboratorFailed("Sync", 1, strings.Repeat("x", 500))

	if len(err.Hint) != 203 {
		t.Errorf("hint length = %d, want 203", len(err.Hint))
	}

	if !strings.HasSuffix(err.Hint, "...") {
		t.Errorf("hint = %q, want trailing ellipsis", err.Hint)
	}
}

func TestContainsAny(t *testing.T) {
	tests := []struct {
		s          string
		substrings []string
		want       bool
	}{
		{"Connection reset", []string{"connection"}, true},
		{"CONNECTION reset", []string{"connection"}, true},
		{"some error", []string{"network", "proxyerror"}, false},
		{"ProxyError: refused", []string{"network", "proxyerror"}, true},
		{"", []string{"test"}, false},
	}

	for _, tt := range tests {
		result := containsAny(tt.s, tt.substrings...)
		if result != tt.want {
			t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrings, result, tt.want)
		}
	}
}

// TestAllErrorsHaveHints verifies that all error constructors provide actionable hints.
func TestAllErrorsHaveHints(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
	}{
		{"CannotPrompt", CannotPrompt("TEST_VAR")},
		{"NoProjectSelected", NoProjectSelected()},
		{"ProjectNotFound", ProjectNotFound("web")},
		{"DuplicateProject", DuplicateProject("web")},
		{"InvalidProjectName", InvalidProjectName("../x")},
		{"InvalidDependency", InvalidDependency("")},
		{"ManifestNotFound", ManifestNotFound("requirements.in")},
		{"LockfileNotFound", LockfileNotFound("requirements.txt")},
		{"CollaboratorFailed", CollaboratorFailed("Sync", 1, "error message")},
		{"ToolMissing", ToolMissing("pip-tools")},
		{"TaskBusy", TaskBusy("Compile")},
		{"ConfigFailed", ConfigFailed("test operation", nil)},
		{"TokenEmpty", TokenEmpty()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Hint == "" {
				t.Errorf("%s() should have a hint, got empty string", tt.name)
			}

			if tt.err.Message == "" {
				t.Errorf("%s() should have a message, got empty string", tt.name)
			}
		})
	}
}

func TestCLIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
		want string
	}{
		{
			name: "message only",
			err:  &CLIError{Message: "test error"},
			want: "test error",
		},
		{
			name: "message with cause",
			err:  &CLIError{Message: "test error", Cause: New(1, "underlying")},
			want: "test error: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	cause := New(1, "cause")
	err := &CLIError{Message: "wrapper", Cause: cause}

	if got := err.Unwrap(); got != cause { //nolint:errorlint // testing identity
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestWithHint(t *testing.T) {
	err := New(1, "test").WithHint("do this")

	if err.Hint != "do this" {
		t.Errorf("WithHint() hint = %q, want %q", err.Hint, "do this")
	}
}

func TestWrap(t *testing.T) {
	cause := New(1, "cause")
	err := Wrap(ExitConfig, "wrapped", cause)

	if err.Code != ExitConfig {
		t.Errorf("Wrap() code = %d, want %d", err.Code, ExitConfig)
	}

	if err.Cause != cause { //nolint:errorlint // testing struct field identity
		t.Errorf("Wrap() cause = %v, want %v", err.Cause, cause)
	}

	var target *CLIError
	if !As(fmt.Errorf("outer: %w", err), &target) || target != err {
		t.Errorf("As() did not find wrapped CLIError")
	}
}

// formatCLIError produces a deterministic string representation of a CLIError for golden file comparison.
func formatCLIError(err *CLIError) string {
	return fmt.Sprintf("Message: %s\nHint: %s\nCode: %d\n", err.Message, err.Hint, err.Code)
}

func TestErrorMessages_Golden(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
	}{
		{"CannotPrompt", CannotPrompt("PYEZ_INDEX_TOKEN")},
		{"NoProjectSelected", NoProjectSelected()},
		{"ProjectNotFound", ProjectNotFound("webapp")},
		{"DuplicateProject", DuplicateProject("webapp")},
		{"InvalidProjectName", InvalidProjectName("../etc")},
		{"InvalidDependency", InvalidDependency("e.g., flask")},
		{"ManifestNotFound", ManifestNotFound("requirements.in")},
		{"LockfileNotFound", LockfileNotFound("requirements.txt")},
		{"CollaboratorFailed_Launch", CollaboratorFailed("Compile", -1, "")},
		{"CollaboratorFailed_Resolution", CollaboratorFailed("Compile", 2, "ResolutionImpossible")},
		{"CollaboratorFailed_Generic", CollaboratorFailed("Sync", 1, "something broke")},
		{"ToolMissing", ToolMissing("pipreqs")},
		{"TaskBusy", TaskBusy("Sync")},
		{"ConfigFailed", ConfigFailed("save config", nil)},
		{"TokenEmpty", TokenEmpty()},
	}

	var sb strings.Builder
	for _, tt := range tests {
		fmt.Fprintf(&sb, "--- %s ---\n", tt.name)
		sb.WriteString(formatCLIError(tt.err))
		sb.WriteString("\n")
	}

	testutil.AssertGolden(t, sb.String(), "error_messages.golden")
}
