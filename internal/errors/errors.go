// Package errors provides structured CLI error types for pyez.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// so every command reports failures the same way.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess   = 0  // Successful execution
	ExitGeneral   = 1  // General error
	ExitConfig    = 4  // Configuration or project precondition error
	ExitExecution = 6  // A collaborator tool failed
	ExitUsage     = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(envVar string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Set %s environment variable instead", envVar),
		Code:    ExitUsage,
	}
}

// NoProjectSelected returns an error when a workflow runs without an active project.
func NoProjectSelected() *CLIError {
	return &CLIError{
		Message: "No project selected",
		Hint:    "Run 'pyez project select <name>' or pass --project",
		Code:    ExitConfig,
	}
}

// ProjectNotFound returns an error for an unknown project name.
func ProjectNotFound(name string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Project not found: %s", name),
		Hint:    "Run 'pyez project list' to see available projects",
		Code:    ExitConfig,
	}
}

// DuplicateProject returns an error when a project name is already taken.
func DuplicateProject(name string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("A project with that name already exists: %s", name),
		Hint:    "Choose another name or select the existing project with 'pyez project select'",
		Code:    ExitConfig,
	}
}

// InvalidProjectName returns an error for a name that cannot be used as a directory.
func InvalidProjectName(name string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid project name: %q", name),
		Hint:    "Use a plain name without path separators or a leading dot",
		Code:    ExitUsage,
	}
}

// InvalidDependency returns an error for an empty or placeholder specifier.
func InvalidDependency(spec string) *CLIError {
	return &CLIError{
		Message: "Please enter a valid package name",
		Hint:    fmt.Sprintf("Got %q; use a specifier such as 'flask' or 'requests==2.31.0'", spec),
		Code:    ExitUsage,
	}
}

// ManifestNotFound returns an error when the manifest file is missing.
func ManifestNotFound(path string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Input file not found: %s", path),
		Hint:    "Run 'pyez scan' to generate it or 'pyez add <package>' to start one",
		Code:    ExitConfig,
	}
}

// LockfileNotFound returns an error when the lockfile is missing.
func LockfileNotFound(path string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Lockfile not found: %s", path),
		Hint:    "Run 'pyez lock' or 'pyez sync' to create the lockfile first",
		Code:    ExitConfig,
	}
}

// CollaboratorFailed returns an error for a failed external tool step.
// It detects common pip failure patterns and provides specific hints.
func CollaboratorFailed(step string, exitCode int, stderr string) *CLIError {
	msg := fmt.Sprintf("%s failed with exit code %d", step, exitCode)
	hint := ""

	switch {
	case exitCode < 0:
		msg = fmt.Sprintf("%s could not be started", step)
		hint = "Check that the Python interpreter exists; run 'pyez doctor'"
	case containsAny(stderr, "ResolutionImpossible", "Could not find a version"):
		hint = "A requirement cannot be satisfied; check the version constraints in the manifest"
	case containsAny(stderr, "connection", "network", "timed out", "ProxyError"):
		hint = "Check your network connection or package index settings"
	case containsAny(stderr, "Permission denied", "EnvironmentError"):
		hint = "Activate a virtual environment or set python.exec to one"
	default:
		if stderr != "" {
			if len(stderr) > 200 {
				stderr = stderr[:200] + "..."
			}

			hint = stderr
		} else {
			hint = "See the output above or run with --log-level=debug"
		}
	}

	return &CLIError{
		Message: msg,
		Hint:    hint,
		Code:    ExitExecution,
	}
}

// ToolMissing returns an error when a delegated tool is not installed and was not reinstalled.
func ToolMissing(tool string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Required tool is not installed: %s", tool),
		Hint:    fmt.Sprintf("Install it with 'python -m pip install %s' or rerun with --yes", tool),
		Code:    ExitExecution,
	}
}

// TaskBusy returns an error when a workflow is already running.
func TaskBusy(description string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Another task is still running: %s", description),
		Hint:    "Wait for it to finish before starting another workflow",
		Code:    ExitGeneral,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your pyez config directory or run 'pyez doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// TokenEmpty returns an error when an index token is empty.
func TokenEmpty() *CLIError {
	return &CLIError{
		Message: "Index token cannot be empty",
		Hint:    "Enter a valid token or set PYEZ_INDEX_TOKEN environment variable",
		Code:    ExitUsage,
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}
