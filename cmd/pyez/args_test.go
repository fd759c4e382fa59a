package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"

	clierrors "github.com/pyeasyenv/pyez/internal/errors"
)

// TestAllRunnableCommandsHaveArgsValidator fails if any runnable command is
// missing an Args validator.
func TestAllRunnableCommandsHaveArgsValidator(t *testing.T) {
	root := newRootCmd()

	var missing []string

	for _, cmd := range collectAllCommands(root) {
		if !cmd.Runnable() {
			continue
		}

		if cmd.Args == nil {
			missing = append(missing, cmd.CommandPath())
		}
	}

	if len(missing) > 0 {
		t.Errorf("runnable commands missing Args validator:\n  %s\n\nAdd Args: noArgs (or another validator) to each command.",
			strings.Join(missing, "\n  "))
	}
}

// collectAllCommands returns every command in the tree (including root).
func collectAllCommands(root *cobra.Command) []*cobra.Command {
	var all []*cobra.Command

	var walk func(cmd *cobra.Command)

	walk = func(cmd *cobra.Command) {
		all = append(all, cmd)
		for _, child := range cmd.Commands() {
			walk(child)
		}
	}

	walk(root)

	return all
}

func TestUnknownFlagReturnsCLIError(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"version", "--bogus"})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected error for unknown flag, got nil")
	}

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}

	if cliErr.Code != clierrors.ExitUsage {
		t.Errorf("exit code = %d, want %d (ExitUsage)", cliErr.Code, clierrors.ExitUsage)
	}

	if !strings.Contains(cliErr.Message, "unknown flag") {
		t.Errorf("message = %q, want to contain 'unknown flag'", cliErr.Message)
	}

	if !strings.Contains(cliErr.Hint, "pyez version --help") {
		t.Errorf("hint = %q, want to contain 'pyez version --help'", cliErr.Hint)
	}
}

func TestPositionalArgValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"no args given extra", []string{"version", "extra"}, "accepts no arguments"},
		{"add without specifier", []string{"add"}, "requires a dependency specifier"},
		{"add with two specifiers", []string{"add", "flask", "requests"}, "requires a dependency specifier"},
		{"select without name", []string{"project", "select"}, "requires a project name"},
		{"config set with one arg", []string{"config", "set", "layout"}, "requires a key and a value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)

			err := root.Execute()

			var cliErr *clierrors.CLIError
			if !clierrors.As(err, &cliErr) {
				t.Fatalf("expected CLIError, got %T: %v", err, err)
			}

			if cliErr.Code != clierrors.ExitUsage {
				t.Errorf("exit code = %d, want %d", cliErr.Code, clierrors.ExitUsage)
			}

			if !strings.Contains(cliErr.Message, tt.message) {
				t.Errorf("message = %q, want to contain %q", cliErr.Message, tt.message)
			}

			if !strings.Contains(cliErr.Hint, "--help") {
				t.Errorf("hint = %q, want to contain '--help'", cliErr.Hint)
			}
		})
	}
}
