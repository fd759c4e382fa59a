// Package main is the entry point for the pyez CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/buildinfo"
	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/update"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Restore cursor visibility if a spinner or the TUI was active during a panic.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, "\033[?25h")
			panic(r)
		}
	}()

	buildinfo.Version = version
	buildinfo.Commit = commit

	out := output.Default()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return handleError(out, err)
	}

	return 0
}

// handleError prints err and returns the exit code for it.
// CLIErrors print their message and hint; Cobra usage errors get a help pointer.
func handleError(out *output.Writer, err error) int {
	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		out.Failure("%s", cliErr.Message)

		if cliErr.Hint != "" {
			out.Info("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	errStr := err.Error()

	// Format: "unknown command \"xyz\" for \"pyez\"\n\nDid you mean this?\n\t..."
	if strings.HasPrefix(errStr, "unknown command") {
		out.Failure("%s", errStr)

		if !strings.Contains(errStr, "--help") {
			out.Info("Run 'pyez --help' for usage")
		}

		return clierrors.ExitUsage
	}

	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "required flag") {
		out.Failure("%s", errStr)
		out.Info("Run 'pyez --help' for usage")

		return clierrors.ExitUsage
	}

	out.Failure("%s", errStr)

	return clierrors.ExitGeneral
}

// globalFlags are the persistent flags every command can read.
type globalFlags struct {
	jsonOutput bool
	quiet      bool
	noColor    bool
	noInput    bool
	yes        bool
	logLevel   string
	logFormat  string
	logFile    string
	logStderr  string
	project    string
	layout     string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithWriter(output.Default())
}

func newRootCmdWithWriter(out *output.Writer) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "pyez",
		Short: "Python dependency management with pip-tools and pipreqs",
		Long: `pyez manages the dependencies of one or more Python projects by
driving the standard tools: pip-tools compiles a manifest into a pinned
lockfile, pip-sync makes the interpreter match it, and pipreqs scans
source code for imports.

Every workflow runs one task at a time and streams the tools' output as
it arrives. A missing tool is detected and, with your consent, reinstalled.

Get started:
  pyez init                  Choose a layout and create a first project
  pyez add requests          Add a dependency, lock and sync
  pyez scan                  Generate the manifest from imports
  pyez tui                   Open the interactive view
  pyez doctor                Diagnose common issues`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out.JSON = pickBoolFlagOrEnv(flags.jsonOutput, "PYEZ_JSON")
			out.Quiet = pickBoolFlagOrEnv(flags.quiet, "PYEZ_QUIET")
			out.NoInput = pickBoolFlagOrEnv(flags.noInput, "PYEZ_NO_INPUT") || pickBoolFlagOrEnv(false, "CI")
			out.Yes = pickBoolFlagOrEnv(flags.yes, "PYEZ_YES")

			if flags.noColor {
				out.SetNoColor(true)

				color.NoColor = true
			}

			// Flags override the layered config through the env layer.
			if flags.layout != "" {
				if err := os.Setenv("PYEZ_LAYOUT", flags.layout); err != nil {
					return clierrors.ConfigFailed("apply --layout", err)
				}
			}

			logCfg := observability.Config{
				Level:          pickFlagOrEnv(flags.logLevel, "PYEZ_LOG_LEVEL", "info"),
				Format:         pickFlagOrEnv(flags.logFormat, "PYEZ_LOG_FORMAT", "json"),
				LogFile:        pickFlagOrEnv(flags.logFile, "PYEZ_LOG_FILE", ""),
				StderrMode:     pickFlagOrEnv(flags.logStderr, "PYEZ_LOG_STDERR", "auto"),
				InteractiveTTY: out.Terminal().IsTTY && isInteractiveCommand(cmd.CommandPath()),
				SessionID:      uuid.NewString(),
				CommandPath:    cmd.CommandPath(),
				Version:        version,
				Commit:         commit,
			}

			logger, cleanup, err := observability.NewLogger(&logCfg)
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			ctx := out.WithContext(cmd.Context())
			ctx = observability.WithLogger(ctx, logger)
			ctx = withGlobalFlags(ctx, &flags)
			cmd.SetContext(ctx)

			if cleanup != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, cleanup)
			}

			telemetryShutdown, telemetryErr := observability.SetupTelemetry(ctx, observability.TelemetryConfigFromEnv(version, commit))
			if telemetryErr != nil {
				logger.Warn("telemetry initialization failed", slog.String("error", telemetryErr.Error()))
			}

			if telemetryShutdown != nil {
				cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					return telemetryShutdown(shutdownCtx)
				})
			}

			updates := update.SettingsFrom(config.Load())
			if shouldBackgroundCheck(cmd, version, flags.quiet, flags.jsonOutput, updates) {
				updateWg.Go(func() {
					backgroundUpdateCheck(updates, version)
				})
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			updateWg.Wait()

			updates := update.SettingsFrom(config.Load())
			if shouldBackgroundCheck(cmd, version, flags.quiet, flags.jsonOutput, updates) {
				showUpdateNotice(out, updates, version)
			}

			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVar(&flags.quiet, "quiet", false, "Minimal output (for CI)")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&flags.noInput, "no-input", false, "Disable interactive prompts")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "Reinstall missing tools without asking")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: error, warn, info, debug")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: json, text")
	pf.StringVar(&flags.logFile, "log-file", "", "Optional structured log file path")
	pf.StringVar(&flags.logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")
	pf.StringVarP(&flags.project, "project", "p", "", "Project to act on (multi layout)")
	pf.StringVar(&flags.layout, "layout", "", "Project layout: single, multi")

	rootCmd.SuggestionsMinimumDistance = 2

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.CLIError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	// Workflows
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newTUICmd())

	// Resource commands (noun-first)
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())

	// Utility commands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newPathsCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

type flagsKey struct{}

func withGlobalFlags(ctx context.Context, flags *globalFlags) context.Context {
	return context.WithValue(ctx, flagsKey{}, flags)
}

func globalFlagsFrom(ctx context.Context) *globalFlags {
	if flags, ok := ctx.Value(flagsKey{}).(*globalFlags); ok && flags != nil {
		return flags
	}

	return &globalFlags{}
}

func wrapPostRunCleanup(postRun func(*cobra.Command, []string) error, cleanup func() error) func(*cobra.Command, []string) error {
	return wrapNamedPostRunCleanup(postRun, "logger resources", cleanup)
}

func wrapNamedPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))

	return v == "1" || v == "true" || v == "yes"
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	trimmed := strings.TrimSpace(flagValue)
	if trimmed != "" {
		return trimmed
	}

	if envValue := strings.TrimSpace(os.Getenv(envKey)); envValue != "" {
		return envValue
	}

	return fallback
}

func isInteractiveCommand(path string) bool {
	return path == "pyez tui" || strings.HasPrefix(path, "pyez tui ")
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// noArgs rejects positional arguments with a clearer message than cobra.NoArgs.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &clierrors.CLIError{
			Message: fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath()),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return nil
}

// exactArgs requires n positional arguments, naming them in the error.
func exactArgs(n int, names string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &clierrors.CLIError{
				Message: fmt.Sprintf("'%s' requires %s", cmd.CommandPath(), names),
				Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
				Code:    clierrors.ExitUsage,
			}
		}

		return nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the pyez binary version, git commit, and build date.`,
		Example: `  pyez version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if out.JSON {
				return out.PrintJSON(VersionInfo{
					Version: version,
					Commit:  commit,
					Date:    date,
				})
			}

			out.Print("pyez %s\n", version)
			out.Print("  commit: %s\n", commit)
			out.Print("  built:  %s\n", date)

			return nil
		},
	}
}

// updateWg lets PersistentPostRunE wait for the background check's state write.
var updateWg sync.WaitGroup

var skipUpdateCommands = map[string]bool{
	"update":     true,
	"version":    true,
	"completion": true,
	"doctor":     true,
	"tui":        true,
}

func shouldBackgroundCheck(cmd *cobra.Command, ver string, quiet, jsonOut bool, settings update.Settings) bool {
	if ver == "dev" || quiet || jsonOut || settings.Disabled() != "" {
		return false
	}

	return !skipUpdateCommands[cmd.Name()]
}

// backgroundUpdateCheck refreshes the cached release check when it is stale.
func backgroundUpdateCheck(settings update.Settings, currentVersion string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _ = update.NewChecker(settings, currentVersion).Check(ctx, false)
}

func showUpdateNotice(out *output.Writer, settings update.Settings, currentVersion string) {
	rep, ok := update.NewChecker(settings, currentVersion).Cached()
	if !ok || !rep.Newer {
		return
	}

	out.Print("\n")
	out.Info("A new version of pyez is available: v%s → v%s", currentVersion, rep.Latest)

	if rep.Channel == update.ChannelPrerelease {
		out.Muted("  (prerelease channel)")
	}

	out.Muted("  Run 'pyez update' to update")
}
