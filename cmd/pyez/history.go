package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/history"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/paths"
)

func historyDir(cfg *config.Config) (string, error) {
	if dir := cfg.HistoryDir(); dir != "" {
		return dir, nil
	}

	dir, err := paths.HistoryDir()
	if err != nil {
		return "", clierrors.ConfigFailed("resolve history directory", err)
	}

	return dir, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded tool runs",
		Long: `Every pip-compile, pip-sync, pip and pipreqs run is recorded per pyez
invocation, with its command line, exit code and output. Disable recording
with 'pyez config set history.enabled false'.`,
		Example: `  pyez history list
  pyez history show 3f2a
  pyez history prune --older-than 168h`,
		Args: noArgs,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List recorded sessions",
		Long:    `List recorded sessions, newest first, with their run and failure counts.`,
		Example: `  pyez history list`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			dir, err := historyDir(config.Load())
			if err != nil {
				return err
			}

			sessions, err := history.ListSessions(dir)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot read run history", err)
			}

			if out.JSON {
				if sessions == nil {
					sessions = []history.Session{}
				}

				return out.PrintJSON(sessions)
			}

			if len(sessions) == 0 {
				out.Muted("No recorded sessions found.")
				return nil
			}

			rows := make([][]string, 0, len(sessions))

			for _, s := range sessions {
				rows = append(rows, []string{
					shortID(s.SessionID),
					s.StartedAt.Local().Format(time.DateTime),
					s.Command,
					s.Project,
					fmt.Sprintf("%d", s.Runs),
					fmt.Sprintf("%d", s.Failed),
				})
			}

			out.Table([]string{"SESSION", "STARTED", "COMMAND", "PROJECT", "RUNS", "FAILED"}, rows)

			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	var (
		search     string
		showOutput bool
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show the runs of a session",
		Long: `Show the tool runs recorded in a session. The session may be given by a
unique prefix of its id. --output includes each run's captured stdout and stderr.`,
		Example: `  pyez history show 3f2a
  pyez history show 3f2a --output --search error`,
		Args: exactArgs(1, "a session id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			dir, err := historyDir(config.Load())
			if err != nil {
				return err
			}

			session, err := history.FindSession(dir, args[0])
			if err != nil {
				return clierrors.Wrap(clierrors.ExitUsage, err.Error(), err).
					WithHint("Run 'pyez history list' to see recorded sessions")
			}

			entries, err := history.ReadRuns(dir, session.SessionID)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot read session runs", err)
			}

			if out.JSON {
				if entries == nil {
					entries = []history.Entry{}
				}

				return out.PrintJSON(entries)
			}

			for _, e := range entries {
				out.Print("#%d %s  %s  exit %d  %s\n", e.Seq, e.Status, e.Description, e.ExitCode, e.Duration().Round(time.Millisecond))
				out.Muted("    %s", strings.Join(e.Command, " "))

				if e.Error != "" {
					out.Muted("    error: %s", e.Error)
				}

				if !showOutput {
					continue
				}

				for _, line := range outputLines(e.Stdout+e.Stderr, search, raw) {
					out.Print("    %s\n", line)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showOutput, "output", false, "Include captured stdout and stderr")
	cmd.Flags().StringVar(&search, "search", "", "With --output, only show lines containing this substring")
	cmd.Flags().BoolVar(&raw, "raw", false, "Keep ANSI escape sequences in captured output")

	return cmd
}

// outputLines splits captured output, strips escape sequences unless raw and
// keeps lines matching search case-insensitively.
func outputLines(text, search string, raw bool) []string {
	var lines []string

	needle := strings.ToLower(search)

	for line := range strings.SplitSeq(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			continue
		}

		if !raw {
			line = ansi.Strip(line)
		}

		if needle != "" && !strings.Contains(strings.ToLower(line), needle) {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}

func newHistoryPruneCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than a duration",
		Long: `Delete recorded sessions older than the retention window, which is
history.retention (default 720h) unless --older-than is given.`,
		Example: `  pyez history prune
  pyez history prune --older-than 168h`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			window := cfg.HistoryRetention()

			if olderThan != "" {
				d, err := time.ParseDuration(olderThan)
				if err != nil {
					return clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Invalid duration for --older-than: %q", olderThan), err).
						WithHint("Use a Go duration such as 168h or 30m")
				}

				window = d
			}

			dir, err := historyDir(cfg)
			if err != nil {
				return err
			}

			removed, err := history.PruneOlderThan(dir, time.Now().Add(-window))
			if err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Cannot prune run history", err)
			}

			out.Success("Removed %d session(s)", removed)

			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "Override retention window (example: 168h)")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
