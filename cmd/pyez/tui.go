package main

import (
	"github.com/spf13/cobra"

	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/tui"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive view",
		Long: `Open a full-screen view with the project list, a dependency input and
the live transcript of every workflow.

Keys:
  s scan   a add   y sync   l list   n new project
  ↑/↓ move   enter select   i type   q quit

Action keys are ignored while a workflow runs.`,
		Example: `  pyez tui
  pyez tui --project api`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if !out.Terminal().IsTTY || out.NoInput {
				return clierrors.New(clierrors.ExitUsage, "The interactive view needs a terminal").
					WithHint("Use the workflow commands (add, scan, sync, list) in scripts")
			}

			bridge := tui.NewBridge()

			a, err := newApp(cmd, bridge)
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(tui.Options{
				Engine:       a.engine,
				Bridge:       bridge,
				PollInterval: a.cfg.PollInterval(),
				Logger:       a.logger,
			})
		},
	}
}
