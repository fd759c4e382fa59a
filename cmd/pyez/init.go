package main

import (
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/wizard"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Setup pyez for first use",
		Long: `Initialize pyez with a guided setup wizard.

The wizard will:
  1. Ask whether to manage one directory or several projects
  2. Choose the projects root (multi layout)
  3. Create and select a first project
  4. Show next steps

If a config file already exists, use --force to reconfigure without asking.`,
		Example: `  pyez init
  pyez init --force`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			return wizard.New(out, config.Load(), force).Run()
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reconfigure without prompting")

	return cmd
}
