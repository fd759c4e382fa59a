package main

import (
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/doctor"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/paths"
	"github.com/pyeasyenv/pyez/internal/tools"
)

// DoctorReport is the JSON form of the doctor results.
type DoctorReport struct {
	Results  []doctor.Result `json:"results"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Warnings int             `json:"warnings"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify configuration and environment issues.

Checks performed:
  - Python interpreter resolution and version
  - pip, pip-tools and pipreqs availability and version
  - Project layout and the selected project
  - Private package index configuration
  - pyez version`,
		Example: `  pyez doctor
  pyez doctor --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			collabDir, err := paths.CollaboratorsDir()
			if err != nil {
				collabDir = ""
			}

			catalog, err := tools.Load(collabDir)
			if err != nil {
				return clierrors.Wrap(clierrors.ExitConfig, "Invalid collaborator definitions", err)
			}

			results := doctor.New(config.Load(), catalog).Run(cmd.Context())
			passed, failed, warnings := doctor.Summary(results)

			if out.JSON {
				return out.PrintJSON(DoctorReport{
					Results:  results,
					Passed:   passed,
					Failed:   failed,
					Warnings: warnings,
				})
			}

			out.Println("pyez doctor")
			out.Println("===========")
			out.Println()

			doctor.RenderResults(results, out.Print, out.Success, out.Warning, out.Failure, out.Muted)

			out.Println()
			out.Print("%d passed", passed)

			if failed > 0 {
				out.Print(", %d failed", failed)
			}

			if warnings > 0 {
				out.Print(", %d warning(s)", warnings)
			}

			out.Println()

			return nil
		},
	}
}
