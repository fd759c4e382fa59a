package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/workflow"
)

// runEngine builds the app, runs one workflow and reports its outcome.
func runEngine(cmd *cobra.Command, name, subject string, routine func(ctx context.Context, e *workflow.Engine) error) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.runWorkflow(cmd.Context(), name, func(ctx context.Context) error {
		return routine(ctx, a.engine)
	})

	return a.finish(name, err, subject)
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <specifier>",
		Short: "Add a dependency, then lock and sync",
		Long: `Append a requirement specifier to the active project's manifest,
compile the lockfile with pip-compile and sync the environment with pip-sync.

Each call appends one line, even when the manifest already lists the
specifier. Existing lines keep their order.`,
		Example: `  pyez add requests
  pyez add "django>=5,<6"
  pyez add flask --project api`,
		Args: exactArgs(1, "a dependency specifier"),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := args[0]

			return runEngine(cmd, "add", spec, func(ctx context.Context, e *workflow.Engine) error {
				return e.AddDependency(ctx, spec)
			})
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Generate the manifest from source imports",
		Long: `Scan the project's source directory with pipreqs, replace the manifest
with the discovered imports and run the lock and sync chain.

Finding no external imports is not an error; the manifest is left untouched.`,
		Example: `  pyez scan
  pyez scan --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, "scan", "", func(ctx context.Context, e *workflow.Engine) error {
				_, err := e.ScanWorkflow(ctx)
				return err
			})
		},
	}
}

func newLockCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Compile the manifest into the lockfile",
		Long: `Run pip-compile on the active project's manifest, or on --input, and
write the pinned result to the project's lockfile. The environment is not
changed; run 'pyez sync --locked' to apply the lockfile.`,
		Example: `  pyez lock
  pyez lock --input requirements-dev.in`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, "lock", input, func(ctx context.Context, e *workflow.Engine) error {
				return e.Lock(ctx, input)
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Manifest to compile instead of the project's")

	return cmd
}

func newSyncCmd() *cobra.Command {
	var locked bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Lock the manifest and sync the environment",
		Long: `Compile the manifest into the lockfile, then make the interpreter's
installed packages match it exactly with pip-sync.

With --locked the existing lockfile is applied as is and nothing is compiled.
Packages marked as never-uninstall (pip, setuptools, the pyez collaborators)
are kept.`,
		Example: `  pyez sync
  pyez sync --locked`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, routine := "sync", (*workflow.Engine).SyncWorkflow
			if locked {
				name, routine = "sync-locked", (*workflow.Engine).SyncLocked
			}

			return runEngine(cmd, name, "", func(ctx context.Context, e *workflow.Engine) error {
				return routine(e, ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&locked, "locked", false, "Apply the existing lockfile without compiling")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Long: `List the packages installed in the interpreter pyez manages, as
reported by pip.`,
		Example: `  pyez list`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, "list", "", func(ctx context.Context, e *workflow.Engine) error {
				return e.ListInstalled(ctx)
			})
		},
	}
}
