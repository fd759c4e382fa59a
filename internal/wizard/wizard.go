// Package wizard provides the initialization wizard for pyez.
//
// The wizard guides users through first-time setup:
//  1. Welcome message
//  2. Project layout selection
//  3. Projects root and first project (multi layout)
//  4. Config storage
//  5. Next steps guidance
package wizard

import (
	"errors"
	"fmt"
	"os"

	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/paths"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/prompt"
)

var layoutChoices = []string{
	"Several projects under one root (multi)",
	"This directory is the project (single)",
}

// Wizard handles the initialization flow.
type Wizard struct {
	out      *output.Writer
	prompter *prompt.Prompter
	cfg      *config.Config
	force    bool
}

// New creates a new initialization wizard.
func New(out *output.Writer, cfg *config.Config, force bool) *Wizard {
	return &Wizard{
		out:      out,
		prompter: prompt.New(out),
		cfg:      cfg,
		force:    force,
	}
}

// Run executes the initialization wizard.
func (w *Wizard) Run() error {
	w.out.Println("Welcome to pyez!")
	w.out.Println("================")
	w.out.Println()
	w.out.Println("pyez keeps a Python environment in step with its dependency manifest")
	w.out.Println("by driving pipreqs, pip-tools and pip for you.")
	w.out.Println()

	if path, err := paths.ConfigFile(); err == nil && fileExists(path) && !w.force {
		w.out.Warning("Existing configuration found at %s", path)

		if !w.prompter.CanPrompt() {
			w.out.Println()
			w.out.Info("Run with --force to reconfigure")
			return nil
		}

		overwrite, err := w.prompter.Confirm("Reconfigure?", false)
		if err != nil {
			return err
		}

		if !overwrite {
			w.out.Println()
			w.out.Success("Keeping existing configuration")
			w.showNextSteps()
			return nil
		}

		w.out.Println()
	}

	if !w.prompter.CanPrompt() {
		w.out.Failure("Cannot run init wizard in non-interactive mode")
		w.out.Println()
		w.out.Info("Either:")
		w.out.Print("  1. Run without --no-input flag\n")
		w.out.Print("  2. Run 'pyez config set layout single' for a one-project directory\n")
		w.out.Print("  3. Run 'pyez project create <name>' to start a multi-project root\n")
		return nil
	}

	w.out.Println("Step 1: Layout")
	w.out.Println("--------------")

	choice, err := w.prompter.Select("How are your projects organized?", layoutChoices)
	if err != nil {
		return fmt.Errorf("failed to select layout: %w", err)
	}

	if choice == 1 {
		return w.finishSingle()
	}

	return w.finishMulti()
}

func (w *Wizard) finishSingle() error {
	if err := w.cfg.Set("layout", config.LayoutSingle); err != nil {
		return fmt.Errorf("save layout: %w", err)
	}

	w.out.Println()
	w.out.Success("Using this directory as the project")
	w.out.Muted("Manifest: %s  Lockfile: %s", w.cfg.ManifestName(), w.cfg.LockfileName())
	w.out.Println()
	w.out.Success("pyez is ready!")
	w.showNextSteps()

	return nil
}

func (w *Wizard) finishMulti() error {
	w.out.Println()
	w.out.Println("Step 2: Projects")
	w.out.Println("----------------")
	w.out.Println("Each project gets its own directory with a manifest and a lockfile.")
	w.out.Println()

	root, err := w.prompter.Input("Projects root", w.cfg.ProjectsRoot())
	if err != nil {
		return fmt.Errorf("failed to read projects root: %w", err)
	}

	if err := w.cfg.Set("layout", config.LayoutMulti); err != nil {
		return fmt.Errorf("save layout: %w", err)
	}

	if err := w.cfg.Set("projects.root", root); err != nil {
		return fmt.Errorf("save projects root: %w", err)
	}

	store, err := project.Open(root, project.Files{Manifest: w.cfg.ManifestName(), Lockfile: w.cfg.LockfileName()})
	if err != nil {
		w.out.Failure("Could not open projects root")
		w.out.Muted("%s", err.Error())
		return nil
	}

	name, err := w.prompter.Input("First project name (blank to skip)", "")
	if err != nil {
		return fmt.Errorf("failed to read project name: %w", err)
	}

	if name == "" {
		w.out.Println()
		w.out.Success("pyez is ready!")
		w.showNextSteps()
		return nil
	}

	source, err := w.prompter.Input("Directory to scan for imports", ".")
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	if _, err := store.Create(name, source); err != nil {
		if !errors.Is(err, project.ErrDuplicate) {
			w.out.Failure("Could not create project '%s'", name)
			w.out.Muted("%s", err.Error())
			return nil
		}

		w.out.Warning("Project '%s' already exists, selecting it", name)
	}

	if _, err := project.NewSession(store).Select(name); err != nil {
		w.out.Warning("Failed to select project: %s", err.Error())
	} else {
		w.out.Success("Selected project: %s", name)
	}

	w.out.Println()
	w.out.Success("pyez is ready!")
	w.showNextSteps()

	return nil
}

func (w *Wizard) showNextSteps() {
	w.out.Println()
	w.out.Println("Next steps:")
	w.out.Println("  pyez doctor        Check your setup")
	w.out.Println("  pyez scan          Build the manifest from your imports")
	w.out.Println("  pyez tui           Open the interactive view")
	w.out.Println("  pyez --help        See all commands")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
