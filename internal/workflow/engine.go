// Package workflow sequences collaborator steps into the operator actions:
// scan, add, lock, sync and list.
//
// Every precondition is checked before any process starts, and a failed
// precondition is reported as a single "Error: ..." line on the log channel.
// Steps run strictly in order; a step starts only after the previous one
// exited zero.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/recovery"
	"github.com/pyeasyenv/pyez/internal/runner"
	"github.com/pyeasyenv/pyez/internal/tools"
)

// Options configures an Engine.
type Options struct {
	Runner    runner.Runner
	Catalog   *tools.Catalog
	Confirmer recovery.Confirmer
	Log       *logchan.Channel
	Session   *project.Session
	// Python is the interpreter every collaborator runs under.
	Python string
	// Env is added to every collaborator environment.
	Env    []string
	Logger *slog.Logger
}

// Engine runs workflows for the session's active project.
type Engine struct {
	policy  *recovery.Policy
	catalog *tools.Catalog
	log     *logchan.Channel
	session *project.Session
	python  string
	env     []string
	logger  *slog.Logger
}

// New returns an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = tools.Default()
	}

	confirm := opts.Confirmer
	if confirm == nil {
		confirm = recovery.Always(false)
	}

	return &Engine{
		policy:  recovery.New(opts.Runner, catalog, confirm, opts.Log, opts.Python).WithLogger(logger),
		catalog: catalog,
		log:     opts.Log,
		session: opts.Session,
		python:  opts.Python,
		env:     opts.Env,
		logger:  logger,
	}
}

// Log returns the channel the engine reports to.
func (e *Engine) Log() *logchan.Channel {
	return e.log
}

// Session returns the project session.
func (e *Engine) Session() *project.Session {
	return e.session
}

// Catalog returns the collaborator catalog.
func (e *Engine) Catalog() *tools.Catalog {
	return e.catalog
}

// CheckResult is the startup state of the active project.
type CheckResult struct {
	Projects       int
	Project        *project.Project
	ManifestExists bool
	LockfileExists bool
}

// Check logs the startup hints: the project count in the multi layout and
// whether the active project's manifest exists.
func (e *Engine) Check() CheckResult {
	var res CheckResult

	if store := e.session.Store(); store != nil {
		if names, err := store.List(); err == nil {
			res.Projects = len(names)
			e.log.Infof("Found %d projects.", len(names))
		}
	}

	p, err := e.session.Current()
	if err != nil {
		return res
	}

	res.Project = p
	res.ManifestExists = p.HasManifest()
	res.LockfileExists = p.HasLockfile()

	if res.ManifestExists {
		e.log.Infof("Info: Found '%s'. Ready to create a lockfile.", e.display(p.ManifestPath))
	} else {
		e.log.Infof("Info: Default file '%s' not found.", e.display(p.ManifestPath))
		e.log.Infof("Tip: Run a scan ('pyez scan', or s in the interactive view) to generate it automatically.")
	}

	return res
}

// CreateProject creates a project and makes it the active one.
func (e *Engine) CreateProject(name, source string) (*project.Project, error) {
	store := e.session.Store()
	if store == nil {
		err := precondition(errors.New("the single layout has one fixed project"), "")
		e.log.Errorf("Error: Projects can only be created in the multi layout.")

		return nil, err
	}

	p, err := store.Create(name, source)
	if err != nil {
		switch {
		case errors.Is(err, project.ErrDuplicate):
			e.log.Errorf("Error: Project '%s' already exists.", name)
		case errors.Is(err, project.ErrInvalidName):
			e.log.Errorf("Error: Invalid project name '%s'.", name)
		default:
			e.log.Errorf("Error: %v", err)
		}

		return nil, err
	}

	e.log.Infof("--- Created new project: %s ---", name)

	if _, err := e.session.Select(name); err != nil {
		return p, err
	}

	return p, nil
}

// SelectProject makes name the active project.
func (e *Engine) SelectProject(name string) (*project.Project, error) {
	p, err := e.session.Select(name)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			e.log.Errorf("Error: Project '%s' not found.", name)
		} else {
			e.log.Errorf("Error: %v", err)
		}

		return nil, err
	}

	e.log.Infof("Switched to project '%s'.", p.Name)

	return p, nil
}

// SyncWorkflow compiles the manifest into the lockfile and then syncs the
// environment against it.
func (e *Engine) SyncWorkflow(ctx context.Context) error {
	ctx, span := e.start(ctx, "workflow.sync")

	err := func() error {
		p, err := e.current()
		if err != nil {
			return err
		}

		if !p.HasManifest() {
			e.log.Errorf("Error: Input file '%s' not found. Please select or generate it.", e.display(p.ManifestPath))
			return precondition(ErrManifestMissing, p.ManifestPath)
		}

		return e.lockAndSync(ctx, p, p.ManifestPath)
	}()

	observability.EndSpan(span, err)

	return err
}

// SyncLocked syncs the environment against the existing lockfile only.
func (e *Engine) SyncLocked(ctx context.Context) error {
	ctx, span := e.start(ctx, "workflow.sync_locked")

	err := func() error {
		p, err := e.current()
		if err != nil {
			return err
		}

		if !p.HasLockfile() {
			e.log.Errorf("Error: '%s' not found. Please create the lockfile first.", e.display(p.LockfilePath))
			return precondition(ErrLockfileMissing, p.LockfilePath)
		}

		return e.sync(ctx, p)
	}()

	observability.EndSpan(span, err)

	return err
}

// Lock compiles input into the lockfile. An empty input means the
// project's manifest.
func (e *Engine) Lock(ctx context.Context, input string) error {
	ctx, span := e.start(ctx, "workflow.lock")

	err := func() error {
		p, err := e.current()
		if err != nil {
			return err
		}

		if input == "" {
			input = p.ManifestPath
		} else if abs, absErr := filepath.Abs(input); absErr == nil {
			input = abs
		}

		if !isFile(input) {
			e.log.Errorf("Error: Input file '%s' not found. Please select or generate it.", e.display(input))
			return precondition(ErrManifestMissing, input)
		}

		return e.compile(ctx, p, input)
	}()

	observability.EndSpan(span, err)

	return err
}

// AddDependency appends spec to the manifest and then runs the sync chain.
func (e *Engine) AddDependency(ctx context.Context, spec string) error {
	ctx, span := e.start(ctx, "workflow.add")

	err := func() error {
		p, err := e.current()
		if err != nil {
			return err
		}

		if _, err := project.ValidateSpecifier(spec); err != nil {
			e.log.Errorf("Error: Please enter a valid package name.")
			return precondition(err, "")
		}

		added, err := p.AddDependency(spec)
		if err != nil {
			e.log.Errorf("Error: %v", err)
			return err
		}

		e.log.Infof("Added '%s' to '%s'.", added, filepath.Base(p.ManifestPath))
		e.log.Infof("Automatically updating lockfile and syncing environment...")

		return e.lockAndSync(ctx, p, p.ManifestPath)
	}()

	observability.EndSpan(span, err)

	return err
}

// ScanResult is what a scan found.
type ScanResult struct {
	Dependencies []string
}

// ScanWorkflow scans the project source for imports, replaces the manifest
// with them and runs the sync chain. Finding no imports is not an error.
func (e *Engine) ScanWorkflow(ctx context.Context) (ScanResult, error) {
	ctx, span := e.start(ctx, "workflow.scan")

	res, err := e.scan(ctx)

	span.SetAttributes(attribute.Int("scan.dependencies", len(res.Dependencies)))
	observability.EndSpan(span, err)

	return res, err
}

func (e *Engine) scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	p, err := e.current()
	if err != nil {
		return res, err
	}

	e.log.Infof("Scanning code for imports...")

	action := tools.ActionScan
	if e.session.IsSingle() {
		action = tools.ActionScanWrite
	}

	cmd, err := e.command(tools.Pipreqs, action, p)
	if err != nil {
		return res, err
	}

	out := e.policy.Run(ctx, cmd)
	if !out.OK() {
		e.log.Infof("Could not determine dependencies from code scan.")
		return res, stepError(cmd, out)
	}

	if action == tools.ActionScanWrite {
		deps, readErr := p.Dependencies()
		if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
			e.log.Errorf("Error: %v", readErr)
			return res, readErr
		}

		res.Dependencies = deps
	} else {
		res.Dependencies = project.ParseScanOutput(out.Result.Stdout)
	}

	if len(res.Dependencies) == 0 {
		e.log.Infof("No external imports found in the code.")
		return res, nil
	}

	if action == tools.ActionScan {
		if err := p.ReplaceDependencies(res.Dependencies); err != nil {
			e.log.Errorf("Error: %v", err)
			return res, err
		}
	}

	e.log.Infof("Saved %d scanned imports to '%s'.", len(res.Dependencies), filepath.Base(p.ManifestPath))
	e.log.Infof("Automatically updating lockfile and syncing environment...")

	return res, e.lockAndSync(ctx, p, p.ManifestPath)
}

// ListInstalled lists the packages installed in the interpreter's environment.
func (e *Engine) ListInstalled(ctx context.Context) error {
	ctx, span := e.start(ctx, "workflow.list")

	cmd, err := e.command(tools.Pip, tools.ActionList, nil)
	if err == nil {
		err = e.step(ctx, cmd)
	}

	observability.EndSpan(span, err)

	return err
}

func (e *Engine) lockAndSync(ctx context.Context, p *project.Project, input string) error {
	if err := e.compile(ctx, p, input); err != nil {
		return err
	}

	return e.sync(ctx, p)
}

func (e *Engine) compile(ctx context.Context, p *project.Project, input string) error {
	inv, err := e.catalog.Invocation(tools.PipTools, tools.ActionCompile, map[string]string{
		"manifest": input,
		"lockfile": p.LockfilePath,
	})
	if err != nil {
		e.log.Errorf("Error: %v", err)
		return err
	}

	return e.step(ctx, e.toCommand(inv, p.Dir))
}

func (e *Engine) sync(ctx context.Context, p *project.Project) error {
	cmd, err := e.command(tools.PipTools, tools.ActionSync, p)
	if err != nil {
		return err
	}

	if protected := e.catalog.NeverUninstall(); len(protected) > 0 {
		e.log.Infof("Protected from uninstall: %s", strings.Join(protected, ", "))
	}

	return e.step(ctx, cmd)
}

// step runs one collaborator command under the recovery policy.
func (e *Engine) step(ctx context.Context, cmd runner.Command) error {
	ctx, span := observability.Tracer("pyez.workflow").Start(ctx, "workflow.step",
		trace.WithAttributes(attribute.String("step.description", cmd.Description)))

	out := e.policy.Run(ctx, cmd)

	var err error
	if !out.OK() {
		err = stepError(cmd, out)
	}

	observability.EndSpan(span, err)

	return err
}

func stepError(cmd runner.Command, out recovery.Outcome) *StepError {
	return &StepError{
		Step:     cmd.Description,
		ExitCode: out.Result.ExitCode,
		Stderr:   out.Result.Stderr,
		Tool:     out.Tool,
		State:    out.State,
		Retried:  out.Retried(),
	}
}

// command expands a catalog action for p. p may be nil for actions that do
// not touch a project.
func (e *Engine) command(tool, action string, p *project.Project) (runner.Command, error) {
	vars := map[string]string{}
	dir := ""

	if p != nil {
		vars["dir"] = p.Source
		vars["manifest"] = p.ManifestPath
		vars["lockfile"] = p.LockfilePath
		dir = p.Dir
	}

	inv, err := e.catalog.Invocation(tool, action, vars)
	if err != nil {
		e.log.Errorf("Error: %v", err)
		return runner.Command{}, err
	}

	return e.toCommand(inv, dir), nil
}

func (e *Engine) toCommand(inv tools.Invocation, dir string) runner.Command {
	return runner.Command{
		Path:        e.python,
		Args:        inv.Args,
		Description: inv.Description,
		Dir:         dir,
		Env:         e.env,
	}
}

func (e *Engine) current() (*project.Project, error) {
	p, err := e.session.Current()
	if err != nil {
		e.log.Errorf("Error: No project selected.")
		return nil, precondition(project.ErrNoProjectSelected, "")
	}

	return p, nil
}

func (e *Engine) start(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := observability.Tracer("pyez.workflow").Start(ctx, name)

	if p, err := e.session.Current(); err == nil {
		span.SetAttributes(attribute.String("project.name", p.Name))
	}

	e.logger.DebugContext(ctx, "workflow starting", "workflow", name)

	return ctx, span
}

// display shortens path relative to the working directory when possible.
func (e *Engine) display(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}

	return path
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
