package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pyeasyenv/pyez/internal/auth"
	"github.com/pyeasyenv/pyez/internal/config"
	clierrors "github.com/pyeasyenv/pyez/internal/errors"
	"github.com/pyeasyenv/pyez/internal/history"
	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/paths"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/prompt"
	"github.com/pyeasyenv/pyez/internal/recovery"
	"github.com/pyeasyenv/pyez/internal/runner"
	"github.com/pyeasyenv/pyez/internal/scheduler"
	"github.com/pyeasyenv/pyez/internal/tools"
	"github.com/pyeasyenv/pyez/internal/workflow"
)

// app is the per-invocation wiring shared by the workflow commands.
type app struct {
	cfg     *config.Config
	out     *output.Writer
	logger  *slog.Logger
	session *project.Session
	log     *logchan.Channel
	engine  *workflow.Engine
	history *history.Store

	// mu serializes transcript writes between the pump and the prompt.
	mu sync.Mutex
}

// loadSession builds the project session for the configured layout. In the
// multi layout --project selects a project for this invocation only.
func loadSession(cfg *config.Config, projectFlag string) (*project.Session, error) {
	files := project.Files{Manifest: cfg.ManifestName(), Lockfile: cfg.LockfileName()}

	if cfg.Layout() == config.LayoutSingle {
		if projectFlag != "" {
			return nil, clierrors.New(clierrors.ExitUsage, "--project cannot be used with the single layout").
				WithHint("The single layout manages the current directory; run 'pyez config set layout multi' to manage several projects")
		}

		cwd, err := os.Getwd()
		if err != nil {
			return nil, clierrors.Wrap(clierrors.ExitGeneral, "Cannot determine the working directory", err)
		}

		return project.SingleSession(project.Single(cwd, files.Manifest, files.Lockfile)), nil
	}

	store, err := project.Open(cfg.ProjectsRoot(), files)
	if err != nil {
		return nil, clierrors.Wrap(clierrors.ExitConfig, fmt.Sprintf("Cannot open projects root %s", cfg.ProjectsRoot()), err).
			WithHint("Check the projects.root setting with 'pyez config get projects.root'")
	}

	session := project.NewSession(store)

	if projectFlag != "" {
		if _, err := session.Use(projectFlag); err != nil {
			return nil, projectError(err, projectFlag)
		}
	}

	return session, nil
}

// newApp resolves the interpreter and builds the engine. A nil confirmer
// asks on the terminal.
func newApp(cmd *cobra.Command, confirmer recovery.Confirmer) (*app, error) {
	ctx := cmd.Context()
	out := output.FromContext(ctx)
	logger := observability.FromContext(ctx)
	flags := globalFlagsFrom(ctx)

	cfg := config.Load()

	session, err := loadSession(cfg, flags.project)
	if err != nil {
		return nil, err
	}

	python, err := tools.ResolveInterpreter(cfg.PythonExec())
	if err != nil {
		return nil, clierrors.Wrap(clierrors.ExitConfig, "No Python interpreter found", err).
			WithHint("Activate a virtual environment or run 'pyez config set python.exec /path/to/python'")
	}

	env, err := auth.IndexEnv(cfg.IndexURL())
	if err != nil {
		return nil, clierrors.ConfigFailed("configure package index", err)
	}

	collabDir, err := paths.CollaboratorsDir()
	if err != nil {
		collabDir = ""
	}

	catalog, err := tools.Load(collabDir)
	if err != nil {
		return nil, clierrors.Wrap(clierrors.ExitConfig, "Invalid collaborator definitions", err).
			WithHint(fmt.Sprintf("Fix or remove the files in %s", collabDir))
	}

	a := &app{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		session: session,
		log:     logchan.New(),
	}

	opts := []runner.Option{runner.WithLogger(logger), runner.WithEnv(env...)}

	if cfg.HistoryEnabled() {
		if store, histErr := a.openHistory(cmd.CommandPath()); histErr != nil {
			logger.Warn("run history disabled", slog.String("error", histErr.Error()))
		} else {
			a.history = store
			opts = append(opts, runner.WithRecorder(store))
		}
	}

	if confirmer == nil {
		confirmer = &prompt.InstallConfirmer{
			Prompter: prompt.New(out),
			Out:      out,
			Before:   a.flush,
		}
	}

	a.engine = workflow.New(workflow.Options{
		Runner:    runner.New(a.log, opts...),
		Catalog:   catalog,
		Confirmer: confirmer,
		Log:       a.log,
		Session:   session,
		Python:    python,
		Logger:    logger,
	})

	logger.Debug("engine ready",
		slog.String("python", python),
		slog.String("layout", cfg.Layout()),
		slog.Bool("history", a.history != nil),
	)

	return a, nil
}

func (a *app) openHistory(command string) (*history.Store, error) {
	dir := a.cfg.HistoryDir()
	if dir == "" {
		var err error
		if dir, err = paths.HistoryDir(); err != nil {
			return nil, err
		}
	}

	var name string
	if p, err := a.session.Current(); err == nil {
		name = p.Name
	}

	return history.NewStore(history.Options{
		SessionID: uuid.NewString(),
		Dir:       dir,
		Command:   command,
		Project:   name,
	})
}

// Close releases the history store.
func (a *app) Close() {
	if a.history == nil {
		return
	}

	if err := a.history.Close(); err != nil {
		a.logger.Warn("close run history", slog.String("error", err.Error()))
	}
}

func (a *app) print(lines []logchan.Line) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, l := range lines {
		a.out.Transcript(l.Display())
	}
}

// flush prints pending transcript lines ahead of a prompt.
func (a *app) flush() {
	a.print(a.log.Drain())
}

// runWorkflow runs routine as the only task and streams the transcript until
// it finishes. The routine is not canceled by an interrupted ctx.
func (a *app) runWorkflow(ctx context.Context, description string, routine func(ctx context.Context) error) error {
	sched := scheduler.New(nil).WithLogger(a.logger)

	pumpCtx, stop := context.WithCancel(context.Background())
	pumped := make(chan struct{})

	go func() {
		defer close(pumped)
		a.log.Pump(pumpCtx, a.cfg.PollInterval(), a.print)
	}()

	task, err := sched.Start(ctx, description, routine)
	if err != nil {
		stop()
		<-pumped

		return workflowError(err, "")
	}

	err = task.Wait()

	stop()
	<-pumped

	if p, curErr := a.session.Current(); curErr == nil && a.history != nil {
		a.history.SetProject(p.Name)
	}

	return err
}

// workflowResult is the JSON form of a finished workflow.
type workflowResult struct {
	Workflow     string   `json:"workflow"`
	Project      string   `json:"project"`
	Manifest     string   `json:"manifest,omitempty"`
	Lockfile     string   `json:"lockfile,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Session      string   `json:"historySession,omitempty"`
}

func (a *app) result(name string) workflowResult {
	res := workflowResult{Workflow: name}

	if p, err := a.session.Current(); err == nil {
		res.Project = p.Name
		res.Manifest = p.ManifestPath
		res.Lockfile = p.LockfilePath

		if deps, depErr := p.Dependencies(); depErr == nil {
			res.Dependencies = deps
		}
	}

	if a.history != nil {
		res.Session = a.history.SessionID()
	}

	return res
}

// finish reports a workflow's outcome in JSON mode.
func (a *app) finish(name string, err error, subject string) error {
	if err != nil {
		return workflowError(err, subject)
	}

	if a.out.JSON {
		return a.out.PrintJSON(a.result(name))
	}

	return nil
}

// workflowError maps engine and store errors onto CLI errors. subject is the
// project name or dependency the command was given.
func workflowError(err error, subject string) error {
	if err == nil {
		return nil
	}

	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		return cliErr
	}

	var stepErr *workflow.StepError
	if errors.As(err, &stepErr) {
		if stepErr.ToolMissing() {
			return clierrors.ToolMissing(stepErr.Tool)
		}

		return clierrors.CollaboratorFailed(stepErr.Step, stepErr.ExitCode, stepErr.Stderr)
	}

	var pre *workflow.PreconditionError
	path := ""
	if errors.As(err, &pre) {
		path = pre.Path
	}

	switch {
	case errors.Is(err, scheduler.ErrBusy):
		return clierrors.TaskBusy(subject)
	case errors.Is(err, workflow.ErrManifestMissing):
		return clierrors.ManifestNotFound(path)
	case errors.Is(err, workflow.ErrLockfileMissing):
		return clierrors.LockfileNotFound(path)
	case errors.Is(err, project.ErrInvalidSpecifier):
		return clierrors.InvalidDependency(subject)
	}

	if mapped := projectError(err, subject); mapped != err {
		return mapped
	}

	var panicErr *scheduler.PanicError
	if errors.As(err, &panicErr) {
		return clierrors.Wrap(clierrors.ExitGeneral, "An unexpected error occurred", err).
			WithHint("Run with --log-level=debug and report the log file shown by 'pyez paths'")
	}

	return clierrors.Wrap(clierrors.ExitGeneral, err.Error(), err)
}

// projectError maps project store errors, returning err unchanged otherwise.
func projectError(err error, name string) error {
	switch {
	case errors.Is(err, project.ErrNoProjectSelected):
		return clierrors.NoProjectSelected()
	case errors.Is(err, project.ErrNotFound):
		return clierrors.ProjectNotFound(name)
	case errors.Is(err, project.ErrDuplicate):
		return clierrors.DuplicateProject(name)
	case errors.Is(err, project.ErrInvalidName):
		return clierrors.InvalidProjectName(name)
	}

	return err
}
