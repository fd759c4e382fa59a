// Package doctor provides diagnostic checks for pyez health.
//
// This package implements a check framework that validates:
//   - the Python interpreter collaborators run under
//   - each collaborator's installed version against its minimum
//   - the projects root and active selection
//   - the package index credentials
//   - CLI version against the latest release on the update channel
//   - whether the binary can be replaced in place
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/pyeasyenv/pyez/internal/auth"
	"github.com/pyeasyenv/pyez/internal/buildinfo"
	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/tools"
	"github.com/pyeasyenv/pyez/internal/update"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// runTimeout bounds each interpreter invocation.
const runTimeout = 10 * time.Second

var versionRe = regexp.MustCompile(`\d+(?:\.\d+)+`)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Runner executes diagnostic checks.
type Runner struct {
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a runner with the default checks for cfg and catalog.
func New(cfg *config.Config, catalog *tools.Catalog) *Runner {
	r := &Runner{}

	python, pyErr := tools.ResolveInterpreter(cfg.PythonExec())

	r.AddCheck("Python", func(ctx context.Context) Result {
		return checkPython(ctx, python, pyErr)
	})

	for _, name := range catalog.Names() {
		collab, _ := catalog.Get(name)
		r.AddCheck(collab.DisplayName, func(ctx context.Context) Result {
			if pyErr != nil {
				return Result{Status: StatusFail, Message: "Skipped (no interpreter)"}
			}

			return CheckCollaborator(ctx, python, catalog, collab)
		})
	}

	r.AddCheck("Projects", func(context.Context) Result {
		return checkProjects(cfg)
	})
	r.AddCheck("Package Index", func(context.Context) Result {
		return checkIndex(cfg.IndexURL())
	})
	r.AddCheck("Protected", func(context.Context) Result {
		return Result{Status: StatusPass, Message: strings.Join(catalog.NeverUninstall(), ", ")}
	})
	checker := update.NewChecker(update.SettingsFrom(cfg), buildinfo.Version)
	r.AddCheck("CLI Version", func(ctx context.Context) Result {
		return checkCLIVersion(ctx, checker)
	})
	r.AddCheck("Install", func(context.Context) Result {
		exe, err := os.Executable()
		return checkInstall(exe, err)
	})

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

func checkPython(ctx context.Context, python string, resolveErr error) Result {
	if resolveErr != nil {
		return Result{
			Status:  StatusFail,
			Message: "Not found",
			Detail:  "Set python.exec or put python3 on PATH",
		}
	}

	out, _, err := runPython(ctx, python, "--version")
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("Found at %s but version unknown", python),
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s at %s", firstLine(out), python),
	}
}

// CheckCollaborator runs the collaborator's version action under python and
// compares the reported version with its minimum.
func CheckCollaborator(ctx context.Context, python string, catalog *tools.Catalog, collab *tools.Collaborator) Result {
	inv, err := catalog.Invocation(collab.Name, tools.ActionVersion, nil)
	if err != nil {
		return Result{Status: StatusWarn, Message: "No version action", Detail: err.Error()}
	}

	out, stderr, err := runPython(ctx, python, inv.Args...)
	if err != nil {
		if catalog.IsMissingModule(stderr) {
			return Result{
				Status:  StatusFail,
				Message: "Not installed",
				Detail:  fmt.Sprintf("Install with: %s -m pip install %s", python, collab.Package),
			}
		}

		return Result{Status: StatusWarn, Message: "Found but version unknown", Detail: err.Error()}
	}

	raw := versionRe.FindString(out)
	if raw == "" {
		return Result{Status: StatusWarn, Message: "Found but version unknown", Detail: firstLine(out)}
	}

	if collab.MinVersion == "" {
		return Result{Status: StatusPass, Message: "v" + raw}
	}

	have, err := semver.NewVersion(raw)
	if err != nil {
		return Result{Status: StatusWarn, Message: "v" + raw, Detail: err.Error()}
	}

	want, err := semver.NewVersion(collab.MinVersion)
	if err != nil {
		return Result{Status: StatusWarn, Message: "v" + raw, Detail: err.Error()}
	}

	if have.LessThan(want) {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (v%s or newer recommended)", raw, collab.MinVersion),
			Detail:  fmt.Sprintf("Upgrade with: %s -m pip install --upgrade %s", python, collab.Package),
		}
	}

	return Result{Status: StatusPass, Message: "v" + raw}
}

func checkProjects(cfg *config.Config) Result {
	files := project.Files{Manifest: cfg.ManifestName(), Lockfile: cfg.LockfileName()}

	if cfg.Layout() == config.LayoutSingle {
		cwd, err := os.Getwd()
		if err != nil {
			return Result{Status: StatusFail, Message: "Working directory unavailable", Detail: err.Error()}
		}

		p := project.Single(cwd, files.Manifest, files.Lockfile)
		if !p.HasManifest() {
			return Result{
				Status:  StatusWarn,
				Message: fmt.Sprintf("Single layout, no %s yet", files.Manifest),
				Detail:  "Run 'pyez scan' or 'pyez add <package>'",
			}
		}

		return Result{Status: StatusPass, Message: fmt.Sprintf("Single layout (%s)", files.Manifest)}
	}

	root := cfg.ProjectsRoot()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("No projects root at %s", root),
			Detail:  "Run 'pyez project create <name>'",
		}
	}

	store, err := project.Open(root, files)
	if err != nil {
		return Result{Status: StatusFail, Message: root, Detail: err.Error()}
	}

	names, err := store.List()
	if err != nil {
		return Result{Status: StatusFail, Message: root, Detail: err.Error()}
	}

	current, err := project.NewSession(store).Current()
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d projects, none selected", len(names)),
			Detail:  "Run 'pyez project select <name>'",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d projects, '%s' selected", len(names), current.Name),
	}
}

func checkIndex(indexURL string) Result {
	if indexURL == "" {
		return Result{Status: StatusPass, Message: "Default index"}
	}

	source, token := auth.GetToken()
	if token == "" {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (no token)", indexURL),
			Detail:  "Run 'pyez index login' if the index requires authentication",
		}
	}

	if _, err := auth.IndexURLWithToken(indexURL, token); err != nil {
		return Result{Status: StatusFail, Message: indexURL, Detail: err.Error()}
	}

	return Result{Status: StatusPass, Message: fmt.Sprintf("%s (via %s)", indexURL, source)}
}

// checkCLIVersion compares the running version with the newest release on
// the configured channel. A fresh cached check is used as is, and a stale
// one stands in when GitHub cannot be reached.
func checkCLIVersion(ctx context.Context, checker *update.Checker) Result {
	current := checker.Current

	if current == "dev" {
		return Result{
			Status:  StatusWarn,
			Message: "Development build (version check skipped)",
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rep, err := checker.Check(checkCtx, false)
	if err != nil {
		cached, ok := checker.Cached()
		if !ok {
			return Result{
				Status:  StatusWarn,
				Message: fmt.Sprintf("v%s (could not check for updates)", current),
				Detail:  err.Error(),
			}
		}

		rep = cached
	}

	if rep.Disabled != "" {
		return Result{
			Status:  StatusPass,
			Message: fmt.Sprintf("v%s (update checks off: %s)", current, rep.Disabled),
		}
	}

	var detail string
	if rep.Cached {
		detail = "Last checked " + rep.CheckedAt.UTC().Format(time.RFC3339)
	}

	if rep.Newer {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (v%s available on %s)", current, rep.Latest, rep.Channel),
			Detail:  "Run 'pyez update' to update",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("v%s (latest on %s)", current, rep.Channel),
		Detail:  detail,
	}
}

// checkInstall reports whether `pyez update` can replace the binary in place.
func checkInstall(exe string, err error) Result {
	if err != nil {
		return Result{Status: StatusWarn, Message: "Could not locate the pyez binary", Detail: err.Error()}
	}

	if update.CanReplace(exe) {
		return Result{Status: StatusPass, Message: exe}
	}

	return Result{
		Status:  StatusWarn,
		Message: exe,
		Detail:  "Directory is not writable; 'pyez update' will ask for sudo",
	}
}

// runPython runs python with args and returns its combined version output.
func runPython(ctx context.Context, python string, args ...string) (stdout, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	var outBuf, errBuf strings.Builder

	cmd := exec.CommandContext(ctx, python, args...) //nolint:gosec // G204: interpreter from config or PATH
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()

	// Older interpreters print --version to stderr.
	stdout = outBuf.String()
	if strings.TrimSpace(stdout) == "" && err == nil {
		stdout = errBuf.String()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), firstLine(errBuf.String()))
	}

	return stdout, errBuf.String(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx > 0 {
		s = s[:idx]
	}

	return s
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		symbol := r.Status.Symbol()
		padding := maxNameLen - len(r.Name) + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", symbol, len(r.Name)+padding, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

const (
	checkMark   = "✓" // ✓
	xMark       = "✗" // ✗
	warningMark = "⚠" // ⚠
)
