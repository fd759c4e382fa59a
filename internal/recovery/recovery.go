// Package recovery reinstalls a missing collaborator and retries the command
// that needed it, at most once per call.
//
// Transitions:
//
//	Ran -> Succeeded
//	Ran -> Failed                      (failure is not a missing tool)
//	Ran -> DetectedMissing -> Failed   (operator declined)
//	DetectedMissing -> Installing -> Failed          (install failed)
//	Installing -> Retry -> Resolved | Failed
package recovery

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/observability"
	"github.com/pyeasyenv/pyez/internal/runner"
	"github.com/pyeasyenv/pyez/internal/tools"
)

// State is a recovery state.
type State string

// States.
const (
	StateRan             State = "ran"
	StateSucceeded       State = "succeeded"
	StateDetectedMissing State = "detected_missing"
	StateInstalling      State = "installing"
	StateRetry           State = "retry"
	StateResolved        State = "resolved"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateResolved || s == StateFailed
}

// Confirmer asks the operator whether a missing tool may be reinstalled.
type Confirmer interface {
	ConfirmInstall(ctx context.Context, tool string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, tool string) bool

// ConfirmInstall calls f.
func (f ConfirmFunc) ConfirmInstall(ctx context.Context, tool string) bool {
	return f(ctx, tool)
}

// Always returns a Confirmer with a fixed answer, for --yes and --no-input.
func Always(answer bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return answer })
}

// Outcome describes how a recovered run ended.
type Outcome struct {
	// Result is the last result of the original command.
	Result runner.Result
	State  State
	// Tool is set once a missing collaborator was detected.
	Tool string
	// Path lists every state visited, in order.
	Path []State
}

// OK reports whether the command eventually succeeded.
func (o Outcome) OK() bool {
	return o.State == StateSucceeded || o.State == StateResolved
}

// Retried reports whether the tool was reinstalled and the original command
// ran again.
func (o Outcome) Retried() bool {
	return slices.Contains(o.Path, StateRetry)
}

// Policy wraps a Runner with missing-tool recovery.
type Policy struct {
	runner  runner.Runner
	catalog *tools.Catalog
	confirm Confirmer
	log     *logchan.Channel
	python  string
	logger  *slog.Logger
}

// New returns a Policy. python is the interpreter used for the install step.
func New(r runner.Runner, catalog *tools.Catalog, confirm Confirmer, log *logchan.Channel, python string) *Policy {
	return &Policy{
		runner:  r,
		catalog: catalog,
		confirm: confirm,
		log:     log,
		python:  python,
		logger:  slog.Default(),
	}
}

// WithLogger sets the structured logger.
func (p *Policy) WithLogger(l *slog.Logger) *Policy {
	p.logger = l
	return p
}

// Run executes cmd and, if it failed because a collaborator module is
// missing, offers one reinstall followed by one retry.
func (p *Policy) Run(ctx context.Context, cmd runner.Command) Outcome {
	ctx, span := observability.Tracer("pyez.recovery").Start(ctx, "recovery.run",
		trace.WithAttributes(attribute.String("collaborator.description", cmd.Description)))

	out := p.run(ctx, cmd)

	span.SetAttributes(attribute.String("recovery.state", string(out.State)))

	if out.Tool != "" {
		span.SetAttributes(attribute.String("recovery.tool", out.Tool))
	}

	observability.EndSpan(span, nil)

	return out
}

func (p *Policy) run(ctx context.Context, cmd runner.Command) Outcome {
	out := Outcome{State: StateRan, Path: []State{StateRan}}

	step := func(s State) {
		out.State = s
		out.Path = append(out.Path, s)
	}

	out.Result = p.runner.Run(ctx, cmd)

	if out.Result.OK() {
		step(StateSucceeded)
		return out
	}

	tool, ok := p.detect(cmd, out.Result)
	if !ok {
		step(StateFailed)
		return out
	}

	out.Tool = tool.Name
	step(StateDetectedMissing)

	p.logger.InfoContext(ctx, "missing collaborator detected", "tool", tool.Name)

	if !p.confirm.ConfirmInstall(ctx, tool.Name) {
		p.log.Infof("Please install '%s' manually to proceed.", tool.Name)
		step(StateFailed)

		return out
	}

	step(StateInstalling)

	inv, err := p.catalog.Invocation(tools.Pip, tools.ActionInstall, map[string]string{"package": tool.Package})
	if err != nil {
		p.log.Errorf("Error: %v", err)
		step(StateFailed)

		return out
	}

	install := p.runner.Run(ctx, runner.Command{
		Path:        p.python,
		Args:        inv.Args,
		Description: inv.Description,
		Dir:         cmd.Dir,
	})
	if !install.OK() {
		p.log.Infof("Please install '%s' manually to proceed.", tool.Name)
		step(StateFailed)

		return out
	}

	step(StateRetry)
	p.log.Infof("--- Retrying original command... ---")

	out.Result = p.runner.Run(ctx, cmd)

	if out.Result.OK() {
		step(StateResolved)
	} else {
		step(StateFailed)
	}

	return out
}

// detect reports which collaborator, if any, the failed result says is missing.
// Launch failures are never attributed to a missing module.
func (p *Policy) detect(cmd runner.Command, res runner.Result) (*tools.Collaborator, bool) {
	if res.LaunchErr != nil || res.ExitCode == 0 {
		return nil, false
	}

	if !p.catalog.IsMissingModule(res.Stderr) {
		return nil, false
	}

	return p.catalog.ToolForArgs(cmd.Args)
}
