// Package runner executes collaborator processes and streams their output
// into the log channel.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/observability"
)

// LaunchExitCode is the exit code reported when a process could not be started.
const LaunchExitCode = -1

const maxLineBytes = 1 << 20

// Status of a Run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Command is one collaborator invocation.
type Command struct {
	Path        string
	Args        []string
	Description string
	Dir         string
	Env         []string
}

// Argv returns the full command vector.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Run records one finished (or running) invocation.
type Run struct {
	ID          string    `json:"id"`
	Command     []string  `json:"command"`
	Description string    `json:"description"`
	Dir         string    `json:"dir,omitempty"`
	Status      Status    `json:"status"`
	ExitCode    int       `json:"exitCode"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// Result is what a Runner returns. LaunchErr is set when the process never started.
type Result struct {
	Run
	LaunchErr error `json:"-"`
}

// OK reports whether the process started and exited zero.
func (r Result) OK() bool {
	return r.LaunchErr == nil && r.ExitCode == 0
}

// Runner executes a Command to completion. Implementations never return a Go
// error; failures are described by the Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Recorder receives every finished run.
type Recorder interface {
	Record(run Run) error
}

// Process runs commands as child OS processes.
type Process struct {
	log      *logchan.Channel
	recorder Recorder
	logger   *slog.Logger
	env      []string
	now      func() time.Time
}

// Option configures a Process.
type Option func(*Process)

// WithRecorder sends finished runs to r.
func WithRecorder(r Recorder) Option {
	return func(p *Process) { p.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) { p.logger = l }
}

// WithEnv adds KEY=VALUE pairs to every child environment.
func WithEnv(env ...string) Option {
	return func(p *Process) { p.env = append(p.env, env...) }
}

// New returns a Process that reports to log.
func New(log *logchan.Channel, opts ...Option) *Process {
	p := &Process{
		log:    log,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes cmd, forwarding each output line to the log channel, and
// blocks until the process exits.
func (p *Process) Run(ctx context.Context, cmd Command) Result {
	ctx, span := observability.Tracer("pyez.runner").Start(ctx, "collaborator.run",
		trace.WithAttributes(
			attribute.String("collaborator.description", cmd.Description),
			attribute.StringSlice("collaborator.argv", cmd.Argv()),
		),
	)

	res := Result{Run: Run{
		ID:          uuid.NewString(),
		Command:     cmd.Argv(),
		Description: cmd.Description,
		Dir:         cmd.Dir,
		Status:      StatusRunning,
		StartedAt:   p.now(),
	}}

	p.log.Infof("--- %s ---", cmd.Description)
	p.logger.DebugContext(ctx, "collaborator starting", "run.id", res.ID, "argv", cmd.Argv())

	exitCode, stdout, stderr, launchErr := p.execute(cmd)

	res.ExitCode = exitCode
	res.Stdout = stdout
	res.Stderr = stderr
	res.FinishedAt = p.now()

	switch {
	case launchErr != nil:
		res.LaunchErr = launchErr
		res.ExitCode = LaunchExitCode
		res.Status = StatusFailed
		res.Error = launchErr.Error()
		p.log.Errorf("An unexpected error occurred: %v", launchErr)
	case exitCode == 0:
		res.Status = StatusSucceeded
		p.log.Infof("--- Success! ---")
	default:
		res.Status = StatusFailed
		p.log.Infof("--- Command failed with exit code %d ---", exitCode)
	}

	span.SetAttributes(attribute.Int("collaborator.exit_code", res.ExitCode))

	var spanErr error
	if !res.OK() {
		spanErr = fmt.Errorf("%s: exit code %d", cmd.Description, res.ExitCode)
	}

	observability.EndSpan(span, spanErr)

	p.logger.InfoContext(ctx, "collaborator finished",
		"run.id", res.ID,
		"description", cmd.Description,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration().Milliseconds(),
	)

	if p.recorder != nil {
		if err := p.recorder.Record(res.Run); err != nil {
			p.logger.WarnContext(ctx, "record run failed", "run.id", res.ID, "error", err)
		}
	}

	return res
}

// execute starts the process and drains both pipes concurrently. The process
// is not tied to a context: a started collaborator runs to completion.
func (p *Process) execute(cmd Command) (exitCode int, stdout, stderr string, launchErr error) {
	c := exec.Command(cmd.Path, cmd.Args...) //nolint:gosec // G204: argv comes from the collaborator catalog
	c.Dir = cmd.Dir
	c.Env = append(append(os.Environ(), p.env...), cmd.Env...)

	outPipe, err := c.StdoutPipe()
	if err != nil {
		return LaunchExitCode, "", "", err
	}

	errPipe, err := c.StderrPipe()
	if err != nil {
		return LaunchExitCode, "", "", err
	}

	if err := c.Start(); err != nil {
		return LaunchExitCode, "", "", err
	}

	var outBuf, errBuf strings.Builder

	var g errgroup.Group

	g.Go(func() error { return p.drain(outPipe, logchan.StreamStdout, &outBuf) })
	g.Go(func() error { return p.drain(errPipe, logchan.StreamStderr, &errBuf) })

	drainErr := g.Wait()
	waitErr := c.Wait()

	if drainErr != nil {
		p.logger.Warn("collaborator output truncated", "error", drainErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), outBuf.String(), errBuf.String(), nil
		}

		return LaunchExitCode, outBuf.String(), errBuf.String(), waitErr
	}

	return 0, outBuf.String(), errBuf.String(), nil
}

func (p *Process) drain(r io.Reader, stream logchan.Stream, buf *strings.Builder) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimRight(ansi.Strip(scanner.Text()), "\r")

		buf.WriteString(line)
		buf.WriteByte('\n')

		if strings.TrimSpace(line) == "" {
			continue
		}

		p.log.Send(stream, line)
	}

	if err := scanner.Err(); err != nil {
		// Keep the pipe empty so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("read %s: %w", stream, err)
	}

	return nil
}
