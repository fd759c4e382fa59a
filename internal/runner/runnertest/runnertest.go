// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/runner"
)

// Scripted replays canned results in order and records every call.
type Scripted struct {
	mu      sync.Mutex
	calls   []runner.Command
	results []runner.Result
	log     *logchan.Channel

	// Default is returned once the script is exhausted.
	Default runner.Result
}

// New returns a Scripted runner. When log is non-nil, each call logs the
// same banners and output lines a real runner would.
func New(log *logchan.Channel, results ...runner.Result) *Scripted {
	return &Scripted{results: results, log: log}
}

// Run records cmd and returns the next scripted result.
func (s *Scripted) Run(_ context.Context, cmd runner.Command) runner.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cmd)

	res := s.Default
	if len(s.results) > 0 {
		res = s.results[0]
		s.results = s.results[1:]
	}

	res.Command = cmd.Argv()
	res.Description = cmd.Description

	if s.log != nil {
		s.log.Infof("--- %s ---", cmd.Description)
		s.forward(logchan.StreamStdout, res.Stdout)
		s.forward(logchan.StreamStderr, res.Stderr)

		switch {
		case res.LaunchErr != nil:
			s.log.Errorf("An unexpected error occurred: %v", res.LaunchErr)
		case res.ExitCode == 0:
			s.log.Infof("--- Success! ---")
		default:
			s.log.Infof("--- Command failed with exit code %d ---", res.ExitCode)
		}
	}

	return res
}

func (s *Scripted) forward(stream logchan.Stream, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			s.log.Send(stream, line)
		}
	}
}

// Calls returns the commands run so far.
func (s *Scripted) Calls() []runner.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]runner.Command(nil), s.calls...)
}

// Descriptions returns the description of every call, in order.
func (s *Scripted) Descriptions() []string {
	calls := s.Calls()

	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Description
	}

	return out
}

// Exit builds a Result for a process that exited with code and output.
func Exit(code int, stdout, stderr string) runner.Result {
	status := runner.StatusSucceeded
	if code != 0 {
		status = runner.StatusFailed
	}

	return runner.Result{Run: runner.Run{Status: status, ExitCode: code, Stdout: stdout, Stderr: stderr}}
}

// OK is a zero exit with no output.
func OK() runner.Result {
	return Exit(0, "", "")
}

// Missing is a failed run whose stderr reports that module is not importable.
func Missing(module string) runner.Result {
	return Exit(1, "", "/usr/bin/python3: No module named "+module+"\n")
}
