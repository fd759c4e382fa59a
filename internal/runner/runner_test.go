package runner

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/testutil"
)

type memRecorder struct {
	mu   sync.Mutex
	runs []Run
}

func (m *memRecorder) Record(run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)

	return nil
}

func linesOf(ch *logchan.Channel, stream logchan.Stream) []string {
	var out []string

	for _, l := range ch.Drain() {
		if stream == "" || l.Stream == stream {
			out = append(out, l.Display())
		}
	}

	return out
}

func TestProcess_Success(t *testing.T) {
	dir := t.TempDir()
	python := testutil.FakeInterpreter(t, dir, `echo "flask==3.0.0"
echo "warning: cache disabled" >&2
echo ""
echo "requests==2.31.0"`)

	ch := logchan.New()
	rec := &memRecorder{}
	p := New(ch, WithRecorder(rec))

	res := p.Run(context.Background(), Command{Path: python, Args: []string{"-m", "piptools", "compile"}, Description: "Locking dependencies"})

	if !res.OK() || res.Status != StatusSucceeded {
		t.Fatalf("Run() = %+v, want success", res)
	}

	if res.Stdout != "flask==3.0.0\n\nrequests==2.31.0\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}

	all := ch.Drain()

	var info, stdout, stderr []string

	for _, l := range all {
		switch l.Stream {
		case logchan.StreamInfo:
			info = append(info, l.Display())
		case logchan.StreamStdout:
			stdout = append(stdout, l.Display())
		case logchan.StreamStderr:
			stderr = append(stderr, l.Display())
		}
	}

	if diff := cmp.Diff([]string{"--- Locking dependencies ---", "--- Success! ---"}, info); diff != "" {
		t.Errorf("banners mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"flask==3.0.0", "requests==2.31.0"}, stdout); diff != "" {
		t.Errorf("stdout lines mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"Log: warning: cache disabled"}, stderr); diff != "" {
		t.Errorf("stderr lines mismatch (-want +got):\n%s", diff)
	}

	if all[0].Text != "--- Locking dependencies ---" || all[len(all)-1].Text != "--- Success! ---" {
		t.Errorf("banners must bracket the output: first=%q last=%q", all[0].Text, all[len(all)-1].Text)
	}

	if len(rec.runs) != 1 || rec.runs[0].ID == "" || rec.runs[0].Status != StatusSucceeded {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestProcess_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	python := testutil.FakeInterpreter(t, dir, `echo "No module named piptools" >&2
exit 3`)

	ch := logchan.New()
	res := New(ch).Run(context.Background(), Command{Path: python, Description: "Syncing environment"})

	if res.OK() || res.ExitCode != 3 || res.LaunchErr != nil {
		t.Fatalf("Run() = %+v, want exit 3", res)
	}

	if !strings.Contains(res.Stderr, "No module named piptools") {
		t.Errorf("Stderr = %q", res.Stderr)
	}

	info := linesOf(ch, logchan.StreamInfo)
	if got := info[len(info)-1]; got != "--- Command failed with exit code 3 ---" {
		t.Errorf("last banner = %q", got)
	}
}

func TestProcess_LaunchFailure(t *testing.T) {
	ch := logchan.New()
	rec := &memRecorder{}

	res := New(ch, WithRecorder(rec)).Run(context.Background(), Command{
		Path:        filepath.Join(t.TempDir(), "does-not-exist"),
		Description: "Listing currently installed packages",
	})

	if res.LaunchErr == nil || res.ExitCode != LaunchExitCode || res.Status != StatusFailed {
		t.Fatalf("Run() = %+v, want launch failure", res)
	}

	errs := linesOf(ch, logchan.StreamError)
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "An unexpected error occurred: ") {
		t.Errorf("error lines = %q", errs)
	}

	if len(rec.runs) != 1 || rec.runs[0].Error == "" {
		t.Errorf("launch failure not recorded: %+v", rec.runs)
	}
}

func TestProcess_StripsANSIAndCarriageReturns(t *testing.T) {
	dir := t.TempDir()
	python := testutil.FakeInterpreter(t, dir, `printf '\033[32mSuccessfully installed pipreqs\033[0m\r\n'`)

	ch := logchan.New()
	New(ch).Run(context.Background(), Command{Path: python, Description: "Reinstalling pipreqs"})

	got := linesOf(ch, logchan.StreamStdout)
	if diff := cmp.Diff([]string{"Successfully installed pipreqs"}, got); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_EnvAndDir(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	python := testutil.FakeInterpreter(t, dir, `echo "index=$PIP_INDEX_URL extra=$EXTRA"
pwd`)

	ch := logchan.New()
	res := New(ch, WithEnv("PIP_INDEX_URL=https://pypi.example.com/simple")).Run(context.Background(), Command{
		Path:        python,
		Description: "env",
		Dir:         work,
		Env:         []string{"EXTRA=1"},
	})

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("Stdout = %q", res.Stdout)
	}

	if lines[0] != "index=https://pypi.example.com/simple extra=1" {
		t.Errorf("env line = %q", lines[0])
	}

	gotDir, _ := filepath.EvalSymlinks(lines[1])
	wantDir, _ := filepath.EvalSymlinks(work)

	if gotDir != wantDir {
		t.Errorf("working dir = %q, want %q", gotDir, wantDir)
	}
}

func TestResult_OK(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{"zero exit", Result{Run: Run{ExitCode: 0}}, true},
		{"non-zero exit", Result{Run: Run{ExitCode: 2}}, false},
		{"launch failure", Result{Run: Run{ExitCode: LaunchExitCode}, LaunchErr: context.Canceled}, false},
	}

	for _, tt := range tests {
		if got := tt.res.OK(); got != tt.want {
			t.Errorf("%s: OK() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
