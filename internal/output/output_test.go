package output

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pyeasyenv/pyez/internal/terminal"
)

// testTerminal returns a terminal.Info for testing (non-TTY, no color).
func testTerminal() *terminal.Info {
	return &terminal.Info{
		IsTTY:   false,
		NoColor: true,
		Width:   80,
		Height:  24,
	}
}

func TestWriter_Print(t *testing.T) {
	tests := []struct {
		name   string
		quiet  bool
		format string
		args   []any
		want   string
	}{
		{"normal output", false, "Hello, %s!", []any{"world"}, "Hello, world!"},
		{"quiet mode suppresses output", true, "Hello, %s!", []any{"world"}, ""},
		{"no args", false, "Simple message", nil, "Simple message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			w := NewWriter(&buf, &buf, testTerminal())
			w.Quiet = tt.quiet

			w.Print(tt.format, tt.args...)

			if got := buf.String(); got != tt.want {
				t.Errorf("Print() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriter_StatusMessages(t *testing.T) {
	tests := []struct {
		name    string
		quiet   bool
		write   func(w *Writer)
		wantOut string
		wantErr string
	}{
		{
			name:    "success",
			write:   func(w *Writer) { w.Success("Created %s", "web") },
			wantOut: CheckMark + " Created web\n",
		},
		{
			name:    "warning",
			write:   func(w *Writer) { w.Warning("careful") },
			wantOut: WarningMark + " careful\n",
		},
		{
			name:    "info",
			write:   func(w *Writer) { w.Info("hint") },
			wantOut: InfoMark + " hint\n",
		},
		{
			name:    "failure goes to stderr",
			write:   func(w *Writer) { w.Failure("broken") },
			wantErr: XMark + " broken\n",
		},
		{
			name:    "failure is not silenced by quiet",
			quiet:   true,
			write:   func(w *Writer) { w.Failure("broken") },
			wantErr: XMark + " broken\n",
		},
		{
			name:  "quiet silences success",
			quiet: true,
			write: func(w *Writer) { w.Success("done") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outBuf, errBuf bytes.Buffer

			w := NewWriter(&outBuf, &errBuf, testTerminal())
			w.Quiet = tt.quiet

			tt.write(w)

			if got := outBuf.String(); got != tt.wantOut {
				t.Errorf("stdout = %q, want %q", got, tt.wantOut)
			}

			if got := errBuf.String(); got != tt.wantErr {
				t.Errorf("stderr = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestWriter_PrintJSON(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, &buf, testTerminal())

	if err := w.PrintJSON(map[string]string{"key": "value"}); err != nil {
		t.Fatalf("PrintJSON() error = %v", err)
	}

	want := "{\n  \"key\": \"value\"\n}\n"
	if got := buf.String(); got != want {
		t.Errorf("PrintJSON() = %q, want %q", got, want)
	}
}

func TestWriter_Transcript(t *testing.T) {
	lines := []string{
		"--- Compiling requirements ---",
		"flask==3.0.0",
		"Log: WARNING: pip is out of date",
		"--- Success! ---",
	}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer

		w := NewWriter(&buf, &buf, testTerminal())
		for _, line := range lines {
			w.Transcript(line)
		}

		want := strings.Join(lines, "\n") + "\n"
		if got := buf.String(); got != want {
			t.Errorf("Transcript() = %q, want %q", got, want)
		}
	})

	t.Run("json mode suppresses transcript", func(t *testing.T) {
		var buf bytes.Buffer

		w := NewWriter(&buf, &buf, testTerminal())
		w.JSON = true
		w.Transcript("--- Success! ---")

		if buf.Len() != 0 {
			t.Errorf("Transcript() in JSON mode wrote %q", buf.String())
		}
	})
}

func TestWriter_Table(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, &buf, testTerminal())
	w.Table([]string{"NAME", "LAYOUT"}, [][]string{{"api", "multi"}, {"web-frontend", "multi"}})

	want := "NAME          LAYOUT\napi           multi\nweb-frontend  multi\n"
	if got := buf.String(); got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestSpinner_DisabledFallback(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf, &buf, testTerminal())
	s := w.Spinner("Syncing")

	if !s.disabled {
		t.Fatal("Spinner should be disabled without a TTY")
	}

	s.Start()

	called := false
	s.Suspend(func() { called = true })
	s.StopWithSuccess("Synced")

	if !called {
		t.Error("Suspend() did not run fn")
	}

	if got := buf.String(); got != CheckMark+" Synced\n" {
		t.Errorf("output = %q", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, &bytes.Buffer{}, testTerminal())
	ctx := w.WithContext(context.Background())

	if got := FromContext(ctx); got != w {
		t.Error("FromContext() did not return stored writer")
	}
}
