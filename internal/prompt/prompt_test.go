package prompt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pyeasyenv/pyez/internal/output"
	"github.com/pyeasyenv/pyez/internal/terminal"
)

func testWriter() (*output.Writer, *bytes.Buffer) {
	var buf bytes.Buffer

	return output.NewWriter(&buf, &buf, &terminal.Info{NoColor: true}), &buf
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\n", false, false},
	}

	for _, tt := range tests {
		w, _ := testWriter()
		p := NewWithReader(w, strings.NewReader(tt.input))

		got, err := p.Confirm("Continue?", tt.def)
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", tt.input, err)
		}

		if got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.def, got, tt.want)
		}
	}
}

func TestConfirm_EOF(t *testing.T) {
	w, _ := testWriter()
	p := NewWithReader(w, strings.NewReader(""))

	got, err := p.Confirm("Continue?", false)
	if !errors.Is(err, ErrNoInput) || got {
		t.Errorf("Confirm() = %v, %v; want false, ErrNoInput", got, err)
	}
}

func TestSelect_RetriesInvalidInput(t *testing.T) {
	w, buf := testWriter()
	p := NewWithReader(w, strings.NewReader("9\nabc\n\n2\n"))

	got, err := p.Select("Pick a project", []string{"api", "web"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if got != 1 {
		t.Errorf("Select() = %d, want 1", got)
	}

	if n := strings.Count(buf.String(), "Invalid selection"); n != 2 {
		t.Errorf("warnings = %d, want 2; output:\n%s", n, buf.String())
	}
}

func TestInstallConfirmer(t *testing.T) {
	t.Run("yes flag accepts without asking", func(t *testing.T) {
		w, buf := testWriter()
		w.Yes = true

		c := &InstallConfirmer{Prompter: NewWithReader(w, strings.NewReader("")), Out: w}
		if !c.ConfirmInstall(context.Background(), "pipreqs") {
			t.Error("ConfirmInstall() = false, want true")
		}

		if buf.Len() != 0 {
			t.Errorf("prompted despite --yes: %q", buf.String())
		}
	})

	t.Run("no input declines", func(t *testing.T) {
		w, _ := testWriter()
		w.NoInput = true

		c := &InstallConfirmer{Prompter: NewWithReader(w, strings.NewReader("y\n")), Out: w}
		if c.ConfirmInstall(context.Background(), "pipreqs") {
			t.Error("ConfirmInstall() = true, want false")
		}
	})

	t.Run("asks operator", func(t *testing.T) {
		w, buf := testWriter()
		before := 0

		c := &InstallConfirmer{
			Prompter: NewWithReader(w, strings.NewReader("y\n")),
			Out:      w,
			Before:   func() { before++ },
		}

		if !c.ConfirmInstall(context.Background(), "pip-tools") {
			t.Error("ConfirmInstall() = false, want true")
		}

		if before != 1 {
			t.Errorf("Before called %d times, want 1", before)
		}

		want := "A required module for 'pip-tools' is missing. Would you like to reinstall it now? [y/N]: "
		if buf.String() != want {
			t.Errorf("prompt = %q, want %q", buf.String(), want)
		}
	})
}

func TestInput(t *testing.T) {
	tests := []struct {
		input string
		def   string
		want  string
	}{
		{"web\n", "", "web"},
		{"  api  \n", "web", "api"},
		{"\n", "web", "web"},
		{"last", "", "last"},
	}

	for _, tt := range tests {
		w, buf := testWriter()
		p := NewWithReader(w, strings.NewReader(tt.input))

		got, err := p.Input("Name", tt.def)
		if err != nil {
			t.Fatalf("Input(%q) error = %v", tt.input, err)
		}

		if got != tt.want {
			t.Errorf("Input(%q, %q) = %q, want %q", tt.input, tt.def, got, tt.want)
		}

		if tt.def != "" && !strings.Contains(buf.String(), "Name ["+tt.def+"]: ") {
			t.Errorf("prompt %q does not show the default", buf.String())
		}
	}
}
