// Package output provides CLI output handling with support for multiple modes.
//
// This package abstracts stdout/stderr writing to enable:
//   - Testable CLI commands via io.Writer injection
//   - JSON output mode for scripting
//   - Quiet mode for CI environments
//   - Colored transcript rendering with TTY detection
//   - Spinner animations while a workflow runs
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/pyeasyenv/pyez/internal/terminal"
)

type contextKey struct{}

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out      io.Writer
	Err      io.Writer
	JSON     bool
	Quiet    bool
	Verbose  bool
	NoInput  bool
	Yes      bool
	terminal *terminal.Info

	successColor *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	mutedColor   *color.Color
	headingColor *color.Color
}

// Status symbols
const (
	CheckMark   = "\u2713" // ✓
	XMark       = "\u2717" // ✗
	WarningMark = "\u26A0" // ⚠
	InfoMark    = "\u2139" // ℹ
)

// Default returns a Writer configured for stdout/stderr.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer with custom writers and terminal info.
func NewWriter(out, errOut io.Writer, term *terminal.Info) *Writer {
	w := &Writer{
		Out:          out,
		Err:          errOut,
		terminal:     term,
		successColor: color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgCyan),
		mutedColor:   color.New(color.FgHiBlack),
		headingColor: color.New(color.Bold),
	}

	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// WithContext stores the Writer in the context.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext retrieves the Writer from context, or returns Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns the terminal info.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// Print writes to stdout (respects quiet mode).
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.Out, format, args...)
	}
}

// Println writes a line to stdout (respects quiet mode).
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.Out, args...)
	}
}

// PrintJSON outputs structured data as indented JSON.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintf(w.Err, format, args...)
}

// Write implements io.Writer, writing to Out.
func (w *Writer) Write(p []byte) (int, error) {
	if w.Quiet {
		return len(p), nil
	}

	return w.Out.Write(p)
}

func (w *Writer) writeStatus(writer io.Writer, tone *color.Color, prefix, message string) {
	if w.terminal.ColorEnabled() {
		tone.Fprint(writer, prefix+" ")
		fmt.Fprintln(writer, message)

		return
	}

	fmt.Fprintln(writer, prefix+" "+message)
}

// Success writes a success message with a checkmark.
func (w *Writer) Success(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.successColor, CheckMark, fmt.Sprintf(format, args...))
}

// Failure writes an error message with an X mark. Never suppressed.
func (w *Writer) Failure(format string, args ...any) {
	w.writeStatus(w.Err, w.errorColor, XMark, fmt.Sprintf(format, args...))
}

// Warning writes a warning message.
func (w *Writer) Warning(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.warningColor, WarningMark, fmt.Sprintf(format, args...))
}

// Info writes an info message.
func (w *Writer) Info(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, w.infoColor, InfoMark, fmt.Sprintf(format, args...))
}

// Muted writes gray text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if w.terminal.ColorEnabled() {
		w.mutedColor.Fprintln(w.Out, msg)
		return
	}

	fmt.Fprintln(w.Out, msg)
}

// Transcript renders one log-channel line. Step banners are highlighted,
// collaborator stderr is dimmed and error lines are shown in red.
func (w *Writer) Transcript(line string) {
	if w.Quiet || w.JSON {
		return
	}

	if !w.terminal.ColorEnabled() {
		fmt.Fprintln(w.Out, line)
		return
	}

	switch {
	case line == "--- Success! ---":
		w.successColor.Fprintln(w.Out, line)
	case strings.HasPrefix(line, "--- Command failed"):
		w.errorColor.Fprintln(w.Out, line)
	case strings.HasPrefix(line, "--- "):
		w.headingColor.Fprintln(w.Out, line)
	case strings.HasPrefix(line, "Log: "):
		w.mutedColor.Fprintln(w.Out, line)
	case strings.HasPrefix(line, "Error:"), strings.HasPrefix(line, "An unexpected error occurred"):
		w.errorColor.Fprintln(w.Out, line)
	default:
		fmt.Fprintln(w.Out, line)
	}
}

// Table writes rows as aligned columns. The header row is skipped in quiet mode.
func (w *Writer) Table(header []string, rows [][]string) {
	if w.Quiet {
		return
	}

	tw := tabwriter.NewWriter(w.Out, 0, 0, 2, ' ', 0)

	if len(header) > 0 {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	_ = tw.Flush()
}

// Spinner creates a spinner for long operations. It degrades to plain text
// when spinners are disabled (non-TTY, quiet or JSON mode).
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || w.JSON || !w.terminal.SpinnersEnabled() {
		return &Spinner{disabled: true, message: message, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Err
	s.Suffix = " " + message

	return &Spinner{spinner: s, message: message, writer: w}
}

// Spinner wraps briandowns/spinner with graceful fallback.
type Spinner struct {
	spinner  *spinner.Spinner
	message  string
	writer   *Writer
	disabled bool
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s.disabled {
		return
	}

	s.spinner.Start()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	if s.disabled {
		return
	}

	s.spinner.Stop()
}

// Suspend stops the animation while fn writes to the terminal, then resumes it.
func (s *Spinner) Suspend(fn func()) {
	if s.disabled || !s.spinner.Active() {
		fn()
		return
	}

	s.spinner.Stop()
	fn()
	s.spinner.Start()
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()

	if message != "" {
		s.writer.Success("%s", message)
	}
}

// StopWithFailure stops the spinner and shows a failure message.
func (s *Spinner) StopWithFailure(message string) {
	s.Stop()

	if message != "" {
		s.writer.Failure("%s", message)
	}
}

// UpdateMessage changes the spinner message.
func (s *Spinner) UpdateMessage(message string) {
	s.message = message
	if !s.disabled {
		s.spinner.Suffix = " " + message
	}
}
