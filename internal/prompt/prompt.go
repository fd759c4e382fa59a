// Package prompt provides interactive prompts for the pyez CLI.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/pyeasyenv/pyez/internal/output"
)

// ErrNoInput is returned when input is exhausted before an answer was read.
var ErrNoInput = errors.New("no input available")

// Prompter handles interactive prompts.
type Prompter struct {
	out         *output.Writer
	reader      *bufio.Reader
	interactive bool
	mu          sync.Mutex
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	interactive := out.Terminal() != nil && out.Terminal().InteractiveEnabled()

	return &Prompter{
		out:         out,
		reader:      bufio.NewReader(os.Stdin),
		interactive: interactive,
	}
}

// NewWithReader creates a Prompter that reads answers from r and always
// considers itself interactive.
func NewWithReader(out *output.Writer, r io.Reader) *Prompter {
	return &Prompter{out: out, reader: bufio.NewReader(r), interactive: true}
}

// CanPrompt returns true if interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.interactive && !p.out.NoInput && !p.out.JSON
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	fmt.Fprintf(p.out.Err, "%s [%s]: ", message, defaultStr)

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultValue, nil
	}

	return input == "y" || input == "yes", nil
}

// Input prompts for a line of text. An empty answer returns defaultValue.
func (p *Prompter) Input(message, defaultValue string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if defaultValue != "" {
		fmt.Fprintf(p.out.Err, "%s [%s]: ", message, defaultValue)
	} else {
		fmt.Fprintf(p.out.Err, "%s: ", message)
	}

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	if input == "" {
		return defaultValue, nil
	}

	return input, nil
}

// Password prompts for a secret without echo.
func (p *Prompter) Password(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out.Err, "%s: ", prompt)

	fd := int(os.Stdin.Fd()) //nolint:gosec // fd fits in int
	if !term.IsTerminal(fd) {
		return p.readLine()
	}

	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out.Err)

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}

// Select prompts the user to pick one of options and returns its index.
func (p *Prompter) Select(message string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("no options to select from")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out.Err, message)

	for i, opt := range options {
		fmt.Fprintf(p.out.Err, "  [%d] %s\n", i+1, opt)
	}

	for {
		fmt.Fprintf(p.out.Err, "Select [1-%d]: ", len(options))

		input, err := p.readLine()
		if err != nil {
			return -1, err
		}

		if input == "" {
			continue
		}

		num, err := strconv.Atoi(input)
		if err != nil || num < 1 || num > len(options) {
			p.out.Warning("Invalid selection. Please enter a number between 1 and %d", len(options))
			continue
		}

		return num - 1, nil
	}
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) != "" {
			return strings.TrimSpace(input), nil
		}

		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}

		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(input), nil
}

// InstallConfirmer answers the missing-tool question on the terminal.
// It implements recovery.Confirmer.
type InstallConfirmer struct {
	Prompter *Prompter
	Out      *output.Writer
	// Before runs ahead of the question, e.g. to flush pending transcript
	// lines or pause a spinner.
	Before func()
}

// ConfirmInstall asks whether tool should be reinstalled. --yes accepts
// without asking; non-interactive sessions decline.
func (c *InstallConfirmer) ConfirmInstall(_ context.Context, tool string) bool {
	if c.Out.Yes {
		return true
	}

	if c.Prompter == nil || !c.Prompter.CanPrompt() {
		return false
	}

	if c.Before != nil {
		c.Before()
	}

	ok, err := c.Prompter.Confirm(fmt.Sprintf("A required module for '%s' is missing. Would you like to reinstall it now?", tool), false)
	if err != nil {
		return false
	}

	return ok
}
