// Package tui is the interactive pyez view: a project list, a dependency
// input, action keys and the live transcript of every workflow.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pyeasyenv/pyez/internal/config"
	"github.com/pyeasyenv/pyez/internal/logchan"
	"github.com/pyeasyenv/pyez/internal/project"
	"github.com/pyeasyenv/pyez/internal/scheduler"
	"github.com/pyeasyenv/pyez/internal/workflow"
)

const (
	listWidth        = 26
	dependencyPrompt = "e.g., requests==2.31.0"
	projectPrompt    = "new project name"
)

// Options configures the view.
type Options struct {
	Engine *workflow.Engine
	// Bridge must be the Confirmer the Engine was built with.
	Bridge       *Bridge
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Model is the bubbletea model.
type Model struct {
	engine *workflow.Engine
	sched  *scheduler.Scheduler
	bridge *Bridge
	log    *logchan.Channel
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	projects []string
	cursor   int
	current  string

	lines      []logchan.Line
	transcript viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	creating   bool

	busy    bool
	task    string
	confirm *confirmRequestMsg
	watcher *project.Watcher

	interval time.Duration
	width    int
	height   int
	keys     keyMap
	styles   styles
}

// New builds the model and logs the startup hints.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}

	input := textinput.New()
	input.Prompt = "dependency ❯ "
	input.Placeholder = dependencyPrompt
	input.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())

	bridge := opts.Bridge
	if bridge == nil {
		bridge = NewBridge()
	}

	m := &Model{
		engine:     opts.Engine,
		bridge:     bridge,
		log:        opts.Engine.Log(),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		transcript: viewport.New(0, 0),
		input:      input,
		spinner:    sp,
		interval:   interval,
		keys:       defaultKeys(),
		styles:     newStyles(),
	}
	m.sched = scheduler.New(m.bridge.Controls).WithLogger(logger)

	res := m.engine.Check()
	if res.Project != nil {
		m.current = res.Project.Name
	}

	m.refreshProjects()
	m.watch()

	return m
}

// Run starts the full-screen program and blocks until it exits. A task that
// is still running when the operator quits is waited for.
func Run(opts Options) error {
	m := New(opts)
	defer func() {
		m.close()
		m.sched.Shutdown()
	}()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	return nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	go m.log.Pump(m.ctx, m.interval, m.bridge.Lines)

	return tea.Batch(m.bridge.next(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case eventsMsg:
		for _, ev := range msg {
			if cmd := m.handleEvent(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

		cmds = append(cmds, m.bridge.next())
	case taskDoneMsg:
		m.finishTask(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev tea.Msg) tea.Cmd {
	switch ev := ev.(type) {
	case controlsMsg:
		m.busy = !ev.enabled
	case linesMsg:
		m.appendLines(ev)
	case confirmRequestMsg:
		m.confirm = &ev
	}

	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.confirm != nil {
		return m.answerConfirm(msg)
	}

	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.input.Focused() {
		return m.handleInputKey(msg)
	}

	if m.busy {
		for _, b := range m.keys.actions() {
			if key.Matches(msg, b) {
				return nil
			}
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.projects)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		if !m.busy {
			m.selectProject()
		}
	case key.Matches(msg, m.keys.Scan):
		return m.startTask("Scan", func(ctx context.Context) error {
			_, err := m.engine.ScanWorkflow(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Sync):
		return m.startTask("Sync", m.engine.SyncWorkflow)
	case key.Matches(msg, m.keys.List):
		return m.startTask("List", m.engine.ListInstalled)
	case key.Matches(msg, m.keys.Add):
		if spec := strings.TrimSpace(m.input.Value()); spec != "" {
			return m.addDependency(spec)
		}

		return m.focusInput(false)
	case key.Matches(msg, m.keys.New):
		if m.engine.Session().IsSingle() {
			m.log.Errorf("Error: The single layout has one fixed project.")
			return nil
		}

		return m.focusInput(true)
	case key.Matches(msg, m.keys.Input):
		return m.focusInput(false)
	default:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)

		return cmd
	}

	return nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.blurInput()
		return nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		creating := m.creating

		if m.busy {
			return nil
		}

		m.blurInput()

		if creating {
			m.input.SetValue("")
			m.createProject(value)

			return nil
		}

		return m.addDependency(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return cmd
}

func (m *Model) answerConfirm(msg tea.KeyMsg) tea.Cmd {
	var answer bool

	switch {
	case key.Matches(msg, m.keys.Yes):
		answer = true
	case key.Matches(msg, m.keys.No):
		answer = false
	default:
		return nil
	}

	m.confirm.reply <- answer
	m.confirm = nil

	return nil
}

func (m *Model) focusInput(creating bool) tea.Cmd {
	m.creating = creating
	if creating {
		m.input.Prompt = "project ❯ "
		m.input.Placeholder = projectPrompt
		m.input.SetValue("")
	}

	return m.input.Focus()
}

func (m *Model) blurInput() {
	m.input.Blur()

	if m.creating {
		m.creating = false
		m.input.Prompt = "dependency ❯ "
		m.input.Placeholder = dependencyPrompt
	}
}

func (m *Model) addDependency(spec string) tea.Cmd {
	cmd := m.startTask("Add", func(ctx context.Context) error {
		return m.engine.AddDependency(ctx, spec)
	})
	if cmd != nil {
		m.input.SetValue("")
	}

	return cmd
}

func (m *Model) createProject(name string) {
	if _, err := m.engine.CreateProject(name, ""); err != nil {
		return
	}

	m.current = name
	m.refreshProjects()
	m.watch()
}

func (m *Model) selectProject() {
	if len(m.projects) == 0 || m.engine.Session().IsSingle() {
		return
	}

	name := m.projects[m.cursor]
	if _, err := m.engine.SelectProject(name); err != nil {
		return
	}

	m.current = name
	m.watch()
}

type taskDoneMsg struct {
	name string
	err  error
}

func (m *Model) startTask(name string, routine func(ctx context.Context) error) tea.Cmd {
	task, err := m.sched.Start(m.ctx, name, routine)
	if err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			return nil
		}

		m.log.Errorf("Error: %v", err)

		return nil
	}

	m.busy = true
	m.task = name

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		<-task.Done()
		return taskDoneMsg{name: name, err: task.Err()}
	})
}

func (m *Model) finishTask(msg taskDoneMsg) {
	m.busy = m.sched.Busy()
	m.task = ""

	if m.watcher != nil {
		m.watcher.Quiet()
	}

	if msg.err != nil {
		m.logger.Debug("task failed", "task", msg.name, "error", msg.err)
	}

	m.refreshProjects()
}

func (m *Model) quit() tea.Cmd {
	m.close()
	return tea.Quit
}

// close stops background work. Safe to call more than once.
func (m *Model) close() {
	m.cancel()
	m.bridge.Close()

	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
}

func (m *Model) refreshProjects() {
	store := m.engine.Session().Store()
	if store == nil {
		m.projects = nil
		return
	}

	names, err := store.List()
	if err != nil {
		m.logger.Warn("list projects", "error", err)
		return
	}

	m.projects = names

	for i, name := range names {
		if name == m.current {
			m.cursor = i
		}
	}

	if m.cursor >= len(names) {
		m.cursor = max(0, len(names)-1)
	}
}

// watch restarts the external-edit watcher on the active project.
func (m *Model) watch() {
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}

	p, err := m.engine.Session().Current()
	if err != nil {
		return
	}

	w, err := project.NewWatcher(p, m.sched.Busy, func(c project.Change) {
		m.log.Errorf("Warning: '%s' was changed outside pyez (%s). Run sync to apply it.", c.Path, c.Op)
	})
	if err != nil {
		m.logger.Warn("watch project", "project", p.Name, "error", err)
		return
	}

	w.Start(m.ctx)
	m.watcher = w
}

func (m *Model) appendLines(lines []logchan.Line) {
	atBottom := m.transcript.AtBottom() || len(m.lines) == 0

	m.lines = append(m.lines, lines...)
	m.transcript.SetContent(m.renderTranscript())

	if atBottom {
		m.transcript.GotoBottom()
	}
}

func (m *Model) resize() {
	contentWidth := max(20, m.width-listWidth-6)
	m.transcript.Width = contentWidth
	m.transcript.Height = max(3, m.height-8)
	m.input.Width = max(10, m.width-20)
	m.transcript.SetContent(m.renderTranscript())
}
