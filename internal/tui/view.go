package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/pyeasyenv/pyez/internal/logchan"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.confirm != nil {
		return m.renderConfirm()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderProjects(), m.renderTranscriptPanel())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderFooter(),
	)
}

func (m *Model) renderHeader() string {
	layout := "multi"
	if m.engine.Session().IsSingle() {
		layout = "single"
	}

	current := m.current
	if current == "" {
		current = "none"
	}

	line := fmt.Sprintf("pyez · %s layout · project: %s", layout, current)
	if m.width > 0 {
		line = ansi.Truncate(line, m.width-2, "…")
	}

	return m.styles.header.Render(line)
}

func (m *Model) renderProjects() string {
	inner := listWidth - 4

	var b strings.Builder

	b.WriteString(m.styles.title.Render("Projects"))
	b.WriteString("\n")

	if m.engine.Session().IsSingle() {
		b.WriteString(m.styles.muted.Render("(this directory)"))
	} else if len(m.projects) == 0 {
		b.WriteString(m.styles.muted.Render("none yet, press n"))
	}

	for i, name := range m.projects {
		label := runewidth.Truncate(name, inner-2, "…")

		switch {
		case i == m.cursor:
			label = m.styles.cursor.Render("› " + label)
		case name == m.current:
			label = m.styles.selected.Render("  " + label)
		default:
			label = "  " + label
		}

		b.WriteString(label)
		b.WriteString("\n")
	}

	height := max(3, m.transcript.Height)

	return m.styles.panel.Width(listWidth - 2).Height(height).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderTranscriptPanel() string {
	return m.styles.panel.Render(m.transcript.View())
}

func (m *Model) renderTranscript() string {
	width := m.transcript.Width

	rendered := make([]string, 0, len(m.lines))

	for _, l := range m.lines {
		text := l.Display()
		if width > 0 {
			text = ansi.Truncate(text, width, "…")
		}

		switch l.Stream {
		case logchan.StreamStderr:
			text = m.styles.stderr.Render(text)
		case logchan.StreamError:
			text = m.styles.errLine.Render(text)
		case logchan.StreamInfo, logchan.StreamStdout:
		}

		rendered = append(rendered, text)
	}

	return strings.Join(rendered, "\n")
}

func (m *Model) renderInput() string {
	view := m.input.View()
	if m.busy {
		view = m.spinner.View() + " " + m.task + "… " + view
	}

	return " " + view
}

func (m *Model) renderFooter() string {
	hints := make([]string, 0, 8)

	for _, b := range m.keys.actions() {
		hints = append(hints, m.hint(b, m.busy))
	}

	hints = append(hints,
		m.hint(m.keys.Select, m.busy),
		m.hint(m.keys.Input, false),
		m.hint(m.keys.Quit, false),
	)

	return " " + strings.Join(hints, "  ")
}

func (m *Model) hint(b key.Binding, dimmed bool) string {
	h := b.Help()
	text := h.Key + " " + h.Desc

	if dimmed {
		return m.styles.dimKey.Render(text)
	}

	return m.styles.key.Render(h.Key) + " " + m.styles.muted.Render(h.Desc)
}

func (m *Model) renderConfirm() string {
	body := strings.Join([]string{
		m.styles.warning.Render("Missing module"),
		"",
		fmt.Sprintf("A required module for '%s' is missing.", m.confirm.tool),
		"Would you like to reinstall it now?",
		"",
		m.styles.key.Render("[y / enter] Reinstall") + "    " + m.styles.muted.Render("[n / esc] Skip"),
	}, "\n")

	panel := m.styles.modal.Render(body)

	if m.width == 0 || m.height == 0 {
		return panel
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}
