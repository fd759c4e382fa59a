package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Scan   key.Binding
	Add    key.Binding
	Sync   key.Binding
	List   key.Binding
	New    key.Binding
	Input  key.Binding
	Yes    key.Binding
	No     key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select project")),
		Scan:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Sync:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "sync")),
		List:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "list")),
		New:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new project")),
		Input:  key.NewBinding(key.WithKeys("i", "tab"), key.WithHelp("i", "type")),
		Yes:    key.NewBinding(key.WithKeys("y", "Y", "enter")),
		No:     key.NewBinding(key.WithKeys("n", "N", "esc")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// actions are the keys ignored while a task runs.
func (k keyMap) actions() []key.Binding {
	return []key.Binding{k.Scan, k.Add, k.Sync, k.List, k.New}
}
