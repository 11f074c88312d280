package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	confirm   key.Binding
	unconfirm key.Binding
	reject    key.Binding
	skip      key.Binding
	all       key.Binding
	push      key.Binding
	back      key.Binding
	yes       key.Binding
	no        key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		confirm:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "confirm")),
		unconfirm: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "unconfirm")),
		reject:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
		skip:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		all:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "confirm all")),
		push:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "push")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.confirm, k.unconfirm, k.reject, k.skip},
		{k.all, k.push, k.quit},
	}
}
