package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Bigger  key.Binding
	Smaller key.Binding
	Check   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "older"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "newer"),
		),
		Bigger: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "double probe"),
		),
		Smaller: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "halve probe"),
		),
		Check: key.NewBinding(
			key.WithKeys("c", "enter"),
			key.WithHelp("c", "check allocation"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
