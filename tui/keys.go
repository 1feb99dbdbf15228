package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the notary screen.
type KeyMap struct {
	// Form actions, active while no input has focus.
	SelectFile key.Binding
	Notarize   key.Binding
	Verify     key.Binding
	Lookup     key.Binding

	// Input handling.
	Submit key.Binding
	Cancel key.Binding

	// Alert handling.
	Dismiss key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	SelectFile: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "choose file"),
	),
	Notarize: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "notarize"),
	),
	Verify: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "verify"),
	),
	Lookup: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "check details"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("enter", "esc"),
		key.WithHelp("enter", "ok"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
