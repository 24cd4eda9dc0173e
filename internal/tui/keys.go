package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for both screens. Bindings without
// modifiers only apply on the conversation screen while the agent field
// is not being edited.
type KeyMap struct {
	Submit     key.Binding
	ToggleShow key.Binding // Setup: reveal or hide the api key.
	FocusNext  key.Binding

	StartStop  key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Permission key.Binding
	Reset      key.Binding // Forget the api key and return to setup.
	Dismiss    key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	),
	ToggleShow: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "show/hide"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "edit agent"),
	),
	StartStop: key.NewBinding(
		key.WithKeys("s", "enter"),
		key.WithHelp("s", "start/end"),
	),
	VolumeUp: key.NewBinding(
		key.WithKeys("+", "=", "right"),
		key.WithHelp("+", "louder"),
	),
	VolumeDown: key.NewBinding(
		key.WithKeys("-", "left"),
		key.WithHelp("-", "softer"),
	),
	Permission: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "grant mic"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset key"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "dismiss"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
