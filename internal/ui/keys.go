package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the form bindings. Letters go to the focused input, so
// commands sit on control keys.
type KeyMap struct {
	Next       key.Binding
	Prev       key.Binding
	AddRow     key.Binding
	RemoveRow  key.Binding
	PickFile   key.Binding
	RemoveFile key.Binding
	Convert    key.Binding
	Escape     key.Binding
	Login      key.Binding
	Back       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		AddRow: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "add field"),
		),
		RemoveRow: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "remove field"),
		),
		PickFile: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "choose file"),
		),
		RemoveFile: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "remove file"),
		),
		Convert: key.NewBinding(
			key.WithKeys("ctrl+s", "enter"),
			key.WithHelp("enter", "convert"),
		),
		Escape: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "toggle escaping"),
		),
		Login: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "set token"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1", "ctrl+g"),
			key.WithHelp("F1", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.AddRow, k.PickFile, k.Convert, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.AddRow, k.RemoveRow},
		{k.PickFile, k.RemoveFile, k.Convert, k.Escape},
		{k.Login, k.Back, k.Help, k.Quit},
	}
}
