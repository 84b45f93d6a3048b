package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run    key.Binding
	Focus  key.Binding
	More   key.Binding
	Copy   key.Binding
	Reload key.Binding
	Auto   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run: key.NewBinding(
			key.WithKeys("ctrl+e", "f5"),
			key.WithHelp("ctrl+e", "run"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "editor/grid"),
		),
		More: key.NewBinding(
			key.WithKeys("down", "j", "pgdown", "end", "G"),
			key.WithHelp("↓", "scroll"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy query"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload file"),
		),
		Auto: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "auto query"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Focus, k.Copy, k.Reload, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Focus, k.More},
		{k.Copy, k.Reload, k.Auto},
		{k.Help, k.Quit},
	}
}
