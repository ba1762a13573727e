package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the browser key bindings.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Parent    key.Binding
	Back      key.Binding
	Forward   key.Binding
	Home      key.Binding
	Toggle    key.Binding
	SelectAll key.Binding
	Clear     key.Binding
	Match     key.Binding
	Delete    key.Binding
	Refresh   key.Binding
	NextPage  key.Binding
	Help      key.Binding
	Quit      key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:      key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "open folder or show object")),
		Parent:    key.NewBinding(key.WithKeys("backspace", "left", "h"), key.WithHelp("⌫", "parent")),
		Back:      key.NewBinding(key.WithKeys("["), key.WithHelp("[", "back")),
		Forward:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "forward")),
		Home:      key.NewBinding(key.WithKeys("~"), key.WithHelp("~", "bucket root")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		SelectAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
		Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear selection")),
		Match:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "select by glob")),
		Delete:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete selected")),
		Refresh:   key.NewBinding(key.WithKeys("r", "f5"), key.WithHelp("r", "refresh")),
		NextPage:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		Cancel:    key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "no")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Parent, k.Toggle, k.Delete, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Parent},
		{k.Back, k.Forward, k.Home, k.NextPage},
		{k.Toggle, k.SelectAll, k.Clear, k.Match},
		{k.Delete, k.Refresh, k.Help, k.Quit},
	}
}
