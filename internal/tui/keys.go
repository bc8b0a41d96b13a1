package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Grab      key.Binding
	Cancel    key.Binding
	Dimension key.Binding
	SwapLeft  key.Binding
	SwapRight key.Binding
	HideEmpty key.Binding
	Rebalance key.Binding
	Reload    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		Grab:      key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "pick up / drop")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		Dimension: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "group by next")),
		SwapLeft:  key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "move column left")),
		SwapRight: key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "move column right")),
		HideEmpty: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "toggle empty groups")),
		Rebalance: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "re-space column")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload groups")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp and FullHelp implement help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.Cancel, k.Dimension, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Grab, k.Cancel},
		{k.Dimension, k.HideEmpty, k.Reload},
		{k.SwapLeft, k.SwapRight, k.Rebalance},
		{k.Help, k.Quit},
	}
}
