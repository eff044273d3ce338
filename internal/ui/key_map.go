package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	left   key.Binding
	right  key.Binding
	toggle key.Binding
	clear  key.Binding
	enter  key.Binding
	back   key.Binding
	remove key.Binding
	reroll key.Binding
	open   key.Binding
	quit   key.Binding
	force  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "less")),
		right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "more")),
		toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle genre")),
		clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear genres")),
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "roll")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		remove: key.NewBinding(key.WithKeys("d", "x", "delete"), key.WithHelp("d", "remove track")),
		reroll: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "roll again")),
		open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open playlist")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		force:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.left, k.right},
		{k.toggle, k.clear, k.enter, k.back},
		{k.remove, k.reroll, k.open, k.quit},
	}
}

// with returns a copy of b showing desc in help.
func with(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
