package update

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit   key.Binding
	Previous key.Binding
	Next     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Previous: key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous command")),
		Next:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next command")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Previous, k.PageUp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Submit, k.Previous, k.Next}, {k.PageUp, k.PageDown, k.Quit}}
}
