package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Commit  key.Binding
	Done    key.Binding
	Preview key.Binding
	Retry   key.Binding
	Close   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Commit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Done:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "toggle done")),
		Preview: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "preview notes")),
		Retry:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry save")),
		Close:   key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "save & close")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Done, k.Preview, k.Retry, k.Close}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Commit}, {k.Done, k.Preview, k.Retry, k.Close}}
}
