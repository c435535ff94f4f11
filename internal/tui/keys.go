package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Start    key.Binding
	Settings key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Toggle   key.Binding
	Pick     key.Binding
	Confirm  key.Binding
	Retry    key.Binding
	Back     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "start")),
		Settings: key.NewBinding(key.WithKeys("S")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "move")),
		Down:     key.NewBinding(key.WithKeys("down", "j")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "change")),
		Right:    key.NewBinding(key.WithKeys("right", "l")),
		Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "toggle")),
		Pick:     key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "pick")),
		Confirm:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")),
		Retry:    key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "retry")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// helpFor lists the bindings shown in the footer of a screen.
func (k keyMap) helpFor(s screen) []key.Binding {
	switch s {
	case screenLocked:
		return []key.Binding{k.Retry, k.Quit}
	case screenWelcome:
		return []key.Binding{k.Start, k.Quit}
	case screenSettings:
		return []key.Binding{k.Up, k.Toggle, k.Left, k.Back}
	case screenTemplates:
		return []key.Binding{k.Up, withHelp(k.Toggle, "enter", "choose"), k.Pick, k.Back}
	case screenSelect:
		return []key.Binding{withHelp(k.Pick, "1-6", "toggle photo"), k.Confirm}
	case screenPrint:
		return []key.Binding{withHelp(k.Pick, "1-3", "print option")}
	default:
		return []key.Binding{k.Quit}
	}
}

func withHelp(b key.Binding, keys, desc string) key.Binding {
	b.SetHelp(keys, desc)
	return b
}

// digit returns the number typed for a single-digit key, or 0.
func digit(msg string) int {
	if len(msg) != 1 || msg[0] < '1' || msg[0] > '9' {
		return 0
	}
	return int(msg[0] - '0')
}
