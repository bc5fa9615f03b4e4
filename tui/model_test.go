package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"tagscribe/command"
	"tagscribe/controller"
)

type recorder struct {
	cmds []command.Command
	err  error
}

func (r *recorder) submit(c command.Command) error {
	r.cmds = append(r.cmds, c)
	return r.err
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(key(k))
	}
	return m
}

func TestKeysSendCommands(t *testing.T) {
	r := &recorder{}
	press(New(controller.State{}, r.submit), "m", "s", "l", "f", "left", "right")

	want := []string{"mode", "scan toggle", "list toggle", "flip", "seek -1", "seek +1"}
	if len(r.cmds) != len(want) {
		t.Fatalf("sent %v", r.cmds)
	}
	for i, c := range r.cmds {
		if c.String() != want[i] {
			t.Errorf("command %d = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestOpenListPrompt(t *testing.T) {
	r := &recorder{}
	m := press(New(controller.State{}, r.submit), "o", "items.csv", "enter")
	if len(r.cmds) != 1 || r.cmds[0].String() != "list load items.csv" {
		t.Fatalf("sent %v", r.cmds)
	}

	// keys typed into the prompt are not commands
	press(m, "b", "m", "s", "esc")
	if len(r.cmds) != 1 {
		t.Fatalf("prompt keys leaked as commands: %v", r.cmds)
	}
}

func TestBarcodePrompt(t *testing.T) {
	r := &recorder{}
	press(New(controller.State{}, r.submit), "b", "4607001771234", "enter")
	if len(r.cmds) != 1 || r.cmds[0].Kind != command.Barcode || r.cmds[0].Value != "4607001771234" {
		t.Fatalf("sent %v", r.cmds)
	}
}

func TestQuit(t *testing.T) {
	_, cmd := New(controller.State{}, nil).Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q does not quit")
	}
}

func TestView(t *testing.T) {
	var m tea.Model = New(controller.State{}, nil)
	m, _ = m.Update(StateMsg(controller.State{
		Mode:         controller.ListMode,
		Phase:        controller.Idle,
		Status:       "Present tag to write: X2",
		ListActive:   true,
		ListLen:      5,
		ListPosition: 1,
		ListItem:     "X2",
	}))
	v := m.View()
	for _, want := range []string{"List", "2 of 5", "X2", "Present tag to write: X2"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestSubmitError(t *testing.T) {
	r := &recorder{err: errors.New("loop stopped")}
	m := press(New(controller.State{}, r.submit), "f")
	if !strings.Contains(m.View(), "loop stopped") {
		t.Fatal("submit error not shown")
	}
}
