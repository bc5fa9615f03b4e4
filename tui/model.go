// Package tui is a terminal console for bench use: it shows the controller
// state and sends operator commands.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tagscribe/command"
	"tagscribe/controller"
)

// StateMsg delivers a new controller state.
type StateMsg controller.State

// WriteMsg delivers a write event.
type WriteMsg controller.WriteEvent

type prompt int

const (
	promptNone prompt = iota
	promptList
	promptBarcode
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	valueStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	faultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	progressText = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Model is the bubbletea model.
type Model struct {
	state     controller.State
	lastWrite string
	errMsg    string
	submit    func(command.Command) error
	prompt    prompt
	input     textinput.Model
	width     int
}

// New returns a model showing initial. submit receives the commands the
// operator issues; it must not block.
func New(initial controller.State, submit func(command.Command) error) Model {
	in := textinput.New()
	in.CharLimit = 512
	in.Width = 48
	return Model{state: initial, submit: submit, input: in}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StateMsg:
		m.state = controller.State(msg)
		return m, nil

	case WriteMsg:
		ev := controller.WriteEvent(msg)
		m.lastWrite = fmt.Sprintf("%s %q → %s (%s)", ev.At.Format("15:04:05"), ev.Value, ev.TagUID, ev.Result)
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m":
			m.send(command.Command{Kind: command.Mode})
		case "s":
			m.send(command.Command{Kind: command.Scan, Arg: "toggle"})
		case "l":
			m.send(command.Command{Kind: command.List, Arg: "toggle"})
		case "f":
			m.send(command.Command{Kind: command.Flip})
		case "left":
			m.send(command.Command{Kind: command.Seek, Delta: -1})
		case "right":
			m.send(command.Command{Kind: command.Seek, Delta: 1})
		case "o":
			return m.openPrompt(promptList, "list file: ")
		case "b":
			return m.openPrompt(promptBarcode, "barcode: ")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) openPrompt(p prompt, label string) (tea.Model, tea.Cmd) {
	m.prompt = p
	m.input.Prompt = label
	m.input.SetValue("")
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		p := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		if p == promptList {
			m.send(command.Command{Kind: command.List, Arg: "load", Value: value})
		} else {
			m.send(command.Command{Kind: command.Barcode, Value: value})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) send(c command.Command) {
	m.errMsg = ""
	if m.submit == nil {
		return
	}
	if err := m.submit(c); err != nil {
		m.errMsg = err.Error()
	}
}

func (m Model) View() string {
	st := m.state
	var b strings.Builder

	title := "Barcode scanner"
	if st.Mode == controller.ListMode {
		title = "List"
	}
	b.WriteString(titleStyle.Render(title))
	if p := st.Progress(); p != "" && st.Mode == controller.ListMode {
		b.WriteString("  " + progressText.Render(p))
	}
	if st.Flipped {
		b.WriteString(dimStyle.Render("  (flipped)"))
	}
	b.WriteString("\n\n")

	if v := st.Pending(); v != "" {
		b.WriteString(valueStyle.Render(v))
		b.WriteString("\n")
	}

	status := st.Status
	switch {
	case st.Success:
		status = okStyle.Render(status)
	case st.Fault:
		status = faultStyle.Render(status)
	}
	b.WriteString(status + "\n")

	if m.lastWrite != "" {
		b.WriteString(dimStyle.Render("last: "+m.lastWrite) + "\n")
	}
	if m.errMsg != "" {
		b.WriteString(faultStyle.Render(m.errMsg) + "\n")
	}

	b.WriteString("\n")
	if m.prompt != promptNone {
		b.WriteString(m.input.View() + "\n")
		b.WriteString(dimStyle.Render("enter: confirm • esc: cancel"))
	} else {
		b.WriteString(dimStyle.Render("m: mode • s: scan • l: list • o: open list • b: barcode • f: flip • ←/→: seek • q: quit"))
	}
	return b.String()
}
