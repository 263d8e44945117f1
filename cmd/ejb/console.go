package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/javabinding/bindings"
	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/fakes"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// historySize is the number of results the console keeps on screen.
const historySize = 12

func newConsoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive console submitting transactions to a node",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.InvalidInput(errors.PhaseConfig, "console requires a terminal")
			}
			if a.logFile == "" {
				a.setLogger(zap.NewNop())
			}
			in, err := startNode(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := in.Close(); err != nil {
					a.log.Error("failed to stop node", zap.Error(err))
				}
			}()
			_, err = tea.NewProgram(newConsoleModel(in), tea.WithAltScreen()).Run()
			return err
		},
	}
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdDeploy
	cmdStatus
	cmdQuit
)

// command is a parsed console line.
type command struct {
	kind commandKind
	txID int32
	args []byte
}

// parseCommand parses one of:
//
//	put <value>
//	fail <code> <message>
//	tx <id> [payload]
//	deploy <artifact>
//	status
//	quit
func parseCommand(line string) (command, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "put":
		if rest == "" {
			return command{}, errors.InvalidInput(errors.PhaseConfig, "usage: put <value>")
		}
		return command{kind: cmdSubmit, txID: fakes.TxPutValue, args: []byte(rest)}, nil
	case "fail":
		code, msg, _ := strings.Cut(rest, " ")
		c, err := strconv.ParseUint(code, 10, 8)
		if err != nil {
			return command{}, errors.InvalidInput(errors.PhaseConfig, "usage: fail <code 0-255> <message>")
		}
		return command{kind: cmdSubmit, txID: fakes.TxExecutionError, args: append([]byte{byte(c)}, msg...)}, nil
	case "tx":
		id, payload, _ := strings.Cut(rest, " ")
		n, err := strconv.ParseInt(id, 10, 32)
		if err != nil {
			return command{}, errors.InvalidInput(errors.PhaseConfig, "usage: tx <id> [payload]")
		}
		return command{kind: cmdSubmit, txID: int32(n), args: []byte(payload)}, nil
	case "deploy":
		if rest == "" {
			return command{}, errors.InvalidInput(errors.PhaseConfig, "usage: deploy <artifact>")
		}
		return command{kind: cmdDeploy, args: []byte(rest)}, nil
	case "status", "":
		return command{kind: cmdStatus}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown command %q", verb))
	}
}

type consoleModel struct {
	in      *instance
	input   textinput.Model
	history []historyLine
	height  uint64
	value   []byte
	err     error
	busy    bool
}

type historyLine struct {
	text string
	err  error
}

type resultMsg struct {
	line string
	err  error
}

func newConsoleModel(in *instance) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = "put hello"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()
	m := &consoleModel{in: in, input: ti}
	m.refresh()
	return m
}

func (m *consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *consoleModel) refresh() {
	m.height, m.value, m.err = m.in.status()
}

// execute runs c against the node. It is called from a tea.Cmd goroutine.
func (m *consoleModel) execute(line string, c command) tea.Cmd {
	node := m.in.node
	return func() tea.Msg {
		var err error
		switch c.kind {
		case cmdSubmit:
			err = node.SubmitTransaction(qaServiceID, c.txID, c.args)
		case cmdDeploy:
			err = node.DeployArtifact(bindings.JavaRuntimeID, c.args, nil)
		}
		return resultMsg{line: line, err: err}
	}
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			c, err := parseCommand(line)
			switch {
			case err != nil:
				m.push(historyLine{text: line, err: err})
				return m, nil
			case c.kind == cmdQuit:
				return m, tea.Quit
			case c.kind == cmdStatus:
				m.refresh()
				return m, nil
			}
			m.busy = true
			return m, m.execute(line, c)
		}

	case resultMsg:
		m.busy = false
		m.push(historyLine{text: msg.line, err: msg.err})
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) push(l historyLine) {
	m.history = append(m.history, l)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("EJB Console"))
	b.WriteString(fmt.Sprintf(" node %d\n\n", m.in.node.Handle()))

	b.WriteString(labelStyle.Render("height: "))
	b.WriteString(strconv.FormatUint(m.height, 10))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("value: "))
	b.WriteString(fmt.Sprintf("%q", m.value))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	b.WriteString("\n\n")

	for _, l := range m.history {
		b.WriteString(l.text)
		b.WriteString(" ")
		if l.err != nil {
			b.WriteString(errorStyle.Render(l.err.Error()))
		} else {
			b.WriteString(resultStyle.Render("ok"))
		}
		b.WriteString("\n")
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("put <v> • fail <code> <msg> • tx <id> [payload] • deploy <id> • status • esc quit"))
	return b.String()
}
