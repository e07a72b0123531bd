// Package tui animates multi-step CLI flows (connect, service install)
// with a spinner per step. Non-TTY output degrades to plain step lines.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nimbusproxy/nimbus/internal/ui"
)

// Step is one unit of work. Run may call sub to replace the spinner
// text while it works; the last text shown becomes the completed line.
type Step struct {
	Title string
	Run   func(ctx context.Context, sub func(string)) error
}

type stepDoneMsg struct {
	index int
	err   error
}

type subTextMsg struct {
	text string
}

type stepModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	steps   []Step
	current int
	done    []string
	spinner spinner.Model
	text    string
	err     error
	program *tea.Program
}

func (m *stepModel) Init() tea.Cmd {
	m.text = m.steps[0].Title
	return tea.Batch(m.spinner.Tick, m.launch(0))
}

func (m *stepModel) launch(idx int) tea.Cmd {
	step := m.steps[idx]
	return func() tea.Msg {
		sub := func(text string) {
			m.program.Send(subTextMsg{text: text})
		}
		return stepDoneMsg{index: idx, err: step.Run(m.ctx, sub)}
	}
}

func (m *stepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancel()
			m.err = context.Canceled
			return m, tea.Quit
		}

	case subTextMsg:
		m.text = msg.text
		return m, nil

	case stepDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.done = append(m.done, m.text)
		m.current++
		if m.current >= len(m.steps) {
			return m, tea.Quit
		}
		m.text = m.steps[m.current].Title
		return m, m.launch(m.current)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *stepModel) View() string {
	var b strings.Builder
	for _, line := range m.done {
		b.WriteString(ui.StepOK(line) + "\n")
	}
	if m.err != nil {
		b.WriteString(ui.StepFail(m.text) + "\n")
	} else if m.current < len(m.steps) {
		b.WriteString(m.spinner.View() + " " + m.text + "\n")
	}
	return b.String()
}

// RunSteps executes steps in order with animated progress. The first
// failure stops the flow and is returned; ctrl+c cancels the step's
// context and returns context.Canceled.
func RunSteps(ctx context.Context, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runStepsPlain(ctx, steps)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.Yellow)

	m := &stepModel{
		ctx:     ctx,
		cancel:  cancel,
		steps:   steps,
		spinner: s,
	}
	p := tea.NewProgram(m)
	m.program = p

	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("step runner: %w", err)
	}
	if r, ok := result.(*stepModel); ok && r.err != nil {
		return r.err
	}
	return nil
}

// runStepsPlain is the non-TTY fallback: one line per step, no
// animation.
func runStepsPlain(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		text := step.Title
		sub := func(s string) { text = s }
		if err := step.Run(ctx, sub); err != nil {
			fmt.Println(ui.StepFail(text))
			return err
		}
		fmt.Println(ui.StepOK(text))
	}
	return nil
}
