package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type spinnerDoneMsg struct{}

// spinnerModel shows a spinner next to a label until the work it tracks
// is done. It never reads input.
type spinnerModel struct {
	spinner spinner.Model
	label   string
	done    bool
}

func newSpinnerModel(label string) spinnerModel {
	return spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		label: label,
	}
}

// Init implements tea.Model
func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model. The line is cleared once the work is done.
func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return "  " + m.spinner.View() + " " + ProgressLabelStyle.Render(m.label)
}

// RunWithSpinner runs fn while a spinner labelled label animates on out.
// When out is not a terminal, fn runs without any output.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, fn func(context.Context) error) error {
	if !IsTerminal(out) {
		return fn(ctx)
	}

	p := tea.NewProgram(newSpinnerModel(label),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		p.Send(spinnerDoneMsg{})
	}()

	_, _ = p.Run()
	return <-errc
}
