package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional status message (e.g., "1.0 KiB", "120ms")
}

// Progress tracks the steps of a command and renders them with a bar.
type Progress struct {
	Steps   []Step
	Current int     // Current step (1-based)
	Percent float64 // 0.0 - 1.0
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress tracker with one pending step per name.
func NewProgress(names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name, Status: StepPending}
	}

	p := &Progress{Steps: steps}
	p.SetWidth(GetTerminalWidth())
	return p
}

// Total returns the number of steps.
func (p *Progress) Total() int {
	return len(p.Steps)
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-20, 20), 50)
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	idx := stepNumber - 1
	p.Steps[idx].Status = status
	p.Steps[idx].Message = message

	if status == StepRunning {
		p.Current = stepNumber
		return
	}

	completed := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			completed++
		}
	}
	p.Percent = float64(completed) / float64(len(p.Steps))
}

// StartStep marks a step as running
func (p *Progress) StartStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepRunning, message)
}

// CompleteStep marks a step as complete
func (p *Progress) CompleteStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepComplete, message)
}

// FailStep marks a step as failed
func (p *Progress) FailStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepFailed, message)
}

// SkipStep marks a step as skipped
func (p *Progress) SkipStep(stepNumber int, message string) {
	p.UpdateStep(stepNumber, StepSkipped, message)
}

// Render returns the bar followed by the step list.
func (p *Progress) Render() string {
	lines := []string{p.RenderBar(), ""}
	for _, step := range p.Steps {
		lines = append(lines, p.RenderStepLine(step))
	}
	return strings.Join(lines, "\n")
}

// RenderBar renders the progress bar line
func (p *Progress) RenderBar() string {
	barView := p.bar.ViewAs(p.Percent)
	percentStr := fmt.Sprintf("%3.0f%%", p.Percent*100)
	stepStr := fmt.Sprintf("[%d/%d]", p.Current, len(p.Steps))

	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %s  %s", barView, percentStr, stepStr))
}

// RenderStepLine renders a single step line
func (p *Progress) RenderStepLine(step Step) string {
	var (
		marker    string
		nameStyle lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, nameStyle = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, nameStyle = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, nameStyle = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, nameStyle = StepMarkerSkipped, StepPendingStyle
	default:
		marker, nameStyle = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(nameStyle.Render(step.Name))

	// Markers line up in one column
	const nameColumn = 40
	b.WriteString(strings.Repeat(" ", max(nameColumn-lipgloss.Width(step.Name), 1)))
	b.WriteString(nameStyle.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
