package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown in a header or result box.
type Param struct {
	Key   string
	Value string
}

// Header is the banner printed at the start of a command.
type Header struct {
	Title   string  // e.g., "STACK CANARY"
	Command string  // e.g., "probe-canary paint"
	Params  []Param // shown in order
	Width   int
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) > 0 {
		dividerWidth := width - 6
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := RenderHorizontalDivider(dividerWidth, "─")

		keyWidth := 0
		for _, p := range h.Params {
			keyWidth = max(keyWidth, lipgloss.Width(p.Key)+1)
		}

		lines := make([]string, 0, len(h.Params))
		for _, p := range h.Params {
			key := HeaderParamKeyStyle.Render(padRight(p.Key+":", keyWidth))
			lines = append(lines, key+" "+HeaderParamValueStyle.Render(p.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(lines, "\n"))
	}

	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
