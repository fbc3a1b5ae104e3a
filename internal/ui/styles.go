package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, checkmarks
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, X marks
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
)

var (
	// HeaderTitleStyle is for the command title (e.g., "STACK CANARY")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderCommandStyle is for the command path (e.g., "probe-canary paint")
	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// ProgressLabelStyle is for spinner labels ("Painting canary...")
	ProgressLabelStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	StepCompleteStyle = lipgloss.NewStyle().
				Foreground(SuccessColor)

	StepRunningStyle = lipgloss.NewStyle().
				Foreground(WarningColor)

	StepPendingStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	// StepNoteStyle is for optional notes in parentheses
	StepNoteStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningTitleStyle = lipgloss.NewStyle().
				Foreground(WarningColor).
				Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(21)

	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	TroubleshootingTitleStyle = lipgloss.NewStyle().
					Foreground(MutedColor).
					Bold(true)

	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)

	GDBOutputTitleStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Bold(true)

	GDBOutputContentStyle = lipgloss.NewStyle().
				Foreground(TextColor)
)

// Status markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

// GetTerminalWidth returns the current terminal width, clamped to
// [MinTerminalWidth, MaxContentWidth].
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// HeaderBorderStyle returns the border style for command headers
func HeaderBorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2)
}

// ResultBoxStyle returns the double-bordered style of result boxes.
func ResultBoxStyle(width int, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// TroubleshootingBoxStyle returns the border style for troubleshooting sections
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	innerWidth := width - 12
	if innerWidth < 40 {
		innerWidth = 40
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(3)
}

// GDBOutputBoxStyle returns the border style for GDB output boxes
func GDBOutputBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-4).
		Padding(0, 1)
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat(char, width))
}
