package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string   // e.g., "Stack canary intact"
	Details         []Param  // shown in order
	Extra           string   // pre-rendered content placed after the details
	Error           error    // failure results only
	Troubleshooting []string // failure results only
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Param) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail line.
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		titleStyle lipgloss.Style
		color      lipgloss.Color
		marker     string
		label      string
	)
	switch r.Type {
	case ResultFailure:
		titleStyle, color, marker, label = ErrorTitleStyle, ErrorColor, FailureMarker, "FAILED"
	case ResultWarning:
		titleStyle, color, marker, label = WarningTitleStyle, WarningColor, WarningMarker, "WARNING"
	default:
		titleStyle, color, marker, label = SuccessTitleStyle, SuccessColor, SuccessMarker, "SUCCESS"
	}

	lines := []string{
		"",
		titleStyle.Render(fmt.Sprintf("   %s  %s  ─  %s", marker, label, r.Title)),
		"",
	}

	for _, d := range r.Details {
		key := ResultKeyStyle.Render("   " + d.Key + ":")
		lines = append(lines, key+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Extra != "" {
		lines = append(lines, r.Extra, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return ResultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{
		TroubleshootingTitleStyle.Render("Troubleshooting:"),
		"",
	}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}
	return TroubleshootingBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// RenderGDBOutputBox renders raw GDB output for verbose mode.
func RenderGDBOutputBox(output string, width int) string {
	content := strings.Join([]string{
		GDBOutputTitleStyle.Render("GDB Output"),
		GDBOutputContentStyle.Render(strings.TrimRight(output, "\n")),
	}, "\n")
	return GDBOutputBoxStyle(clampWidth(width)).Render(content)
}
