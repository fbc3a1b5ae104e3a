package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"github.com/jannic/probe-run/internal/canary"
)

func bytesString(n uint32) string {
	return humanize.IBytes(uint64(n))
}

func mode(measure bool) string {
	if measure {
		return "stack measurement"
	}
	return "overflow detection"
}

// renderGauge renders percent (0-100) as a bar.
func renderGauge(percent float64, width int) string {
	barWidth := min(max(width-40, 20), 40)
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	frac := min(max(percent/100, 0), 1)
	return fmt.Sprintf("   %s  %5.1f%%", bar.ViewAs(frac), percent)
}

// RenderPlan renders an installed canary.
func RenderPlan(plan *canary.Plan, width int) string {
	r := NewSuccessResult("Stack canary installed",
		Param{"Mode", mode(plan.MeasureStack)},
		Param{"Canary", fmt.Sprintf("0x%08x..0x%08x", plan.Address, plan.End())},
		Param{"Canary size", bytesString(plan.Size)},
		Param{"Stack available", bytesString(plan.StackAvailable)},
		Param{"Plan ID", plan.ID},
	)
	return r.SetWidth(width).Render()
}

// RenderNoCanary renders the notice for a program that got no canary.
func RenderNoCanary(reason string, width int) string {
	r := NewWarningResult("No stack canary installed", Param{"Reason", reason})
	return r.SetWidth(width).Render()
}

// RenderReport renders the outcome of a canary check.
func RenderReport(report *canary.Report, width int) string {
	details := []Param{{"Mode", mode(report.MeasureStack)}}
	if report.Touched {
		details = append(details,
			Param{"Stack used", "at least " + bytesString(report.MinStackUsage)},
			Param{"High-water mark", fmt.Sprintf("0x%08x", report.TouchedAddress)},
		)
	} else {
		details = append(details, Param{"Stack used", "canary untouched"})
	}
	details = append(details, Param{"Stack available", bytesString(report.StackAvailable)})

	var r *Result
	switch {
	case report.Overflow:
		r = &Result{
			Type:  ResultFailure,
			Title: "Potential stack overflow detected",
			Troubleshooting: []string{
				"Reserve more RAM for the stack in the linker script",
				"Look for large locals or deep recursion on the failing path",
				"Run paint with --measure-stack to see the actual usage",
			},
		}
		if report.DataCorruptionRisk {
			details = append(details, Param{"Static data", "might be corrupted"})
		}
	case report.MeasureStack:
		r = &Result{Type: ResultSuccess, Title: "Stack usage measured"}
	default:
		r = &Result{Type: ResultSuccess, Title: "Stack canary intact"}
	}

	r.Details = details
	if report.MeasureStack {
		r.Extra = renderGauge(report.Percent, clampWidth(width))
	}
	return r.SetWidth(width).Render()
}

// RenderChips renders the chip catalog as an aligned table.
func RenderChips(rows [][3]string) string {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s %s %s\n",
			HeaderParamValueStyle.Render(padRight(row[0], 14)),
			padRight(row[1], 34),
			StepNoteStyle.Render(row[2]),
		)
	}
	return b.String()
}
