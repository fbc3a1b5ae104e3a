package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jannic/probe-run/internal/canary"
)

func TestHeader_ParamsInOrder(t *testing.T) {
	h := NewHeader("Stack Canary", "probe-canary paint",
		Param{"OpenOCD", "localhost:3333"},
		Param{"ELF", "app.elf"},
		Param{"Chip", "nrf52840"},
	).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "STACK CANARY") {
		t.Errorf("expected uppercase title, got:\n%s", out)
	}

	openocd := strings.Index(out, "localhost:3333")
	elf := strings.Index(out, "app.elf")
	chip := strings.Index(out, "nrf52840")
	if openocd < 0 || elf < 0 || chip < 0 {
		t.Fatalf("missing params in:\n%s", out)
	}
	if !(openocd < elf && elf < chip) {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestResult_Types(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{"success", NewSuccessResult("done", Param{"Duration", "1s"}), []string{"SUCCESS", "done", "Duration", "1s"}},
		{"warning", NewWarningResult("careful", Param{"Reason", "heap"}), []string{"WARNING", "careful", "heap"}},
		{"failure", NewFailureResult("broken", errors.New("probe gone"), []string{"plug it in"}), []string{"FAILED", "probe gone", "Troubleshooting", "plug it in"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in:\n%s", w, out)
				}
			}
		})
	}
}

func TestResult_AddDetail(t *testing.T) {
	r := NewSuccessResult("done").AddDetail("First", "1").AddDetail("Second", "2")
	if len(r.Details) != 2 || r.Details[1].Key != "Second" {
		t.Errorf("unexpected details: %+v", r.Details)
	}
}

func TestProgress_Steps(t *testing.T) {
	p := NewProgress("Reset and halt", "Paint canary", "Read canary")
	p.SetWidth(80)

	p.StartStep(1, "")
	if p.Current != 1 {
		t.Errorf("expected current step 1, got %d", p.Current)
	}
	p.CompleteStep(1, "")
	p.SkipStep(2, "heap in use")
	p.FailStep(3, "")

	if got := p.Percent; got < 0.66 || got > 0.67 {
		t.Errorf("expected 2/3 progress, got %f", got)
	}

	out := p.Render()
	for _, want := range []string{"[1/3] Reset and halt", StepMarkerComplete, StepMarkerSkipped, "(heap in use)", FailureMarker} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestProgress_IgnoresOutOfRange(t *testing.T) {
	p := NewProgress("only")
	p.CompleteStep(0, "")
	p.CompleteStep(2, "")
	if p.Percent != 0 {
		t.Errorf("expected no progress, got %f", p.Percent)
	}
}

func TestRenderReport(t *testing.T) {
	tests := []struct {
		name   string
		report *canary.Report
		want   []string
		reject []string
	}{
		{
			name:   "intact",
			report: &canary.Report{StackAvailable: 2048},
			want:   []string{"Stack canary intact", "canary untouched", "2.0 KiB"},
			reject: []string{"High-water mark"},
		},
		{
			name: "overflow",
			report: &canary.Report{
				Touched: true, TouchedAddress: 0x20000460, MinStackUsage: 4096,
				StackAvailable: 4096, Percent: 100, Overflow: true, DataCorruptionRisk: true,
			},
			want: []string{"Potential stack overflow detected", "0x20000460", "4.0 KiB", "might be corrupted", "Troubleshooting"},
		},
		{
			name: "measure",
			report: &canary.Report{
				Touched: true, TouchedAddress: 0x20003c00, MinStackUsage: 1024,
				StackAvailable: 4096, Percent: 25, MeasureStack: true,
			},
			want:   []string{"Stack usage measured", "at least 1.0 KiB", "25.0%"},
			reject: []string{"overflow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderReport(tt.report, 80)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in:\n%s", w, out)
				}
			}
			for _, r := range tt.reject {
				if strings.Contains(out, r) {
					t.Errorf("unexpected %q in:\n%s", r, out)
				}
			}
		})
	}
}

func TestRenderPlan(t *testing.T) {
	plan := &canary.Plan{ID: "abc", Address: 0x20000400, Size: 1024, StackAvailable: 10240}
	out := RenderPlan(plan, 80)
	for _, want := range []string{"Stack canary installed", "0x20000400..0x20000800", "1.0 KiB", "10 KiB", "abc", "overflow detection"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderNoCanary(t *testing.T) {
	out := RenderNoCanary("heap in use", 80)
	if !strings.Contains(out, "No stack canary installed") || !strings.Contains(out, "heap in use") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinnerModel("Painting canary...")
	if !strings.Contains(m.View(), "Painting canary...") {
		t.Errorf("expected label in view, got %q", m.View())
	}

	updated, cmd := m.Update(spinnerDoneMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if updated.View() != "" {
		t.Errorf("expected cleared view, got %q", updated.View())
	}
}

func TestRunWithSpinner_NotATerminal(t *testing.T) {
	var out bytes.Buffer
	called := false

	err := RunWithSpinner(context.Background(), &out, "working", func(ctx context.Context) error {
		called = true
		return errors.New("boom")
	})

	if !called {
		t.Error("expected fn to run")
	}
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected fn error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no spinner output, got %q", out.String())
	}
}

func TestRunner(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(RunnerConfig{
		Title:   "Stack Canary",
		Command: "probe-canary paint",
		Steps:   []string{"Reset and halt", "Paint canary"},
		Verbose: true,
		Output:  &out,
	})

	runner.Start()
	if err := runner.Step(context.Background(), 1, func(ctx context.Context) (string, error) {
		return "", nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stepErr := errors.New("write failed")
	if err := runner.Step(context.Background(), 2, func(ctx context.Context) (string, error) {
		return "", stepErr
	}); !errors.Is(err, stepErr) {
		t.Fatalf("expected step error, got %v", err)
	}
	runner.Fail("Paint failed", stepErr, "Cannot access memory at address 0x20000400")

	got := out.String()
	for _, want := range []string{"STACK CANARY", "[1/2] Reset and halt", "[2/2] Paint canary", "Paint failed", "GDB Output", "Cannot access memory"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
	if runner.Progress().Steps[1].Status != StepFailed {
		t.Errorf("expected step 2 failed, got %v", runner.Progress().Steps[1].Status)
	}
}
