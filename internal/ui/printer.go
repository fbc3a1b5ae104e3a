package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes UI components to a writer. Commands print through it
// rather than to os.Stdout directly.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Width returns the width components are rendered at.
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintGDBOutput prints a GDB output box (for verbose mode)
func (p *Printer) PrintGDBOutput(output string) {
	if output == "" {
		return
	}
	p.Newline()
	p.Println(RenderGDBOutputBox(output, p.width))
}
