package gdb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jannic/probe-run/internal/gdb/scripts"
)

// Parser provides utilities for parsing GDB and OpenOCD output.
type Parser struct {
	stepPattern    *regexp.Regexp // Matches: [1/2] Step description...
	failurePattern *regexp.Regexp // Matches: error, ERROR, FAIL, failed, abort
	waitPattern    *regexp.Regexp // Matches: monitor wait_halt <ms>
}

// NewParser creates a new parser with compiled regex patterns.
func NewParser() *Parser {
	return &Parser{
		stepPattern:    regexp.MustCompile(`^\[(\d+)/(\d+)\]\s+(.+?)(?:\.\.\.)?\s*$`),
		failurePattern: regexp.MustCompile(`(?i)error|fail|abort|cannot access memory`),
		waitPattern:    regexp.MustCompile(`timed out while waiting for target halted`),
	}
}

// ParseSteps extracts step markers from GDB output.
// Looks for lines like:
//
//	[1/2] Resuming target...
//	[2/2] Waiting up to 5000 ms for halt...
//
// A step is "failed" if a failure line follows it before the next marker.
func (p *Parser) ParseSteps(output string) []scripts.Step {
	lines := strings.Split(output, "\n")
	steps := make([]scripts.Step, 0)

	for i, line := range lines {
		line = strings.TrimSpace(line)
		matches := p.stepPattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		status := "success"
		message := ""
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if p.stepPattern.MatchString(next) {
				break
			}
			if p.failurePattern.MatchString(next) {
				status = "failed"
				message = next
				break
			}
		}

		steps = append(steps, scripts.Step{
			Name:    fmt.Sprintf("[%s/%s] %s", matches[1], matches[2], matches[3]),
			Status:  status,
			Message: message,
		})
	}

	return steps
}

// DetectTimeout reports a halt timeout printed by OpenOCD. GDB may still
// exit zero after one, so callers check it on success too.
func (p *Parser) DetectTimeout(output string) error {
	for _, line := range strings.Split(output, "\n") {
		if p.waitPattern.MatchString(line) {
			return &TimeoutError{Script: "run_until_halt", Timeout: "wait_halt"}
		}
	}
	return nil
}

// DetectErrors scans GDB output for known error indicators and returns a
// typed error for the first one found, or nil.
func (p *Parser) DetectErrors(output string) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if p.waitPattern.MatchString(line) {
			return &TimeoutError{Script: "run_until_halt", Timeout: "wait_halt"}
		}

		if strings.Contains(line, "Cannot access memory at address") {
			return fmt.Errorf("GDB memory access error: %s", line)
		}

		if strings.Contains(line, "Connection refused") ||
			strings.Contains(line, "Connection timed out") ||
			strings.Contains(line, "could not connect") {
			return &GDBConnectionError{
				Host: "unknown",
				Port: 0,
				Err:  errors.New(line),
			}
		}

		if strings.Contains(line, "Remote communication error") ||
			strings.Contains(line, "Remote connection closed") {
			return fmt.Errorf("GDB communication error: %s", line)
		}
	}

	return nil
}
