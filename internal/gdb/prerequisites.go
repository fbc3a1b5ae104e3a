package gdb

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

// probeTimeout bounds each prerequisite probe.
const probeTimeout = 2 * time.Second

// PrerequisiteCheck is the outcome of checking one prerequisite.
type PrerequisiteCheck struct {
	Name      string
	Available bool
	// Path is the resolved binary path, if any.
	Path string
	// Version is the first line of the binary's --version output.
	Version string
	Message string
	// Troubleshooting lists what to try when the check failed.
	Troubleshooting []string
	Error           error
}

// PrerequisiteResult collects all prerequisite checks.
type PrerequisiteResult struct {
	Checks       []PrerequisiteCheck
	AllAvailable bool
}

// Failed returns the checks that did not pass.
func (r *PrerequisiteResult) Failed() []PrerequisiteCheck {
	var failed []PrerequisiteCheck
	for _, c := range r.Checks {
		if !c.Available {
			failed = append(failed, c)
		}
	}
	return failed
}

// ValidatePrerequisites checks the GDB binary at gdbPath and OpenOCD's GDB
// server port. Both checks always run so the report is complete.
func ValidatePrerequisites(ctx context.Context, gdbPath, openocdHost string, openocdPort int) (*PrerequisiteResult, error) {
	result := &PrerequisiteResult{
		Checks: []PrerequisiteCheck{
			checkGDBBinary(ctx, gdbPath),
			checkOpenOCDConnection(ctx, openocdHost, openocdPort),
		},
	}
	result.AllAvailable = len(result.Failed()) == 0
	return result, nil
}

// gdbVersion runs gdbPath --version and returns its first line. It fails
// if the binary is not GNU GDB.
func gdbVersion(ctx context.Context, gdbPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, gdbPath, "--version").Output()
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(output), "\n")
	if !strings.Contains(first, "GNU gdb") {
		return "", fmt.Errorf("%s does not appear to be GNU GDB", gdbPath)
	}
	return strings.TrimSpace(first), nil
}

// dialOpenOCD opens and closes a TCP connection to the GDB server port.
func dialOpenOCD(ctx context.Context, address string) error {
	dialer := net.Dialer{Timeout: probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

func checkGDBBinary(ctx context.Context, gdbPath string) PrerequisiteCheck {
	check := PrerequisiteCheck{
		Name: gdbPath,
		Troubleshooting: []string{
			"Install the ARM toolchain: apt install gdb-multiarch (Linux)",
			"Or: brew install --cask gcc-arm-embedded (macOS)",
			"Point --gdb-path at the binary if it is not arm-none-eabi-gdb",
		},
	}

	path, err := exec.LookPath(gdbPath)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s not found in PATH", gdbPath)
		return check
	}
	check.Path = path

	version, err := gdbVersion(ctx, path)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s found at %s but unusable: %v", gdbPath, path, err)
		return check
	}

	check.Available = true
	check.Version = version
	check.Message = fmt.Sprintf("Found at %s", path)
	check.Troubleshooting = nil
	return check
}

func checkOpenOCDConnection(ctx context.Context, host string, port int) PrerequisiteCheck {
	address := fmt.Sprintf("%s:%d", host, port)
	check := PrerequisiteCheck{Name: "OpenOCD connection"}

	if err := dialOpenOCD(ctx, address); err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("Cannot connect to OpenOCD at %s", address)
		check.Troubleshooting = []string{
			"Ensure OpenOCD is running: openocd -f interface/<probe>.cfg -f target/<chip>.cfg",
			fmt.Sprintf("Check OpenOCD's gdb_port is %d and it listens on %s", port, host),
		}
		return check
	}

	check.Available = true
	check.Message = fmt.Sprintf("Connected to %s", address)
	return check
}

// ValidateGDBPath returns a *PrerequisiteError unless gdbPath runs as GNU GDB.
func ValidateGDBPath(ctx context.Context, gdbPath string) error {
	if gdbPath == "" {
		return &PrerequisiteError{Prerequisite: "arm-none-eabi-gdb", Details: "GDB path is empty"}
	}
	if _, err := gdbVersion(ctx, gdbPath); err != nil {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      fmt.Sprintf("%s --version failed", gdbPath),
			Err:          err,
		}
	}
	return nil
}

// ValidateOpenOCDConnection returns a *GDBConnectionError unless the GDB
// server port accepts connections.
func ValidateOpenOCDConnection(ctx context.Context, host string, port int) error {
	if err := dialOpenOCD(ctx, fmt.Sprintf("%s:%d", host, port)); err != nil {
		return &GDBConnectionError{Host: host, Port: port, Err: err}
	}
	return nil
}

// FormatPrerequisiteReport renders result as plain text for logs.
func FormatPrerequisiteReport(result *PrerequisiteResult) string {
	var sb strings.Builder
	for _, check := range result.Checks {
		marker := "ok"
		if !check.Available {
			marker = "missing"
		}
		fmt.Fprintf(&sb, "%s [%s] %s\n", check.Name, marker, check.Message)
		if check.Version != "" {
			fmt.Fprintf(&sb, "  version: %s\n", check.Version)
		}
		for _, tip := range check.Troubleshooting {
			fmt.Fprintf(&sb, "  - %s\n", tip)
		}
	}
	return sb.String()
}
