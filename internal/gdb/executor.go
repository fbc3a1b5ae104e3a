package gdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"text/template"
	"time"

	"github.com/jannic/probe-run/internal/gdb/scripts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the configuration for GDB execution.
type Config struct {
	// GDBPath is the path to the arm-none-eabi-gdb binary.
	// Default: "arm-none-eabi-gdb" (searches PATH)
	GDBPath string

	// OpenOCDHost is the hostname/IP where OpenOCD is running.
	// Default: "localhost"
	OpenOCDHost string

	// OpenOCDPort is the GDB server port OpenOCD listens on.
	// Default: 3333
	OpenOCDPort int

	// Timeout is the maximum time a single GDB session may take, on top of
	// any time the script itself waits on the target.
	// Default: 30 seconds
	Timeout time.Duration

	// WorkDir is the working directory for temporary files.
	// Default: os.TempDir()
	WorkDir string

	// Output receives GDB output of streaming scripts.
	// Default: os.Stdout
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		Timeout:     30 * time.Second,
		WorkDir:     os.TempDir(),
		Output:      os.Stdout,
	}
}

// Executor executes GDB scripts via os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
	parser *Parser
}

// NewExecutor creates a new GDB executor with the given configuration.
func NewExecutor(config Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Executor{
		config: config,
		logger: logger,
		parser: NewParser(),
	}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Target returns the OpenOCD endpoint scripts connect to.
func (e *Executor) Target() scripts.Target {
	return scripts.Target{Host: e.config.OpenOCDHost, Port: e.config.OpenOCDPort}
}

// Execute runs a GDB script and returns the parsed result.
// The script is rendered as a template, written to a temporary file,
// executed via arm-none-eabi-gdb, and then parsed for results.
//
// Steps:
//  1. Render script template with parameters
//  2. Write rendered script to temporary file
//  3. Execute GDB with script file
//  4. Capture stdout/stderr
//  5. Parse output using script.Parse()
//  6. Clean up temporary file
func (e *Executor) Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	startTime := time.Now()
	timeout := e.timeout(script)

	e.logger.Debug("executing GDB script",
		zap.String("script", script.Name()),
		zap.String("gdb_path", e.config.GDBPath),
		zap.String("openocd", fmt.Sprintf("%s:%d", e.config.OpenOCDHost, e.config.OpenOCDPort)),
		zap.Duration("timeout", timeout),
	)

	rendered, err := e.renderTemplate(script)
	if err != nil {
		return nil, &TemplateError{
			Template: script.Name(),
			Err:      err,
		}
	}

	e.logger.Debug("rendered GDB script template",
		zap.String("script", script.Name()),
		zap.Int("size", len(rendered)),
		zap.String("content", rendered),
	)

	scriptFile, err := e.writeScriptFile(script.Name(), rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	defer os.Remove(scriptFile)

	stdout, stderr, exitCode, err := e.executeGDB(ctx, script, scriptFile, timeout)
	duration := time.Since(startTime)

	e.logger.Debug("GDB execution complete",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Int("exit_code", exitCode),
		zap.Int("stdout_size", len(stdout)),
		zap.Int("stderr_size", len(stderr)),
		zap.String("stdout", stdout),
		zap.String("stderr", stderr),
	)

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return nil, err
	}

	if err != nil || exitCode != 0 {
		// GDB exits non-zero when a command in the script fails. The
		// output usually says why.
		if detected := e.parser.DetectErrors(stdout + "\n" + stderr); detected != nil {
			err = detected
		}
		var connErr *GDBConnectionError
		if errors.As(err, &connErr) {
			connErr.Host = e.config.OpenOCDHost
			connErr.Port = e.config.OpenOCDPort
		}
		return nil, &GDBExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
			Err:      err,
		}
	}

	if timedOut := e.parser.DetectTimeout(stdout + "\n" + stderr); timedOut != nil {
		return nil, &GDBExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
			Err:      timedOut,
		}
	}

	result, err := script.Parse(stdout)
	if err != nil {
		parseErr := &GDBParseError{Script: script.Name(), Output: stdout, Err: err}
		var fieldErr *scripts.FieldError
		if errors.As(err, &fieldErr) {
			parseErr.Field = fieldErr.Field
		}
		return nil, parseErr
	}

	result.Duration = duration
	result.RawOutput = stdout
	result.RawStderr = stderr
	if len(result.Steps) == 0 {
		result.Steps = e.parser.ParseSteps(stdout)
	}

	e.logger.Debug("GDB script executed",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
		zap.Int("steps", result.TotalSteps()),
		zap.Int("bytes_written", result.BytesWritten),
		zap.Int("bytes_read", result.BytesRead),
	)

	return result, nil
}

func (e *Executor) timeout(script scripts.Script) time.Duration {
	timeout := e.config.Timeout
	if w, ok := script.(scripts.Waiter); ok {
		timeout += w.WaitTimeout()
	}
	return timeout
}

// renderTemplate renders the script template with parameters.
func (e *Executor) renderTemplate(script scripts.Script) (string, error) {
	tmpl, err := template.New(script.Name()).Parse(script.Template())
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, script.Params()); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// writeScriptFile writes the rendered script to a temporary file.
func (e *Executor) writeScriptFile(name, content string) (string, error) {
	filename := fmt.Sprintf("probe-canary-%s-*.gdb", name)
	file, err := os.CreateTemp(e.config.WorkDir, filename)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write script content: %w", err)
	}

	return file.Name(), nil
}

// executeGDB executes arm-none-eabi-gdb with the given script file.
// Streaming scripts also copy their output to config.Output while running.
func (e *Executor) executeGDB(ctx context.Context, script scripts.Script, scriptFile string, timeout time.Duration) (stdout, stderr string, exitCode int, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// -batch: exit after the script, non-zero if a command failed
	// -nx: don't execute .gdbinit
	// -x: execute commands from file
	cmd := exec.CommandContext(timeoutCtx, e.config.GDBPath,
		"-batch",
		"-nx",
		"-x", scriptFile,
	)
	// Children of a killed GDB may still hold the output pipes.
	cmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer

	if script.Streaming() {
		stdoutPipe, pipeErr := cmd.StdoutPipe()
		if pipeErr != nil {
			return "", "", -1, fmt.Errorf("failed to create stdout pipe: %w", pipeErr)
		}
		stderrPipe, pipeErr := cmd.StderrPipe()
		if pipeErr != nil {
			return "", "", -1, fmt.Errorf("failed to create stderr pipe: %w", pipeErr)
		}

		if startErr := cmd.Start(); startErr != nil {
			return "", "", -1, fmt.Errorf("failed to start GDB: %w", startErr)
		}

		// Pipes must be drained before Wait.
		output := &lockedWriter{w: e.config.Output}
		var g errgroup.Group
		g.Go(func() error {
			_, err := io.Copy(io.MultiWriter(&stdoutBuf, output), stdoutPipe)
			return err
		})
		g.Go(func() error {
			_, err := io.Copy(io.MultiWriter(&stderrBuf, output), stderrPipe)
			return err
		})

		copyErr := g.Wait()
		err = cmd.Wait()
		if err == nil && copyErr != nil {
			err = fmt.Errorf("failed to copy GDB output: %w", copyErr)
		}
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
		err = cmd.Run()
	}

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		err = &TimeoutError{
			Script:  script.Name(),
			Timeout: timeout.String(),
		}
	}

	return stdout, stderr, exitCode, err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// ValidateConfig validates the executor configuration.
func (e *Executor) ValidateConfig(ctx context.Context) error {
	if err := ValidateGDBPath(ctx, e.config.GDBPath); err != nil {
		return err
	}

	if err := ValidateOpenOCDConnection(ctx, e.config.OpenOCDHost, e.config.OpenOCDPort); err != nil {
		e.logger.Warn("OpenOCD connection check failed",
			zap.String("host", e.config.OpenOCDHost),
			zap.Int("port", e.config.OpenOCDPort),
			zap.Error(err),
		)
		return err
	}

	return nil
}
