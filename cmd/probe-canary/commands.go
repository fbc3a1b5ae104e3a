package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jannic/probe-run/internal/canary"
	"github.com/jannic/probe-run/internal/config"
	"github.com/jannic/probe-run/internal/gdb"
	"github.com/jannic/probe-run/internal/logging"
	"github.com/jannic/probe-run/internal/program"
	"github.com/jannic/probe-run/internal/target"
	"github.com/jannic/probe-run/internal/ui"
	"github.com/jannic/probe-run/internal/version"
)

// options holds the persistent flags and the settings derived from them.
type options struct {
	gdbPath     string
	openocdHost string
	openocdPort int
	timeout     time.Duration
	logLevel    string
	verbose     bool

	settings config.Settings
	logger   *zap.Logger
}

// programFlags describe the program under test and where its RAM is.
type programFlags struct {
	elfPath      string
	chip         string
	ramStart     uint32
	ramSize      uint32
	measureStack bool
	planPath     string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	defaults := config.DefaultSettings()

	rootCmd := &cobra.Command{
		Use:   "probe-canary",
		Short: "Stack overflow detection for Cortex-M targets",
		Long: `Detect stack overflows of Cortex-M programs through a debug probe.

Before the program runs, the unused stack is painted with 0xAA by a small
subroutine executed on the target. After the program halted, the painted
region is read back. Any changed byte means the stack grew that deep.

In the default mode only the bottom of the stack is painted, and touching
it is reported as a potential stack overflow. With --measure-stack the whole
unused stack is painted and the stack usage is reported instead.

Prerequisites:
  - arm-none-eabi-gdb installed and in PATH
  - OpenOCD running and attached to the target

Use 'probe-canary verify-setup' to check prerequisites.`,
		Version:       version.Version,
		SilenceErrors: true,
		Example: `  # Paint, run until the target halts, and check
  probe-canary run --elf app.elf --chip nrf52840

  # Paint now, check later
  probe-canary paint --elf app.elf --chip nrf52840 --plan plan.yaml
  probe-canary check --elf app.elf --plan plan.yaml

  # Try the protocol without hardware
  probe-canary simulate --stack-size 8192 --touch 2048 --measure-stack`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.openocdHost, "openocd-host", defaults.OpenOCDHost, "OpenOCD hostname")
	flags.IntVar(&o.openocdPort, "openocd-port", defaults.OpenOCDPort, "OpenOCD GDB server port")
	flags.StringVar(&o.gdbPath, "gdb-path", defaults.GDBPath, "Path to arm-none-eabi-gdb binary")
	flags.DurationVar(&o.timeout, "timeout", defaults.Timeout, "Timeout for reset and injected code (e.g., 5s, 1m)")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $"+logging.LogLevelEnvVar+" or silent)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Show GDB output on failure")

	rootCmd.AddCommand(
		o.paintCmd(),
		o.checkCmd(),
		o.runCmd(),
		o.simulateCmd(),
		o.chipsCmd(),
		o.verifySetupCmd(),
		versionCmd(),
	)

	return rootCmd
}

// setup initializes logging and resolves settings: flag > config file > default.
func (o *options) setup(cmd *cobra.Command) error {
	if err := logging.Initialize(o.logLevel); err != nil {
		return err
	}
	o.logger = logging.GetLogger()

	registry, err := config.LoadRegistry()
	if err != nil {
		o.logger.Warn("ignoring unreadable config file", zap.Error(err))
		registry = nil
	}
	s := registry.Settings()

	flags := cmd.Flags()
	if flags.Changed("gdb-path") {
		s.GDBPath = o.gdbPath
	}
	if flags.Changed("openocd-host") {
		s.OpenOCDHost = o.openocdHost
	}
	if flags.Changed("openocd-port") {
		s.OpenOCDPort = o.openocdPort
	}
	if flags.Changed("timeout") {
		if o.timeout <= 0 {
			return fmt.Errorf("--timeout must be positive")
		}
		s.Timeout = o.timeout
	}
	o.settings = s

	o.logger.Debug("settings resolved",
		zap.String("gdb_path", s.GDBPath),
		zap.String("openocd", o.endpoint()),
		zap.Duration("timeout", s.Timeout),
		zap.String("chip", s.Chip),
	)
	return nil
}

func (o *options) endpoint() string {
	return fmt.Sprintf("%s:%d", o.settings.OpenOCDHost, o.settings.OpenOCDPort)
}

func (o *options) newCore(out io.Writer, stream bool) *gdb.Core {
	cfg := gdb.DefaultConfig()
	cfg.GDBPath = o.settings.GDBPath
	cfg.OpenOCDHost = o.settings.OpenOCDHost
	cfg.OpenOCDPort = o.settings.OpenOCDPort
	cfg.Output = out
	return gdb.NewCore(gdb.NewExecutor(cfg, o.logger), o.logger, stream)
}

func (o *options) newMonitor(measureStack bool) *canary.Monitor {
	cfg := canary.DefaultConfig()
	cfg.MeasureStack = measureStack
	cfg.Timeout = o.settings.Timeout
	return canary.NewMonitor(cfg, o.logger)
}

func (p *programFlags) register(cmd *cobra.Command, withRAM bool) {
	cmd.Flags().StringVar(&p.elfPath, "elf", "", "ELF file of the program on the target")
	_ = cmd.MarkFlagRequired("elf")
	if withRAM {
		cmd.Flags().StringVar(&p.chip, "chip", "", "Chip name from the catalog (see 'probe-canary chips')")
		cmd.Flags().Uint32Var(&p.ramStart, "ram-start", 0, "RAM start address (with --ram-size, instead of --chip)")
		cmd.Flags().Uint32Var(&p.ramSize, "ram-size", 0, "RAM size in bytes (with --ram-start, instead of --chip)")
		cmd.Flags().BoolVar(&p.measureStack, "measure-stack", false, "Paint the whole stack and report its usage")
	}
}

// measure resolves --measure-stack against the config file.
func (o *options) measure(cmd *cobra.Command, p *programFlags) bool {
	if cmd.Flags().Changed("measure-stack") {
		return p.measureStack
	}
	return o.settings.MeasureStack
}

// loadedProgram is an ELF resolved against the RAM of its chip.
type loadedProgram struct {
	elf  *program.ELF
	ram  target.Region
	info target.Info
}

func (l *loadedProgram) summary() string {
	if l.info.Stack == nil {
		return "stack unknown"
	}
	return humanize.IBytes(uint64(l.info.Stack.Available())) + " stack"
}

// skipReason explains why Install placed no canary.
func (l *loadedProgram) skipReason() string {
	switch {
	case l.info.Stack == nil:
		return fmt.Sprintf("stack range could not be determined in %s", l.ram)
	case l.elf.UsesHeap:
		return "program links a heap allocator"
	default:
		return "unknown"
	}
}

func (o *options) resolveRAM(p *programFlags, sp uint32) (target.Region, error) {
	if p.ramSize > 0 {
		ram := target.Region{Name: "RAM", Start: p.ramStart, Size: p.ramSize}
		if ram.End() > 1<<32 {
			return target.Region{}, fmt.Errorf("RAM %s exceeds the address space", ram)
		}
		return ram, nil
	}

	name := p.chip
	if name == "" {
		name = o.settings.Chip
	}
	if name == "" {
		return target.Region{}, errors.New("no RAM layout: pass --chip, or --ram-start and --ram-size")
	}

	chips, err := config.LoadChips()
	if err != nil {
		return target.Region{}, err
	}
	chip, err := chips.Chip(name)
	if err != nil {
		return target.Region{}, err
	}
	return chip.RegionFor(sp)
}

func (o *options) loadProgram(p *programFlags) (*loadedProgram, error) {
	elf, err := program.Load(p.elfPath)
	if err != nil {
		return nil, err
	}

	ram, err := o.resolveRAM(p, elf.InitialStackPointer)
	if err != nil {
		return nil, err
	}
	logging.LogMemoryRegion("ram", uint64(ram.Start), ram.End())

	loaded := &loadedProgram{elf: elf, ram: ram, info: elf.Info(ram)}
	if s := loaded.info.Stack; s != nil {
		logging.LogMemoryRegion("unused stack", uint64(s.Start), uint64(s.End))
	}
	o.logger.Debug("program loaded",
		zap.String("elf", p.elfPath),
		zap.String("initial_sp", fmt.Sprintf("0x%08x", elf.InitialStackPointer)),
		zap.String("sp_source", elf.StackPointerSource),
		zap.Bool("uses_heap", elf.UsesHeap),
	)
	return loaded, nil
}

func (o *options) header(p *programFlags, measure bool) []ui.Param {
	mode := "overflow detection"
	if measure {
		mode = "stack measurement"
	}
	params := []ui.Param{
		{Key: "OpenOCD", Value: o.endpoint()},
		{Key: "ELF", Value: p.elfPath},
	}
	if p.planPath != "" {
		params = append(params, ui.Param{Key: "Plan", Value: p.planPath})
	}
	return append(params, ui.Param{Key: "Mode", Value: mode})
}

// gdbOutput extracts the raw GDB output carried by err, if any.
func gdbOutput(err error) string {
	var execErr *gdb.GDBExecutionError
	if errors.As(err, &execErr) {
		return strings.TrimSpace(execErr.Stdout + "\n" + execErr.Stderr)
	}
	return ""
}

// logHighWater dumps the bytes around the deepest stack access at debug level.
func (o *options) logHighWater(ctx context.Context, core target.Core, report *canary.Report, plan *canary.Plan) {
	if !report.Touched || !o.logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	n := min(16, plan.End()-report.TouchedAddress)
	data, err := core.ReadBytes(ctx, report.TouchedAddress, int(n))
	if err != nil {
		o.logger.Debug("could not read high-water mark", zap.Error(err))
		return
	}
	logging.LogRawBytes(fmt.Sprintf("stack at 0x%08x", report.TouchedAddress), data)
}

func (o *options) paintCmd() *cobra.Command {
	p := &programFlags{}
	cmd := &cobra.Command{
		Use:   "paint",
		Short: "Reset the target and paint the stack canary",
		Long: `Reset and halt the target, paint the stack canary and save the canary
plan for a later 'check'.

No canary is placed if the stack range cannot be determined from the ELF
file, or if the program links a heap allocator.`,
		Example: `  probe-canary paint --elf app.elf --chip nrf52840
  probe-canary paint --elf app.elf --ram-start 0x20000000 --ram-size 0x10000 --measure-stack`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return o.runPaint(cmd, p)
		},
	}
	p.register(cmd, true)
	cmd.Flags().StringVar(&p.planPath, "plan", "canary-plan.yaml", "Where to save the canary plan")
	return cmd
}

func (o *options) runPaint(cmd *cobra.Command, p *programFlags) error {
	ctx := cmd.Context()
	measure := o.measure(cmd, p)

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Stack Canary",
		Command: "probe-canary paint",
		Params:  o.header(p, measure),
		Steps:   []string{"Load program", "Paint canary", "Save plan"},
		Verbose: o.verbose,
		Output:  cmd.OutOrStdout(),
	})
	runner.Start()

	var loaded *loadedProgram
	if err := runner.Step(ctx, 1, func(ctx context.Context) (string, error) {
		var err error
		loaded, err = o.loadProgram(p)
		if err != nil {
			return "", err
		}
		return loaded.summary(), nil
	}); err != nil {
		runner.Fail("Could not load program", err, "")
		return err
	}

	core := o.newCore(cmd.OutOrStdout(), false)
	plan, err := o.install(ctx, runner, 2, core, loaded, measure)
	if err != nil {
		return err
	}
	if plan == nil {
		runner.Skip(3, "nothing to save")
		runner.Finish(ui.RenderNoCanary(loaded.skipReason(), runner.Printer().Width()))
		return nil
	}

	if err := runner.Step(ctx, 3, func(ctx context.Context) (string, error) {
		return p.planPath, canary.SavePlan(p.planPath, plan)
	}); err != nil {
		runner.Fail("Could not save plan", err, "")
		return err
	}

	runner.Finish(ui.RenderPlan(plan, runner.Printer().Width()))
	return nil
}

// install runs Monitor.Install as step n.
func (o *options) install(ctx context.Context, runner *ui.Runner, n int, core target.Core, loaded *loadedProgram, measure bool) (*canary.Plan, error) {
	monitor := o.newMonitor(measure)

	var plan *canary.Plan
	err := runner.Step(ctx, n, func(ctx context.Context) (string, error) {
		var err error
		plan, err = monitor.Install(ctx, core, loaded.info, loaded.elf.Program())
		if err != nil || plan == nil {
			return "skipped", err
		}
		return humanize.IBytes(uint64(plan.Size)), nil
	})
	if err != nil {
		runner.Fail("Painting the canary failed", err, gdbOutput(err))
		return nil, err
	}
	return plan, nil
}

// measureAndReport reads back the canary as step n and renders the report.
func (o *options) measureAndReport(ctx context.Context, runner *ui.Runner, n int, core target.Core, plan *canary.Plan, prog target.Program) error {
	monitor := o.newMonitor(plan.MeasureStack)

	var report *canary.Report
	if err := runner.Step(ctx, n, func(ctx context.Context) (string, error) {
		var err error
		report, err = monitor.Measure(ctx, core, plan, prog)
		if err != nil {
			return "", err
		}
		return humanize.IBytes(uint64(plan.Size)), nil
	}); err != nil {
		runner.Fail("Reading the canary failed", err, gdbOutput(err))
		return err
	}

	monitor.LogReport(report)
	o.logHighWater(ctx, core, report, plan)
	runner.Finish(ui.RenderReport(report, runner.Printer().Width()))

	if report.Overflow {
		return errOverflow
	}
	return nil
}

func (o *options) checkCmd() *cobra.Command {
	p := &programFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Read back a painted canary and report stack usage",
		Long: `Read back the canary described by a plan saved by 'paint' and report the
result. The target must be halted, which OpenOCD does when GDB attaches.

Exit status is 2 if a potential stack overflow was detected.`,
		Example: `  probe-canary check --elf app.elf --plan canary-plan.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return o.runCheck(cmd, p)
		},
	}
	p.register(cmd, false)
	cmd.Flags().StringVar(&p.planPath, "plan", "canary-plan.yaml", "Canary plan saved by paint")
	return cmd
}

func (o *options) runCheck(cmd *cobra.Command, p *programFlags) error {
	ctx := cmd.Context()

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Stack Canary",
		Command: "probe-canary check",
		Params:  o.header(p, false)[:3],
		Steps:   []string{"Load program", "Load plan", "Read canary"},
		Verbose: o.verbose,
		Output:  cmd.OutOrStdout(),
	})
	runner.Start()

	var elf *program.ELF
	if err := runner.Step(ctx, 1, func(ctx context.Context) (string, error) {
		var err error
		elf, err = program.Load(p.elfPath)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sp 0x%08x", elf.InitialStackPointer), nil
	}); err != nil {
		runner.Fail("Could not load program", err, "")
		return err
	}

	var plan *canary.Plan
	if err := runner.Step(ctx, 2, func(ctx context.Context) (string, error) {
		var err error
		plan, err = canary.LoadPlan(p.planPath)
		if err != nil {
			return "", err
		}
		return plan.String(), nil
	}); err != nil {
		runner.Fail("Could not load plan", err, "")
		return err
	}
	o.logger.Debug("checking canary", zap.String("plan_id", plan.ID))

	core := o.newCore(cmd.OutOrStdout(), false)
	return o.measureAndReport(ctx, runner, 3, core, plan, elf.Program())
}

func (o *options) runCmd() *cobra.Command {
	p := &programFlags{}
	var runTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Paint the canary, run the program until it halts, then check",
		Long: `Reset the target, paint the canary, resume the program and wait for it
to halt (breakpoint, semihosting exit or fault), then read back the canary.

GDB output is shown while the program runs.

Exit status is 2 if a potential stack overflow was detected.`,
		Example: `  probe-canary run --elf app.elf --chip rp2040 --run-timeout 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return o.runRun(cmd, p, runTimeout)
		},
	}
	p.register(cmd, true)
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", time.Minute, "How long the program may run before it must halt")
	return cmd
}

func (o *options) runRun(cmd *cobra.Command, p *programFlags, runTimeout time.Duration) error {
	ctx := cmd.Context()
	measure := o.measure(cmd, p)

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Stack Canary",
		Command: "probe-canary run",
		Params:  o.header(p, measure),
		Steps:   []string{"Load program", "Paint canary", "Run program", "Read canary"},
		Verbose: o.verbose,
		Output:  cmd.OutOrStdout(),
	})
	runner.Start()

	var loaded *loadedProgram
	if err := runner.Step(ctx, 1, func(ctx context.Context) (string, error) {
		var err error
		loaded, err = o.loadProgram(p)
		if err != nil {
			return "", err
		}
		return loaded.summary(), nil
	}); err != nil {
		runner.Fail("Could not load program", err, "")
		return err
	}

	core := o.newCore(cmd.OutOrStdout(), false)
	plan, err := o.install(ctx, runner, 2, core, loaded, measure)
	if err != nil {
		return err
	}

	// Only the user program's run shows live GDB output.
	running := o.newCore(cmd.OutOrStdout(), true)
	if err := runner.StepStreaming(ctx, 3, func(ctx context.Context) (string, error) {
		if err := running.Resume(ctx); err != nil {
			return "", err
		}
		return "", running.WaitUntilHalted(ctx, runTimeout)
	}); err != nil {
		runner.Fail("Program did not halt", err, gdbOutput(err))
		return err
	}

	if plan == nil {
		runner.Skip(4, "no canary")
		runner.Finish(ui.RenderNoCanary(loaded.skipReason(), runner.Printer().Width()))
		return nil
	}

	return o.measureAndReport(ctx, runner, 4, core, plan, loaded.elf.Program())
}

func (o *options) simulateCmd() *cobra.Command {
	var (
		stackSize    uint32
		staticSize   uint32
		touch        uint32
		measureStack bool
		usesHeap     bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the canary protocol against a simulated core",
		Long: `Install, run and check a canary on an in-memory Cortex-M core. The paint
subroutine really executes on the simulated core; the simulated program
only writes --touch bytes below its initial stack pointer and halts.

Exit status is 2 if a potential stack overflow was detected.`,
		Example: `  # Overflow detection: touching the bottom 10% of the stack is reported
  probe-canary simulate --stack-size 8192 --touch 8000

  # Stack measurement
  probe-canary simulate --stack-size 8192 --touch 2048 --measure-stack`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if cmd.Flags().Changed("measure-stack") {
				o.settings.MeasureStack = measureStack
			}
			return o.runSimulate(cmd, simulation{
				stackSize:  stackSize,
				staticSize: staticSize,
				touch:      touch,
				usesHeap:   usesHeap,
			})
		},
	}
	cmd.Flags().Uint32Var(&stackSize, "stack-size", 8192, "Bytes of RAM between static data and the initial stack pointer")
	cmd.Flags().Uint32Var(&staticSize, "static-size", 1024, "Bytes of static data (.data, .bss) below the stack")
	cmd.Flags().Uint32Var(&touch, "touch", 0, "Bytes of stack the simulated program uses")
	cmd.Flags().BoolVar(&measureStack, "measure-stack", false, "Paint the whole stack and report its usage")
	cmd.Flags().BoolVar(&usesHeap, "heap", false, "Pretend the program links a heap allocator")
	return cmd
}

const (
	simRAMStart = 0x20000000
	simResetPC  = 0x00000100
)

type simulation struct {
	stackSize  uint32
	staticSize uint32
	touch      uint32
	usesHeap   bool
}

func (o *options) runSimulate(cmd *cobra.Command, sim simulation) error {
	ctx := cmd.Context()
	measure := o.settings.MeasureStack

	if sim.stackSize == 0 {
		return errors.New("--stack-size must be positive")
	}
	staticEnd := canary.RoundUp(simRAMStart+sim.staticSize, canary.Alignment)
	ram := target.Region{Name: "RAM", Start: simRAMStart, Size: staticEnd - simRAMStart + sim.stackSize}
	sp := uint32(ram.End())
	touch := min(sim.touch, ram.Size)

	core := target.NewSimulator(target.SimulatorConfig{
		Regions:             []target.Region{{Name: "flash", Start: 0, Size: 0x1000}, ram},
		InitialStackPointer: sp,
		ResetPC:             simResetPC,
	})
	core.Hook(simResetPC, func(s *target.Simulator) error {
		return s.Poke(sp-touch, make([]byte, touch))
	})

	info := target.Info{Stack: &target.StackInfo{Start: staticEnd, End: sp, DataBelowStack: sim.staticSize > 0}}
	prog := target.Program{InitialStackPointer: sp, UsesHeap: sim.usesHeap}

	mode := "overflow detection"
	if measure {
		mode = "stack measurement"
	}
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Stack Canary Simulation",
		Command: "probe-canary simulate",
		Params: []ui.Param{
			{Key: "RAM", Value: ram.String()},
			{Key: "Stack", Value: info.Stack.String()},
			{Key: "Stack used", Value: humanize.IBytes(uint64(touch))},
			{Key: "Mode", Value: mode},
		},
		Steps:   []string{"Paint canary", "Run program", "Read canary"},
		Verbose: o.verbose,
		Output:  cmd.OutOrStdout(),
	})
	runner.Start()

	loaded := &loadedProgram{elf: &program.ELF{UsesHeap: sim.usesHeap}, ram: ram, info: info}
	monitor := o.newMonitor(measure)

	var plan *canary.Plan
	if err := runner.Step(ctx, 1, func(ctx context.Context) (string, error) {
		var err error
		plan, err = monitor.Install(ctx, core, info, prog)
		if err != nil || plan == nil {
			return "skipped", err
		}
		stats := core.Stats()
		return fmt.Sprintf("%s painted, %d instructions, %s over the probe",
			humanize.IBytes(uint64(plan.Size)), stats.Instructions, humanize.IBytes(uint64(stats.BytesWritten))), nil
	}); err != nil {
		runner.Fail("Painting the canary failed", err, "")
		return err
	}

	if err := runner.Step(ctx, 2, func(ctx context.Context) (string, error) {
		if err := core.Resume(ctx); err != nil {
			return "", err
		}
		return "", core.WaitUntilHalted(ctx, o.settings.Timeout)
	}); err != nil {
		runner.Fail("Program did not halt", err, "")
		return err
	}

	if plan == nil {
		runner.Skip(3, "no canary")
		runner.Finish(ui.RenderNoCanary(loaded.skipReason(), runner.Printer().Width()))
		return nil
	}

	return o.measureAndReport(ctx, runner, 3, core, plan, prog)
}

func (o *options) chipsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chips",
		Short: "List the chips with a known RAM layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := config.LoadChips()
			if err != nil {
				return err
			}

			var rows [][3]string
			for _, name := range catalog.Names() {
				chip, err := catalog.Chip(name)
				if err != nil {
					return err
				}
				regions := make([]string, 0, len(chip.Memory))
				for _, r := range chip.Memory {
					regions = append(regions, fmt.Sprintf("%s %s @ 0x%08x", r.Name, humanize.IBytes(uint64(r.Size)), r.Start))
				}
				rows = append(rows, [3]string{name, chip.Description, strings.Join(regions, ", ")})
			}

			ui.NewPrinter(cmd.OutOrStdout()).Print(ui.RenderChips(rows))
			return nil
		},
	}
}

func (o *options) verifySetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-setup",
		Short: "Check GDB and the OpenOCD connection",
		Long: `Verify that GDB is installed and that OpenOCD's GDB server is reachable,
then list the targets OpenOCD knows about.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return o.runVerifySetup(cmd)
		},
	}
}

func (o *options) runVerifySetup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Setup Verification", "probe-canary verify-setup",
		ui.Param{Key: "GDB Path", Value: o.settings.GDBPath},
		ui.Param{Key: "OpenOCD", Value: o.endpoint()},
	)

	prereq, err := gdb.ValidatePrerequisites(ctx, o.settings.GDBPath, o.settings.OpenOCDHost, o.settings.OpenOCDPort)
	if err != nil {
		return err
	}
	if !prereq.AllAvailable {
		var troubleshooting, failures []string
		for _, check := range prereq.Failed() {
			failures = append(failures, fmt.Sprintf("%s: %s", check.Name, check.Message))
			troubleshooting = append(troubleshooting, check.Troubleshooting...)
		}
		o.logger.Debug("prerequisite report", zap.String("report", gdb.FormatPrerequisiteReport(prereq)))
		printer.PrintResult(ui.NewFailureResult("Setup verification failed",
			errors.New(strings.Join(failures, "; ")), troubleshooting))
		return fmt.Errorf("setup verification failed")
	}

	core := o.newCore(cmd.OutOrStdout(), false)
	var (
		targets []string
		state   string
	)
	err = ui.RunWithSpinner(ctx, cmd.OutOrStdout(), "Querying OpenOCD targets...", func(ctx context.Context) error {
		var err error
		targets, state, err = core.VerifySetup(ctx)
		return err
	})
	if err != nil {
		printer.PrintResult(ui.NewFailureResult("Setup verification failed", err, ui.DefaultTroubleshooting))
		if o.verbose {
			printer.PrintGDBOutput(gdbOutput(err))
		}
		return fmt.Errorf("setup verification failed: %w", err)
	}

	printer.PrintResult(ui.NewSuccessResult("Setup verification complete",
		ui.Param{Key: "GDB", Value: o.settings.GDBPath + " (found)"},
		ui.Param{Key: "OpenOCD", Value: o.endpoint() + " (connected)"},
		ui.Param{Key: "Targets", Value: strings.Join(targets, ", ")},
		ui.Param{Key: "State", Value: state},
	))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "probe-canary %s\n", version.Full())
		},
	}
}
