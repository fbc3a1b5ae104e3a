package canary

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jannic/probe-run/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paintedSimulator returns a core with [start, start+size) already painted.
func paintedSimulator(t *testing.T, start, size uint32) *target.Simulator {
	t.Helper()
	sim := newTestSimulator(8192)
	require.NoError(t, sim.Poke(start, bytes.Repeat([]byte{Value}, int(size))))
	return sim
}

func testPlan(start, size uint32, measure bool) *Plan {
	return &Plan{
		ID:             "test",
		Address:        start,
		Size:           size,
		StackAvailable: 4096,
		DataBelowStack: true,
		MeasureStack:   measure,
	}
}

func TestMeasure_SingleDifferingByte(t *testing.T) {
	const start, size = ramStart + 0x800, 1024
	sp := uint32(ramStart + 0x1800)
	program := target.Program{InitialStackPointer: sp}

	for _, chunk := range []int{1, 7, 16, 1024, 4096} {
		for _, offset := range []uint32{0, 1, 15, 16, 17, 100, 511, 1023} {
			sim := paintedSimulator(t, start, size)
			require.NoError(t, sim.Poke(start+offset, []byte{0x00}))

			m := NewMonitor(Config{ReadChunkSize: chunk}, nil)
			report, err := m.Measure(context.Background(), sim, testPlan(start, size, false), program)

			require.NoError(t, err)
			assert.True(t, report.Touched)
			assert.Equal(t, start+offset, report.TouchedAddress, "chunk %d offset %d", chunk, offset)
			assert.Equal(t, sp-(start+offset), report.MinStackUsage)
			assert.True(t, report.Overflow)
		}
	}
}

func TestMeasure_FindsLowestTouchedByte(t *testing.T) {
	const start, size = ramStart + 0x800, 256
	sim := paintedSimulator(t, start, size)
	require.NoError(t, sim.Poke(start+200, []byte{0x01}))
	require.NoError(t, sim.Poke(start+40, []byte{0x02}))
	require.NoError(t, sim.Poke(start+90, []byte{0x03}))

	m := NewMonitor(Config{ReadChunkSize: 32}, nil)
	report, err := m.Measure(context.Background(), sim, testPlan(start, size, false),
		target.Program{InitialStackPointer: ramStart + 0x1000})

	require.NoError(t, err)
	assert.Equal(t, uint32(start+40), report.TouchedAddress)
}

func TestMeasure_Intact(t *testing.T) {
	const start, size = ramStart + 0x800, 412
	sim := paintedSimulator(t, start, size)

	m := NewMonitor(DefaultConfig(), nil)
	report, err := m.Measure(context.Background(), sim, testPlan(start, size, false),
		target.Program{InitialStackPointer: ramStart + 0x1000})

	require.NoError(t, err)
	assert.False(t, report.Touched)
	assert.Zero(t, report.TouchedAddress)
	assert.Zero(t, report.MinStackUsage)
	assert.False(t, report.Overflow)
	assert.False(t, report.DataCorruptionRisk)
	assert.Equal(t, int(size), sim.Stats().BytesRead)
}

func TestMeasure_StopsReadingAtFirstTouchedChunk(t *testing.T) {
	const start, size = ramStart + 0x800, 4096
	sim := paintedSimulator(t, start, size)
	require.NoError(t, sim.Poke(start+10, []byte{0x00}))

	m := NewMonitor(Config{ReadChunkSize: 64}, nil)
	_, err := m.Measure(context.Background(), sim, testPlan(start, size, true),
		target.Program{InitialStackPointer: start + size})

	require.NoError(t, err)
	assert.Equal(t, 64, sim.Stats().BytesRead)
}

func TestMeasure_MeasurementModeNeverOverflows(t *testing.T) {
	const start, size = ramStart + 0x800, 1024
	for _, offset := range []uint32{0, 4, 512, 1020} {
		sim := paintedSimulator(t, start, size)
		require.NoError(t, sim.Poke(start+offset, []byte{0x00}))

		m := NewMonitor(DefaultConfig(), nil)
		plan := testPlan(start, size, true)
		overflow, err := m.Check(context.Background(), sim, plan, target.Program{InitialStackPointer: start + size})

		require.NoError(t, err)
		assert.False(t, overflow, "offset %d", offset)
	}
}

func TestMeasure_NoDataBelowStack(t *testing.T) {
	const start, size = ramStart + 0x800, 64
	sim := paintedSimulator(t, start, size)
	require.NoError(t, sim.Poke(start, []byte{0x00}))

	plan := testPlan(start, size, false)
	plan.DataBelowStack = false

	m := NewMonitor(DefaultConfig(), nil)
	report, err := m.Measure(context.Background(), sim, plan, target.Program{InitialStackPointer: start + 0x400})

	require.NoError(t, err)
	assert.True(t, report.Overflow)
	assert.False(t, report.DataCorruptionRisk)
}

func TestMeasure_TouchedAboveInitialStackPointer(t *testing.T) {
	const start, size = ramStart + 0x800, 64
	sim := paintedSimulator(t, start, size)
	require.NoError(t, sim.Poke(start+32, []byte{0x00}))

	m := NewMonitor(DefaultConfig(), nil)
	report, err := m.Measure(context.Background(), sim, testPlan(start, size, false),
		target.Program{InitialStackPointer: start})

	require.NoError(t, err)
	assert.True(t, report.Touched)
	assert.Zero(t, report.MinStackUsage)
}

func TestMeasure_ReadFailureIsNotIntact(t *testing.T) {
	const start, size = ramStart + 0x800, 64
	sim := paintedSimulator(t, start, size)
	core := &faultyCore{Simulator: sim, failRead: errors.New("SWD fault")}

	m := NewMonitor(DefaultConfig(), nil)
	overflow, err := m.Check(context.Background(), core, testPlan(start, size, false),
		target.Program{InitialStackPointer: start + 0x400})

	assert.False(t, overflow)
	var perr *ProbeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "read canary", perr.Op)
	assert.Equal(t, uint32(start), perr.Address)
}

func TestMeasure_InvalidPlan(t *testing.T) {
	sim := newTestSimulator(4096)
	m := NewMonitor(DefaultConfig(), nil)

	_, err := m.Measure(context.Background(), sim, nil, target.Program{})
	assert.Error(t, err)

	_, err = m.Measure(context.Background(), sim, testPlan(ramStart+2, 64, false), target.Program{})
	var perr *PreconditionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "address", perr.Field)
	assert.Zero(t, sim.Stats().BytesRead)
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name  string
		plan  Plan
		field string
	}{
		{"valid", Plan{Address: 0x20000400, Size: 412, StackAvailable: 4096}, ""},
		{"misaligned address", Plan{Address: 0x20000401, Size: 412, StackAvailable: 4096}, "address"},
		{"misaligned size", Plan{Address: 0x20000400, Size: 410, StackAvailable: 4096}, "size"},
		{"too small", Plan{Address: 0x20000400, Size: 24, StackAvailable: 4096}, "size"},
		{"larger than stack", Plan{Address: 0x20000400, Size: 8192, StackAvailable: 4096}, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var perr *PreconditionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestSaveLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canary.yaml")
	plan := &Plan{
		ID:             "4f1c2a8e-0000-4000-8000-000000000001",
		Address:        0x20000400,
		Size:           412,
		StackAvailable: 4096,
		DataBelowStack: true,
		InstalledAt:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SavePlan(path, plan))
	loaded, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, loaded.ID)
	assert.Equal(t, plan.Address, loaded.Address)
	assert.Equal(t, plan.Size, loaded.Size)
	assert.True(t, plan.InstalledAt.Equal(loaded.InstalledAt))
}

func TestLoadPlan_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, SavePlan(path, &Plan{Address: 0x20000400, Size: 8, StackAvailable: 4096}))

	_, err := LoadPlan(path)
	var perr *PreconditionError
	assert.ErrorAs(t, err, &perr)

	_, err = LoadPlan(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLogReport(t *testing.T) {
	tests := []struct {
		name   string
		report *Report
		level  string
		warns  int
	}{
		{"intact", &Report{StackAvailable: 4096}, "debug", 0},
		{"measure", &Report{Touched: true, MinStackUsage: 1024, StackAvailable: 4096, MeasureStack: true}, "info", 0},
		{"overflow", &Report{Touched: true, Overflow: true, StackAvailable: 4096}, "warn", 1},
		{"overflow with data", &Report{Touched: true, Overflow: true, DataCorruptionRisk: true, StackAvailable: 4096}, "warn", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, logs := observedMonitor(DefaultConfig())
			m.LogReport(tt.report)

			entries := logs.All()
			require.NotEmpty(t, entries)
			assert.Equal(t, tt.level, entries[0].Level.String())

			warns := 0
			for _, e := range entries {
				if e.Level.String() == "warn" {
					warns++
				}
			}
			assert.Equal(t, tt.warns, warns)
		})
	}
}
