package canary

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jannic/probe-run/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaintSubroutine(t *testing.T) {
	code, err := PaintSubroutine(0x20000100, 0x100)
	require.NoError(t, err)

	want := []byte{
		0x03, 0x48, 0x04, 0x49, 0x04, 0x4a,
		0x81, 0x42, 0x01, 0xd0, 0x04, 0xc0, 0xfb, 0xe7,
		0x00, 0xbe,
		0x00, 0x01, 0x00, 0x20, // start
		0x00, 0x02, 0x00, 0x20, // end
		0xaa, 0xaa, 0xaa, 0xaa, // pattern
	}
	assert.Equal(t, want, code[:])
}

func TestPaintSubroutine_OnlyLiteralsDependOnInputs(t *testing.T) {
	a, err := PaintSubroutine(0x20000000, 0x40)
	require.NoError(t, err)
	b, err := PaintSubroutine(0x2000fff0, 0x1000)
	require.NoError(t, err)

	assert.Equal(t, a[:16], b[:16])
	assert.Equal(t, a[24:], b[24:])
	assert.Equal(t, []byte{0xf0, 0xff, 0x00, 0x20, 0xf0, 0x0f, 0x01, 0x20}, b[16:24])
}

func TestPaintSubroutine_Misaligned(t *testing.T) {
	tests := []struct {
		name  string
		start uint32
		size  uint32
		field string
	}{
		{"start", 0x20000002, 0x100, "start"},
		{"size", 0x20000000, 0x101, "size"},
		{"wraps", 0xfffffff0, 0x20, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PaintSubroutine(tt.start, tt.size)
			var perr *PreconditionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestPaint_FillsWholeRegion(t *testing.T) {
	for _, size := range []uint32{28, 32, 412, 1024, 4096} {
		sim := newTestSimulator(8192)
		m := NewMonitor(DefaultConfig(), nil)
		start := uint32(ramStart + 0x400)

		require.NoError(t, m.paint(context.Background(), sim, start, size))

		painted, err := sim.Peek(start, int(size))
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{Value}, int(size)), painted, "size %d", size)

		around, err := sim.Peek(start-4, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, around, "painted below the region")
		above, err := sim.Peek(start+size, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, above, "painted past the region")

		assert.Equal(t, uint32(resetPC), sim.Register(target.RegisterPC), "pc not restored")
		assert.False(t, sim.Running())

		// The subroutine and its overwrite are the only host writes.
		assert.Equal(t, 2*PaintSubroutineLength, sim.Stats().BytesWritten)
	}
}

func TestPaint_RegionTooSmall(t *testing.T) {
	sim := newTestSimulator(4096)
	m := NewMonitor(DefaultConfig(), nil)

	err := m.paint(context.Background(), sim, ramStart+0x100, 24)

	var perr *PreconditionError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, sim.Stats().BytesWritten)
}

func TestPaint_RestoresPCOnWaitFailure(t *testing.T) {
	sim := newTestSimulator(4096)
	core := &faultyCore{Simulator: sim, failWait: errors.New("probe disconnected")}
	m := NewMonitor(DefaultConfig(), nil)

	err := m.paint(context.Background(), core, ramStart+0x100, 64)

	var perr *ProbeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "wait for halt", perr.Op)
	assert.Equal(t, uint32(resetPC), sim.Register(target.RegisterPC))
}

func TestPaint_Timeout(t *testing.T) {
	sim := target.NewSimulator(target.SimulatorConfig{
		Regions:             testRegions(4096),
		InitialStackPointer: ramStart + 4096,
		ResetPC:             resetPC,
		MaxSteps:            10,
	})
	m := NewMonitor(Config{Timeout: time.Second}, nil)

	err := m.paint(context.Background(), sim, ramStart+0x100, 1024)

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "paint", terr.Op)
	assert.ErrorIs(t, err, target.ErrTimeout)
}

func TestPaint_WriteFailure(t *testing.T) {
	sim := newTestSimulator(4096)
	core := &faultyCore{Simulator: sim, failWrite: errors.New("write rejected")}
	m := NewMonitor(DefaultConfig(), nil)

	err := m.paint(context.Background(), core, ramStart+0x100, 64)

	var perr *ProbeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "write paint subroutine", perr.Op)
	assert.Equal(t, uint32(ramStart+0x100), perr.Address)
}
