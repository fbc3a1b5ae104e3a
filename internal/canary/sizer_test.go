package canary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, k, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{3, 4, 4},
		{4, 4, 4},
		{409, 4, 412},
		{1024, 4, 1024},
		{5, 8, 8},
		{9, 8, 16},
		{10, 3, 12},
		{7, 1, 7},
		{100, 64, 128},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundUp(tt.n, tt.k), "RoundUp(%d, %d)", tt.n, tt.k)
	}
}

func TestRoundUp_Properties(t *testing.T) {
	for _, k := range []uint32{1, 2, 3, 4, 7, 8, 16, 1000} {
		for n := uint32(0); n < 2048; n += 13 {
			r := RoundUp(n, k)
			assert.Zero(t, r%k, "RoundUp(%d, %d) = %d is not a multiple", n, k, r)
			assert.GreaterOrEqual(t, r, n)
			assert.Less(t, r-n, k)
			assert.Equal(t, r, RoundUp(r, k), "RoundUp is not idempotent for n=%d k=%d", n, k)
		}
	}
}

func TestRoundUp_ZeroAlignmentPanics(t *testing.T) {
	assert.Panics(t, func() { RoundUp(3, 0) })
}

func TestSize_Detection(t *testing.T) {
	tests := []struct {
		name      string
		available uint32
		want      uint32
	}{
		{"4 KiB stack", 4096, 412},
		{"exact tenth", 4000, 400},
		{"capped at 1 KiB", 64 * 1024, 1024},
		{"just above cap", 10240, 1024},
		{"small stack", 300, 32},
		{"tiny stack", 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Size(tt.available, false))
		})
	}
}

func TestSize_DetectionBounds(t *testing.T) {
	for available := uint32(0); available < 64*1024; available += 4 {
		size := Size(available, false)
		assert.LessOrEqual(t, size, MaxDetectionSize)
		assert.Zero(t, size%Alignment)
		assert.LessOrEqual(t, size, available)
	}
}

func TestSize_Measurement(t *testing.T) {
	assert.Equal(t, uint32(2048), Size(2048, true))
	assert.Equal(t, uint32(256*1024), Size(256*1024, true))
}
