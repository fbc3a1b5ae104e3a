package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	previous := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = previous })
	return logs
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected a silent logger")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := GetLogger()
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}
}

func TestInitialize_UnknownLevel(t *testing.T) {
	if err := Initialize("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogRawBytes(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogRawBytes("canary head", []byte{0xaa, 'h', 'i', 0x00})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "aa686900" {
		t.Errorf("unexpected hex: %v", fields["hex"])
	}
	if fields["ascii"] != ".hi." {
		t.Errorf("unexpected ascii: %v", fields["ascii"])
	}
}

func TestLogRawBytes_Truncates(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogRawBytes("big", make([]byte, 1024))

	fields := logs.All()[0].ContextMap()
	hexField := fields["hex"].(string)
	if len(hexField) != 2*maxDump+3 {
		t.Errorf("expected truncated hex of %d chars, got %d", 2*maxDump+3, len(hexField))
	}
	if fields["length"] != int64(1024) {
		t.Errorf("expected full length, got %v", fields["length"])
	}
}

func TestLogRawBytes_DisabledAboveDebug(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogRawBytes("quiet", []byte{1, 2, 3})

	if logs.Len() != 0 {
		t.Errorf("expected no entries, got %d", logs.Len())
	}
}

func TestLogMemoryRegion(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogMemoryRegion("painted", 0x20000460, 0x20000860)

	fields := logs.All()[0].ContextMap()
	if fields["start"] != "0x20000460" || fields["end"] != "0x20000860" {
		t.Errorf("unexpected range: %v", fields)
	}
	if fields["size"] != uint64(0x400) {
		t.Errorf("unexpected size: %v", fields["size"])
	}
}
