// Package logging provides structured logging for probe-canary.
//
// This package wraps a global zap logger. Logging is silent unless a level
// is given with --log-level or the PROBE_CANARY_LOG_LEVEL environment
// variable, so command output stays limited to the rendered report.
//
// # Log Levels
//
//   - Debug: GDB scripts and output, memory dumps, chunk reads
//   - Info: Paint and check milestones
//   - Warn: Non-fatal issues (OpenOCD check failures, config fallbacks)
//   - Error: Failed operations
//
// # Configuration
//
//	if err := logging.Initialize(levelFlag); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Components take a *zap.Logger in their constructor; commands pass
// logging.GetLogger().
//
// # Memory Logging
//
//	logging.LogMemoryRegion("painted", start, end)
//	logging.LogRawBytes("canary head", data)
//
// LogRawBytes renders at most 256 bytes and does nothing unless debug
// logging is enabled.
//
// Logs go to stderr in zap's console format.
package logging
