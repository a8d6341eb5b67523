// Package logger wraps a zap console core with printf-style helpers.
//
// Every line is written as
//
//	[2006-01-02 15:04:05.000] [LEVEL] [scope] message
//
// where scope names the emitter: a virtual user ("vu-3"), a domain
// ("planning"), the engine, or nothing at all for run-wide lines.
//
// # Basic Usage
//
// The package-level helpers write through Default:
//
//	logger.Info("", "Run %s started", runID)
//	logger.Warn("vu-7", "Iteration failed: %v", err)
//
// A dedicated logger is useful in tests:
//
//	var buf bytes.Buffer
//	l := logger.New(&buf, logger.LevelWarn)
//
// The minimum level lives in a zap.AtomicLevel, so SetLevel takes effect
// immediately, including for loggers obtained through Zap. The CLI maps its
// --log-level flag with ParseLevel.
package logger
