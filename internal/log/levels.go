// Package log is packler's structured logger: a zap core whose level
// follows the -v flag, with a TRACE level below DEBUG for per-reference
// and per-fingerprint detail.
package log

import "go.uber.org/zap/zapcore"

// LevelTrace sits one step below zapcore.DebugLevel.
const LevelTrace = zapcore.DebugLevel - 1

// -v values.
const (
	VerbosityError = 0 // errors only
	VerbosityWarn  = 1 // default: warnings, syntax issues
	VerbosityInfo  = 2 // build summaries, deploy results
	VerbosityDebug = 3 // stage decisions, reuse, published paths
	VerbosityTrace = 4 // resolved references, fingerprints, state changes
)

// VerbosityToLevel maps a -v value to the lowest enabled level.
func VerbosityToLevel(v int) zapcore.Level {
	switch {
	case v <= VerbosityError:
		return zapcore.ErrorLevel
	case v == VerbosityWarn:
		return zapcore.WarnLevel
	case v == VerbosityInfo:
		return zapcore.InfoLevel
	case v == VerbosityDebug:
		return zapcore.DebugLevel
	default:
		return LevelTrace
	}
}

// LevelName is the display name of a level, TRACE included.
func LevelName(l zapcore.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.CapitalString()
}
