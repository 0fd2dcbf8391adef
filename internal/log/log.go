package log

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger atomic.Pointer[zap.SugaredLogger]
	level  = zap.NewAtomicLevelAt(VerbosityToLevel(VerbosityWarn))
)

func init() {
	logger.Store(newLogger("text", os.Stderr))
}

func newLogger(format string, out io.Writer) *zap.SugaredLogger {
	core := NewCore(CoreOptions{
		Level:  level,
		Format: format,
		Output: out,
	})
	return zap.New(core).Sugar()
}

// Init installs the logger for -v=v and --log-format=format on stderr.
func Init(v int, format string) {
	InitWithOutput(v, format, os.Stderr)
}

// InitWithOutput is Init with an explicit destination.
func InitWithOutput(v int, format string, out io.Writer) {
	SetVerbosity(v)
	logger.Store(newLogger(format, out))
}

// SetVerbosity changes the enabled level of every logger, including
// component loggers created earlier.
func SetVerbosity(v int) {
	level.SetLevel(VerbosityToLevel(v))
}

// Sync flushes buffered entries.
func Sync() {
	_ = logger.Load().Sync()
}

// Component returns the logger for one part of packler, tagged with
// "component".
func Component(name string) *zap.SugaredLogger {
	return logger.Load().With("component", name)
}

// Trace logs at TRACE level (-v=4) on the global logger.
func Trace(msg string, keysAndValues ...any) {
	Tracew(logger.Load(), msg, keysAndValues...)
}

// Tracew logs at TRACE level on l. Sugared loggers have no method for
// custom levels.
func Tracew(l *zap.SugaredLogger, msg string, keysAndValues ...any) {
	if ce := l.Desugar().Check(LevelTrace, msg); ce != nil {
		ce.Write(toFields(keysAndValues)...)
	}
}

// toFields converts loosely-typed key/value pairs into zap fields.
// A dangling key is kept under "!BADKEY" like the sugared logger does.
func toFields(keysAndValues []any) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || i+1 >= len(keysAndValues) {
			fields = append(fields, zap.Any("!BADKEY", keysAndValues[i]))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

var _ zapcore.Core = NewCore(CoreOptions{})
