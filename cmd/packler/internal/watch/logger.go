package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/albertocavalcante/packler/pkg/assets"
)

// ChangeType represents the type of source change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger prints watch events for humans or, with JSON set, one JSON
// object per line for tooling.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	statsMu sync.Mutex
	stats   Stats
}

// Stats summarizes a watch session.
type Stats struct {
	Builds    int
	Cancelled int
	Errors    int
	StartTime time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a logger. Output defaults to stdout; colors are used
// only on a terminal.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats:   Stats{StartTime: time.Now()},
	}
}

// Ready logs that the watcher is running.
func (l *Logger) Ready(dirs int, path string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"dirs":  dirs,
			"path":  path,
		})
		return
	}
	l.printf("packler: watching %d directories in %s\n", dirs, path)
	l.println("packler: ready")
	l.println()
}

// FileChanged logs one source change. Human output shows it only when
// verbose.
func (l *Logger) FileChanged(name string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"name":   name,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), name)
	}
}

// Building logs that a build is starting for the given changes.
func (l *Logger) Building(changed []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":   "building",
			"changed": changed,
			"time":    time.Now().Format(time.RFC3339),
		})
		return
	}
	switch len(changed) {
	case 0:
		l.printf("[%s] building...\n", l.timestamp())
	case 1:
		l.printf("[%s] %s changed, building...\n", l.timestamp(), changed[0])
	default:
		l.printf("[%s] %d files changed, building...\n", l.timestamp(), len(changed))
	}
}

// StateChanged logs a pipeline state change. It is an assets.Observer.
// Human output shows it only when verbose.
func (l *Logger) StateChanged(from, to assets.State) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "state",
			"from":  string(from),
			"to":    string(to),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	if l.verbose {
		l.printf("[%s]   %s\n", l.timestamp(), to)
	}
}

// Built logs a successful build.
func (l *Logger) Built(res *assets.BuildResult) {
	l.statsMu.Lock()
	l.stats.Builds++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":     "built",
			"assets":    res.Manifest.Len(),
			"written":   res.Written,
			"reused":    res.Reused,
			"unchanged": res.Unchanged,
			"duration":  res.Duration.String(),
		})
		return
	}

	check := l.colorize("✓", ChangeAdded)
	if res.Unchanged {
		l.printf("[%s] %s up to date (%d assets)\n", l.timestamp(), check, res.Manifest.Len())
		return
	}
	l.printf("[%s] %s built %d assets in %s (%d written, %d reused)\n",
		l.timestamp(), check, res.Manifest.Len(), res.Duration.Round(time.Millisecond), res.Written, res.Reused)
}

// Cancelled logs that an in-flight build was superseded.
func (l *Logger) Cancelled() {
	l.statsMu.Lock()
	l.stats.Cancelled++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "cancelled",
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	l.printf("[%s] %s build superseded by newer changes\n", l.timestamp(), l.colorize("~", ChangeModified))
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.statsMu.Lock()
	l.stats.Errors++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s %s\n", l.timestamp(), xmark, strings.TrimSpace(err.Error()))
}

// Shutdown logs the session summary.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":     "shutdown",
			"builds":    stats.Builds,
			"cancelled": stats.Cancelled,
			"errors":    stats.Errors,
			"duration":  time.Since(stats.StartTime).String(),
		})
		return
	}
	l.println()
	l.printf("packler: shutting down (%d builds, %d errors)\n", stats.Builds, stats.Errors)
}

// Stats returns the current session statistics.
func (l *Logger) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m"
	case ChangeModified:
		color = "\033[33m"
	case ChangeDeleted:
		color = "\033[31m"
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// printf and println ignore write errors; the output is informational.
func (l *Logger) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	_, _ = fmt.Fprintln(l.writer, args...)
}
