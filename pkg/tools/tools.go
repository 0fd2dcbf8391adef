// Package tools finds and runs the external compilers used by build stages.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/albertocavalcante/packler/internal/log"
	"github.com/albertocavalcante/packler/pkg/assets"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed on cancellation.
const waitDelay = 2 * time.Second

// ErrNotFound is returned when a tool binary cannot be located.
var ErrNotFound = errors.New("tool binary not found")

// Finder locates tool binaries.
type Finder struct {
	executablePath string // path to the packler executable, for siblings
	paths          map[string]string
}

// Option configures a Finder.
type Option func(*Finder)

// WithExecutablePath sets the path of the packler executable.
// Used primarily for testing.
func WithExecutablePath(path string) Option {
	return func(f *Finder) {
		f.executablePath = path
	}
}

// WithPath pins the binary used for a tool, as set in configuration.
func WithPath(tool, path string) Option {
	return func(f *Finder) {
		if path != "" {
			f.paths[tool] = path
		}
	}
}

// NewFinder creates a Finder with the given options.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{paths: make(map[string]string)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find locates the binary for tool using the following search order:
// 1. Configured path
// 2. Sibling binary (next to the packler executable)
// 3. PATH lookup
func (f *Finder) Find(tool string) (string, error) {
	if p, ok := f.paths[tool]; ok {
		if fileExists(p) {
			return p, nil
		}
		if found, err := exec.LookPath(p); err == nil {
			return found, nil
		}
		return "", fmt.Errorf("%w: %s (configured as %s)", ErrNotFound, tool, p)
	}

	exe := f.executablePath
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	if p := findSibling(exe, tool); p != "" {
		return p, nil
	}

	if p, err := exec.LookPath(tool); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, tool)
}

// findSibling looks for tool next to the packler binary.
func findSibling(exe, tool string) string {
	dir := filepath.Dir(exe)
	names := []string{tool}
	if runtime.GOOS == "windows" {
		names = append([]string{tool + ".exe", tool + ".bat"}, names...)
	}
	for _, name := range names {
		sibling := filepath.Join(dir, name)
		if fileExists(sibling) {
			return sibling
		}
	}
	return ""
}

// Runner executes a tool binary.
type Runner struct {
	finder *Finder
	tool   string
}

// NewRunner creates a Runner for tool, located with finder.
func NewRunner(finder *Finder, tool string) *Runner {
	return &Runner{finder: finder, tool: tool}
}

// Tool returns the tool name.
func (r *Runner) Tool() string { return r.tool }

// Run executes the tool and returns its standard output. A failed run is
// reported as *assets.ExternalToolError carrying the exit code and stderr.
// Cancelling ctx kills the process.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin, err := r.finder.Find(r.tool)
	if err != nil {
		return nil, &assets.ExternalToolError{Tool: r.tool, Err: err}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := log.Component("tools")
	logger.Debugw("running tool", "tool", r.tool, "bin", bin, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		toolErr := &assets.ExternalToolError{Tool: r.tool, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		return nil, toolErr
	}
	return stdout.Bytes(), nil
}

// Version runs the tool with --version and returns the trimmed output.
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
