package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/packler/pkg/assets"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc runs one build. It must return promptly with the context's
// error once ctx is cancelled.
type BuildFunc func(ctx context.Context) (*assets.BuildResult, error)

// Config configures the watcher.
type Config struct {
	// Root is the assets directory.
	Root string

	// Ignore lists directory name prefixes that are not watched.
	Ignore []string

	Debounce time.Duration
	Build    BuildFunc
	Logger   *Logger
}

// Watcher rebuilds whenever files under Root change. A change that
// arrives while a build is running cancels that build and starts a new
// one, so the published output always reflects the latest sources.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *Logger
	watched   int

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watcher. Close releases the underlying OS watches.
func New(cfg Config) (*Watcher, error) {
	if cfg.Build == nil {
		return nil, errors.New("watch: no build function")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewLogger(LoggerConfig{})
	}
	return &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		logger:    logger,
	}, nil
}

// Run builds once, then rebuilds on every debounced batch of changes. It
// blocks until ctx is cancelled and waits for the in-flight build.
func (w *Watcher) Run(ctx context.Context) error {
	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}

	w.mu.Lock()
	w.baseCtx = ctx
	w.mu.Unlock()

	w.debouncer = NewDebouncer(window, w.rebuild)

	if err := w.addRecursive(w.config.Root); err != nil {
		return fmt.Errorf("failed to watch assets: %w", err)
	}
	w.logger.Ready(w.watched, w.config.Root)
	w.rebuild(nil)

	defer w.wait()
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// rebuild cancels the running build, waits for it and starts a new one.
func (w *Watcher) rebuild(changed []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		<-w.done
		w.cancel, w.done = nil, nil
	}
	if w.baseCtx == nil || w.baseCtx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(w.baseCtx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done

	w.logger.Building(changed)
	go func() {
		defer close(done)
		res, err := w.config.Build(ctx)
		switch {
		case err == nil:
			w.logger.Built(res)
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			if w.baseCtx.Err() == nil {
				w.logger.Cancelled()
			}
		default:
			w.logger.Error(err)
		}
	}()
}

// wait blocks until the in-flight build, if any, has returned.
func (w *Watcher) wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// addRecursive watches dir and every subdirectory that is not ignored.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", p, err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.config.Root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(p); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", ErrWatchLimitReached, p, err)
			}
			w.logger.Error(fmt.Errorf("failed to watch %s: %w", p, err))
			return nil
		}
		w.watched++
		return nil
	})
}

func (w *Watcher) ignored(name string) bool {
	for _, prefix := range w.config.Ignore {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// logicalName maps an event path to the slash-separated name relative to
// Root. Paths inside ignored directories and hidden files are dropped.
func (w *Watcher) logicalName(p string) (string, bool) {
	rel, err := filepath.Rel(w.config.Root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, dir := range parts[:len(parts)-1] {
		if w.ignored(dir) {
			return "", false
		}
	}
	if strings.HasPrefix(parts[len(parts)-1], ".") {
		return "", false
	}
	return strings.Join(parts, "/"), true
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, ok := w.logicalName(event.Name)
	if !ok {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.ignored(filepath.Base(event.Name)) {
				return
			}
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", event.Name, err))
			}
			// Files copied in together with the directory produce no
			// events of their own.
			w.debouncer.Add(name)
			return
		}
	}

	var change ChangeType
	switch {
	case event.Has(fsnotify.Create):
		change = ChangeAdded
	case event.Has(fsnotify.Write):
		change = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		change = ChangeDeleted
	default:
		return
	}

	w.logger.FileChanged(name, change)
	w.debouncer.Add(name)
}

// Close releases the OS watches.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "no space left on device") ||
		strings.Contains(s, "too many open files")
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")
