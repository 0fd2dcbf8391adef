package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albertocavalcante/packler/pkg/assets"
)

func TestIsWatchLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"enospc", errors.New("inotify_add_watch: no space left on device"), true},
		{"emfile", errors.New("too many open files"), true},
		{"other", os.ErrPermission, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWatchLimitError(tt.err); got != tt.want {
				t.Errorf("isWatchLimitError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestLogicalName(t *testing.T) {
	root := filepath.Join(t.TempDir(), "assets")
	w := &Watcher{config: Config{Root: root, Ignore: []string{".", "node_modules"}}}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{filepath.Join(root, "css", "style.css"), "css/style.css", true},
		{filepath.Join(root, "index.html"), "index.html", true},
		{filepath.Join(root, "css", ".style.css.swp"), "", false},
		{filepath.Join(root, "node_modules", "x", "a.js"), "", false},
		{filepath.Join(root, ".git", "HEAD"), "", false},
		{root, "", false},
		{filepath.Join(filepath.Dir(root), "elsewhere.css"), "", false},
	}
	for _, tt := range tests {
		got, ok := w.logicalName(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("logicalName(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNew_RequiresBuild(t *testing.T) {
	if _, err := New(Config{Root: t.TempDir()}); err == nil {
		t.Error("New() without a build function should fail")
	}
}

func TestWatcherCloseNilFsWatcher(t *testing.T) {
	w := &Watcher{}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWatcher_RebuildCancelsInFlightBuild(t *testing.T) {
	started := make(chan struct{}, 2)
	var calls atomic.Int32
	build := func(ctx context.Context) (*assets.BuildResult, error) {
		n := calls.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return testResult(1, 0, false), nil
	}

	logger := NewLogger(LoggerConfig{Writer: io.Discard})
	w := &Watcher{config: Config{Build: build}, logger: logger, baseCtx: context.Background()}

	w.rebuild(nil)
	<-started
	w.rebuild([]string{"css/style.css"})
	<-started
	w.wait()

	if calls.Load() != 2 {
		t.Errorf("build called %d times, want 2", calls.Load())
	}
	if s := logger.Stats(); s.Cancelled != 1 || s.Builds != 1 || s.Errors != 0 {
		t.Errorf("stats = %+v, want 1 cancelled and 1 build", s)
	}
}

func TestWatcher_NoBuildAfterShutdown(t *testing.T) {
	var calls atomic.Int32
	build := func(ctx context.Context) (*assets.BuildResult, error) {
		calls.Add(1)
		return testResult(0, 0, true), nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &Watcher{config: Config{Build: build}, logger: NewLogger(LoggerConfig{Writer: io.Discard}), baseCtx: ctx}
	w.rebuild([]string{"a.css"})
	w.wait()
	if calls.Load() != 0 {
		t.Errorf("build ran %d times after shutdown", calls.Load())
	}
}

func TestWatcher_Run(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "css"), 0o755); err != nil {
		t.Fatal(err)
	}

	builds := make(chan struct{}, 16)
	build := func(ctx context.Context) (*assets.BuildResult, error) {
		builds <- struct{}{}
		return testResult(1, 0, false), nil
	}

	w, err := New(Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Build:    build,
		Logger:   NewLogger(LoggerConfig{Writer: io.Discard}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case <-builds:
	case <-time.After(5 * time.Second):
		t.Fatal("initial build did not run")
	}

	if err := os.WriteFile(filepath.Join(root, "css", "style.css"), []byte("a{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-builds:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a build")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}
