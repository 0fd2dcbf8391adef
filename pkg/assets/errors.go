package assets

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is returned when the reference graph has a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnresolvedReference is returned when a reference names no known asset.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrExternalTool is returned when an external compiler fails.
	ErrExternalTool = errors.New("external tool failed")

	// ErrIO is returned for read and write failures.
	ErrIO = errors.New("i/o failure")
)

// CycleError reports a dependency cycle. Cycle starts and ends with the
// same logical name.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// UnresolvedReferenceError reports a reference that names no known asset.
type UnresolvedReferenceError struct {
	// Asset is the logical name of the referencing asset.
	Asset string
	// Reference is the reference text as written in the source.
	Reference string
	// Missing is the logical name the reference resolved to.
	Missing string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: %q in %s (no asset named %q)", ErrUnresolvedReference, e.Reference, e.Asset, e.Missing)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// ExternalToolError reports a failed external compiler run.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrExternalTool, e.Tool)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *ExternalToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalTool}
	}
	return []error{ErrExternalTool, e.Err}
}

// IOError wraps a filesystem failure with the path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// BuildError attributes a failure to a pipeline stage and, when known, an asset.
type BuildError struct {
	Stage string
	Asset string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %q failed for asset %q: %v", e.Stage, e.Asset, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// wrapStage attaches stage and asset to err unless it already carries them.
func wrapStage(stage, asset string, err error) error {
	if err == nil {
		return nil
	}
	var be *BuildError
	if errors.As(err, &be) {
		return err
	}
	if asset == "" {
		var ure *UnresolvedReferenceError
		if errors.As(err, &ure) {
			asset = ure.Asset
		}
	}
	return &BuildError{Stage: stage, Asset: asset, Err: err}
}
