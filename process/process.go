package process

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStdErr is returned when SpawnOptions.ThrowOnStdErr is set and the
	// process wrote to stderr.
	ErrStdErr = errors.New("process wrote to stderr")
)

// Service runs executables. Implementations: OSService, WasmService and
// processtest.MockService.
type Service interface {
	// Exec runs file with args and waits for it to finish.
	Exec(ctx context.Context, file string, args []string, opts SpawnOptions) (ExecutionResult, error)

	// ExecObservable starts file with args and streams its output.
	ExecObservable(ctx context.Context, file string, args []string, opts SpawnOptions) (*ObservableResult, error)
}

// SpawnOptions configures a single invocation.
type SpawnOptions struct {
	Cwd   string
	Env   map[string]string
	Stdin string

	// Timeout bounds the invocation. Zero uses the service default.
	Timeout time.Duration

	// MergeStdErr routes stderr into Stdout.
	MergeStdErr bool

	// ThrowOnStdErr turns any stderr output into an ErrStdErr failure.
	ThrowOnStdErr bool
}

// ExecutionResult is the captured outcome of a completed invocation.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a non-zero exit status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Source identifies which stream an Output came from.
type Source int

const (
	Stdout Source = iota
	Stderr
)

func (s Source) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Output is one chunk of streamed output.
type Output struct {
	Source Source
	Out    string
}
