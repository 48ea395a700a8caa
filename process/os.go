package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/caffeineduck/pyexec/internal/tracing"
)

// waitDelay bounds how long Wait keeps copying output once the context is
// done or the process has exited. Descendants that inherited the output pipes
// would otherwise hold Wait open.
const waitDelay = time.Second

// OSService runs executables as operating system processes. Each process is
// started in its own process group where the platform allows it, and the
// whole group is killed on timeout or cancellation.
type OSService struct {
	cfg serviceConfig
}

var _ Service = (*OSService)(nil)

// NewOSService creates an OSService.
func NewOSService(opts ...ServiceOption) *OSService {
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OSService{cfg: cfg}
}

// Exec runs file and waits for it to exit.
func (s *OSService) Exec(ctx context.Context, file string, args []string, opts SpawnOptions) (ExecutionResult, error) {
	ctx, span := s.startSpan(ctx, tracing.SpanExec, file, args)
	defer span.End()

	timeout := s.cfg.timeout(opts)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := s.command(ctx, file, args, opts)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if opts.MergeStdErr {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	result := ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode, err = classify(ctx, file, timeout, err, result.Stderr)
	} else if opts.ThrowOnStdErr && result.Stderr != "" {
		err = fmt.Errorf("%w: %s", ErrStdErr, strings.TrimSpace(result.Stderr))
	}

	s.cfg.log.WithField("file", file).
		WithField("args", args).
		WithField("duration", time.Since(start)).
		WithField("exit_code", result.ExitCode).
		Debug("exec finished")

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// ExecObservable starts file and streams its stdout and stderr.
func (s *OSService) ExecObservable(ctx context.Context, file string, args []string, opts SpawnOptions) (*ObservableResult, error) {
	ctx, span := s.startSpan(ctx, tracing.SpanExecObservable, file, args)

	timeout := s.cfg.timeout(opts)
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	obs, emitter := NewObservable(ctx)
	cmd := s.command(emitter.Context(), file, args, opts)

	stdout := &emitWriter{source: Stdout, emitter: emitter}
	stderr := &emitWriter{source: Stderr, emitter: emitter}
	cmd.Stdout = stdout
	if opts.MergeStdErr {
		cmd.Stderr = stdout
	} else {
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		cancel()
		err = fmt.Errorf("start %s: %w", file, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		emitter.Close(err)
		return nil, err
	}

	s.cfg.log.WithField("file", file).
		WithField("args", args).
		WithField("stream", obs.ID).
		Debug("exec observable started")

	go func() {
		defer cancel()

		err := cmd.Wait()
		if err != nil {
			_, err = classify(emitter.Context(), file, timeout, err, "")
		} else if opts.ThrowOnStdErr && stderr.wrote {
			err = ErrStdErr
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.cfg.log.WithField("stream", obs.ID).WithError(err).Debug("exec observable finished")
		// End the span before consumers are released so it is exported
		// ahead of any provider shutdown.
		span.End()
		emitter.Close(err)
	}()

	return obs, nil
}

func (s *OSService) command(ctx context.Context, file string, args []string, opts SpawnOptions) *exec.Cmd {
	cmd := exec.CommandContext(ctx, file, args...)
	cmd.Dir = opts.Cwd
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}
	cmd.WaitDelay = waitDelay
	killGroupOnCancel(cmd)
	return cmd
}

func (s *OSService) startSpan(ctx context.Context, name, file string, args []string) (context.Context, trace.Span) {
	return s.cfg.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("process.file", file),
		attribute.StringSlice("process.args", args),
	))
}

// classify maps a Run/Wait error onto the package's error taxonomy.
func classify(ctx context.Context, file string, timeout time.Duration, err error, stderr string) (int, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("timeout after %v", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return -1, ctx.Err()
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The process exited cleanly; a descendant kept the output open.
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code, &ExitError{Code: code, Stderr: strings.TrimSpace(stderr)}
	}
	return -1, fmt.Errorf("start %s: %w", file, err)
}
