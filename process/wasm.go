package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.opentelemetry.io/otel/codes"

	"github.com/caffeineduck/pyexec/internal/tracing"
)

// ErrServiceClosed is returned by a WasmService after Close.
var ErrServiceClosed = errors.New("service closed")

// WasmService runs WASI modules (for example a WebAssembly build of CPython)
// in-process with wazero. The file passed to Exec is the path of the .wasm
// module; the guest sees argv as [basename(file), args...].
type WasmService struct {
	cfg      serviceConfig
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

var _ Service = (*WasmService)(nil)

// NewWasmService creates a wazero runtime with WASI enabled.
func NewWasmService(opts ...ServiceOption) (*WasmService, error) {
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	s := &WasmService{
		cfg:      cfg,
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
	}

	for _, file := range cfg.precompile {
		if _, err := s.getCompiled(ctx, file); err != nil {
			s.Close()
			return nil, fmt.Errorf("precompile %s: %w", file, err)
		}
	}

	return s, nil
}

// Exec runs the module at file to completion.
func (s *WasmService) Exec(ctx context.Context, file string, args []string, opts SpawnOptions) (ExecutionResult, error) {
	ctx, span := s.cfg.tracer.Start(ctx, tracing.SpanExec)
	defer span.End()

	start := time.Now()

	var stdout, stderr bytes.Buffer
	var errOut io.Writer = &stderr
	if opts.MergeStdErr {
		errOut = &stdout
	}

	exitCode, err := s.run(ctx, file, args, opts, &stdout, errOut)
	result := ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
	if exitErr, ok := err.(*ExitError); ok {
		exitErr.Stderr = strings.TrimSpace(result.Stderr)
	}
	if err == nil && opts.ThrowOnStdErr && result.Stderr != "" {
		err = fmt.Errorf("%w: %s", ErrStdErr, strings.TrimSpace(result.Stderr))
	}

	s.cfg.log.WithField("file", file).
		WithField("args", args).
		WithField("duration", time.Since(start)).
		WithField("exit_code", exitCode).
		Debug("wasm exec finished")

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// ExecObservable runs the module at file in the background and streams its
// output.
func (s *WasmService) ExecObservable(ctx context.Context, file string, args []string, opts SpawnOptions) (*ObservableResult, error) {
	// Compile up front so a bad module fails the call rather than the stream.
	if _, err := s.getCompiled(ctx, file); err != nil {
		return nil, err
	}

	obs, emitter := NewObservable(ctx)
	stdout := &emitWriter{source: Stdout, emitter: emitter}
	stderr := &emitWriter{source: Stderr, emitter: emitter}
	var errOut io.Writer = stderr
	if opts.MergeStdErr {
		errOut = stdout
	}

	go func() {
		ctx, span := s.cfg.tracer.Start(emitter.Context(), tracing.SpanExecObservable)

		_, err := s.run(ctx, file, args, opts, stdout, errOut)
		if err == nil && opts.ThrowOnStdErr && stderr.wrote {
			err = ErrStdErr
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.cfg.log.WithField("stream", obs.ID).WithError(err).Debug("wasm exec observable finished")
		span.End()
		emitter.Close(err)
	}()

	return obs, nil
}

func (s *WasmService) run(ctx context.Context, file string, args []string, opts SpawnOptions, stdout, stderr io.Writer) (int, error) {
	timeout := s.cfg.timeout(opts)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	compiled, err := s.getCompiled(ctx, file)
	if err != nil {
		return -1, err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(stderr).
		WithStdin(strings.NewReader(opts.Stdin)).
		WithArgs(append([]string{filepath.Base(file)}, args...)...).
		WithName("")
	for k, v := range opts.Env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}
	if opts.Cwd != "" {
		moduleConfig = moduleConfig.WithFSConfig(wazero.NewFSConfig().WithDirMount(opts.Cwd, "/"))
	}

	mod, err := s.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if mod != nil {
		mod.Close(ctx)
	}
	if err == nil {
		return 0, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("timeout after %v", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return -1, ctx.Err()
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		code := int(exitErr.ExitCode())
		if code == 0 {
			return 0, nil
		}
		return code, &ExitError{Code: code}
	}
	return -1, fmt.Errorf("execution failed: %w", err)
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (s *WasmService) getCompiled(ctx context.Context, file string) (wazero.CompiledModule, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrServiceClosed
	}
	if compiled, ok := s.compiled[file]; ok {
		s.mu.RUnlock()
		return compiled, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if compiled, ok := s.compiled[file]; ok {
		return compiled, nil
	}

	code, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", file, err)
	}

	compiled, err := s.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", file, err)
	}

	s.compiled[file] = compiled
	return compiled, nil
}

// Close releases all resources held by the service.
func (s *WasmService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	ctx := context.Background()

	var errs []error
	if err := s.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.cache != nil {
		if err := s.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "pyexec")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "pyexec")
	}
	return filepath.Join(os.TempDir(), "pyexec-cache")
}
