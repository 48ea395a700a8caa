// Package pythontest provides an in-memory python.ExecutionService for tests.
//
// MockService reports a fixed interpreter and answers Exec calls from results
// registered beforehand; it never starts a process:
//
//	svc := pythontest.NewMockService(python.Environment{Path: "/usr/bin/python3"})
//	svc.AddExecModuleResult("pip", processtest.Strings("list"), processtest.Result("pkg==1.0"))
//
//	result, err := svc.ExecModule(ctx, "pip", []string{"list"}, process.SpawnOptions{})
//
// A call nobody registered a result for fails with processtest.ErrNoMatch.
package pythontest

import (
	"context"
	"time"

	"github.com/caffeineduck/pyexec/language/python"
	"github.com/caffeineduck/pyexec/process"
	"github.com/caffeineduck/pyexec/process/processtest"
)

// MockService implements python.ExecutionService on top of a
// processtest.MockService. Every registration and lookup is keyed by the
// environment's Path.
type MockService struct {
	env  python.Environment
	proc *processtest.MockService
}

var _ python.ExecutionService = (*MockService)(nil)

// MockOption configures a MockService.
type MockOption func(*MockService)

// WithProcessService makes the mock delegate to proc instead of a private one.
func WithProcessService(proc *processtest.MockService) MockOption {
	return func(m *MockService) {
		m.proc = proc
	}
}

// NewMockService returns a mock for env.
func NewMockService(env python.Environment, opts ...MockOption) *MockService {
	m := &MockService{env: env}
	for _, opt := range opts {
		opt(m)
	}
	if m.proc == nil {
		m.proc = processtest.NewMockService()
	}
	return m
}

// Calls returns every invocation forwarded to the process mock, in order.
func (m *MockService) Calls() []processtest.Call {
	return m.proc.Calls()
}

// ExecutionDetails is not simulated.
func (m *MockService) ExecutionDetails(python.DetailsRequest) (python.ExecutionDetails, error) {
	return python.ExecutionDetails{}, python.ErrNotImplemented
}

// InterpreterInformation returns the environment's metadata.
func (m *MockService) InterpreterInformation(context.Context) (python.InterpreterInformation, error) {
	return m.env.Information(), nil
}

// ExecutablePath returns the environment's path.
func (m *MockService) ExecutablePath(context.Context) (string, error) {
	return m.env.Path, nil
}

// IsModuleInstalled always reports false.
func (m *MockService) IsModuleInstalled(context.Context, string) (bool, error) {
	return false, nil
}

// ExecutionInfo describes running args with the environment's interpreter.
func (m *MockService) ExecutionInfo(args []string) python.ExecInfo {
	return python.BuildExecInfo(m.env.Path, args...)
}

// Exec answers args from the results registered for the environment's path.
func (m *MockService) Exec(ctx context.Context, args []string, opts process.SpawnOptions) (process.ExecutionResult, error) {
	return m.proc.Exec(ctx, m.env.Path, args, opts)
}

// ExecModule answers "-m module args..." like Exec.
func (m *MockService) ExecModule(ctx context.Context, module string, args []string, opts process.SpawnOptions) (process.ExecutionResult, error) {
	return m.proc.Exec(ctx, m.env.Path, python.ModuleArgs(module, args), opts)
}

// ExecObservable returns the stream registered for args.
func (m *MockService) ExecObservable(ctx context.Context, args []string, opts process.SpawnOptions) (*process.ObservableResult, error) {
	return m.proc.ExecObservable(ctx, m.env.Path, args, opts)
}

// ExecModuleObservable returns the stream registered for "-m module args...".
func (m *MockService) ExecModuleObservable(ctx context.Context, module string, args []string, opts process.SpawnOptions) (*process.ObservableResult, error) {
	return m.proc.ExecObservable(ctx, m.env.Path, python.ModuleArgs(module, args), opts)
}

// AddExecResult registers the outcome of Exec calls whose arguments match args.
func (m *MockService) AddExecResult(args []processtest.Arg, result processtest.ResultFunc) {
	m.proc.AddExecResult(m.env.Path, args, result)
}

// AddExecModuleResult registers the outcome of ExecModule(module, args).
func (m *MockService) AddExecModuleResult(module string, args []processtest.Arg, result processtest.ResultFunc) {
	m.proc.AddExecResult(m.env.Path, moduleMatchers(module, args), result)
}

// AddExecObservableResult registers the stream returned by ExecObservable
// calls whose arguments match args.
func (m *MockService) AddExecObservableResult(args []processtest.Arg, result processtest.ObservableFunc) {
	m.proc.AddExecObservableResult(m.env.Path, args, result)
}

// AddExecModuleObservableResult registers the stream returned by
// ExecModuleObservable(module, args).
func (m *MockService) AddExecModuleObservableResult(module string, args []processtest.Arg, result processtest.ObservableFunc) {
	m.proc.AddExecObservableResult(m.env.Path, moduleMatchers(module, args), result)
}

// SetDelay makes every following outcome arrive d later. Zero disables it.
func (m *MockService) SetDelay(d time.Duration) {
	m.proc.SetDelay(d)
}

func moduleMatchers(module string, args []processtest.Arg) []processtest.Arg {
	out := make([]processtest.Arg, 0, len(args)+2)
	out = append(out, processtest.Exact(python.ModuleFlag), processtest.Exact(module))
	return append(out, args...)
}
