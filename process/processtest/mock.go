// Package processtest provides a scripted process.Service for tests.
//
// Tests register what a command should produce and the code under test runs
// it as usual; nothing is spawned:
//
//	proc := processtest.NewMockService()
//	proc.AddExecResult("/usr/bin/python3", processtest.Strings("--version"),
//	    processtest.Result("Python 3.10.0"))
//
//	result, err := proc.Exec(ctx, "/usr/bin/python3", []string{"--version"}, process.SpawnOptions{})
//
// Invocations with no registered match fail with an error wrapping ErrNoMatch.
package processtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/caffeineduck/pyexec/process"
)

// ErrNoMatch is returned when no registered result matches an invocation.
var ErrNoMatch = errors.New("no result registered")

// ResultFunc produces the outcome of a blocking invocation.
type ResultFunc func() (process.ExecutionResult, error)

// ObservableFunc produces the outcome of a streaming invocation.
type ObservableFunc func() (*process.ObservableResult, error)

// Call records one invocation of the mock.
type Call struct {
	File       string
	Args       []string
	Options    process.SpawnOptions
	Observable bool
}

type execEntry struct {
	file   string
	args   []Arg
	result ResultFunc
}

type observableEntry struct {
	file   string
	args   []Arg
	result ObservableFunc
}

// MockService implements process.Service from registered results.
type MockService struct {
	clock clock.Clock

	mu         sync.Mutex
	exec       []execEntry
	observable []observableEntry
	delay      time.Duration
	calls      []Call
}

var _ process.Service = (*MockService)(nil)

// Option configures a MockService.
type Option func(*MockService)

// WithClock sets the clock the artificial delay waits on.
func WithClock(c clock.Clock) Option {
	return func(m *MockService) {
		m.clock = c
	}
}

// NewMockService returns an empty MockService.
func NewMockService(opts ...Option) *MockService {
	m := &MockService{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddExecResult registers the producer for blocking invocations of file whose
// arguments match args.
func (m *MockService) AddExecResult(file string, args []Arg, result ResultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exec = append(m.exec, execEntry{file: file, args: args, result: result})
}

// AddExecObservableResult registers the producer for streaming invocations of
// file whose arguments match args.
func (m *MockService) AddExecObservableResult(file string, args []Arg, result ObservableFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observable = append(m.observable, observableEntry{file: file, args: args, result: result})
}

// SetDelay defers every following outcome by d. Zero disables the delay.
func (m *MockService) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Delay returns the configured artificial delay.
func (m *MockService) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// Exec returns the outcome of the first registered blocking result matching
// file and args.
func (m *MockService) Exec(ctx context.Context, file string, args []string, opts process.SpawnOptions) (process.ExecutionResult, error) {
	m.mu.Lock()
	m.record(file, args, opts, false)
	var match ResultFunc
	for _, e := range m.exec {
		if e.file == file && matchArgs(e.args, args) {
			match = e.result
			break
		}
	}
	delay := m.delay
	m.mu.Unlock()

	if match == nil {
		return process.ExecutionResult{}, noMatch("exec", file, args)
	}
	if err := m.wait(ctx, delay); err != nil {
		return process.ExecutionResult{}, err
	}
	return match()
}

// ExecObservable returns the stream of the first registered streaming result
// matching file and args.
func (m *MockService) ExecObservable(ctx context.Context, file string, args []string, opts process.SpawnOptions) (*process.ObservableResult, error) {
	m.mu.Lock()
	m.record(file, args, opts, true)
	var match ObservableFunc
	for _, e := range m.observable {
		if e.file == file && matchArgs(e.args, args) {
			match = e.result
			break
		}
	}
	delay := m.delay
	m.mu.Unlock()

	if match == nil {
		return nil, noMatch("exec observable", file, args)
	}
	if err := m.wait(ctx, delay); err != nil {
		return nil, err
	}
	return match()
}

// Calls returns every invocation seen so far, in order.
func (m *MockService) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset drops registrations, recorded calls and the delay.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exec = nil
	m.observable = nil
	m.calls = nil
	m.delay = 0
}

// record must be called with m.mu held.
func (m *MockService) record(file string, args []string, opts process.SpawnOptions, observable bool) {
	m.calls = append(m.calls, Call{
		File:       file,
		Args:       append([]string(nil), args...),
		Options:    opts,
		Observable: observable,
	})
}

func (m *MockService) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-m.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func noMatch(kind, file string, args []string) error {
	return fmt.Errorf("%s %s %s: %w", kind, file, strings.Join(args, " "), ErrNoMatch)
}
