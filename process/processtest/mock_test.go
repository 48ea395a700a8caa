package processtest_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/caffeineduck/pyexec/process"
	"github.com/caffeineduck/pyexec/process/processtest"
)

const python = "/usr/bin/python3"

func TestMockExec_ExactMatch(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("--version"), processtest.Result("Python 3.10.0"))

	result, err := proc.Exec(context.Background(), python, []string{"--version"}, process.SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Python 3.10.0", result.Stdout)
}

func TestMockExec_PatternMatch(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Args("-c", regexp.MustCompile(`^import \w+$`)), processtest.Result(""))

	_, err := proc.Exec(context.Background(), python, []string{"-c", "import numpy"}, process.SpawnOptions{})
	require.NoError(t, err)

	_, err = proc.Exec(context.Background(), python, []string{"-c", "import numpy; print(1)"}, process.SpawnOptions{})
	assert.ErrorIs(t, err, processtest.ErrNoMatch)
}

func TestMockExec_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		file string
		args []string
	}{
		{name: "different args", file: python, args: []string{"--help"}},
		{name: "extra args", file: python, args: []string{"--version", "-v"}},
		{name: "fewer args", file: python, args: nil},
		{name: "different file", file: "/usr/bin/python2", args: []string{"--version"}},
	}

	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("--version"), processtest.Result("Python 3.10.0"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proc.Exec(context.Background(), tt.file, tt.args, process.SpawnOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, processtest.ErrNoMatch)
			assert.Contains(t, err.Error(), tt.file)
		})
	}
}

func TestMockExec_FirstRegistrationWins(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("-c", "print(1)"), processtest.Result("specific"))
	proc.AddExecResult(python, processtest.Args("-c", processtest.Pattern(".*")), processtest.Result("catch-all"))

	result, err := proc.Exec(context.Background(), python, []string{"-c", "print(1)"}, process.SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "specific", result.Stdout)

	result, err = proc.Exec(context.Background(), python, []string{"-c", "print(2)"}, process.SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "catch-all", result.Stdout)
}

func TestMockExec_ProducerError(t *testing.T) {
	proc := processtest.NewMockService()
	boom := errors.New("boom")
	proc.AddExecResult(python, processtest.Strings("fail"), processtest.Failure(boom))

	_, err := proc.Exec(context.Background(), python, []string{"fail"}, process.SpawnOptions{})
	assert.Equal(t, boom, err)
}

func TestMockExec_ProducerCalledPerInvocation(t *testing.T) {
	proc := processtest.NewMockService()
	n := 0
	proc.AddExecResult(python, processtest.Strings("count"), func() (process.ExecutionResult, error) {
		n++
		return process.ExecutionResult{}, nil
	})

	for range 3 {
		_, err := proc.Exec(context.Background(), python, []string{"count"}, process.SpawnOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, n)
}

func TestMockExecObservable(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecObservableResult(python, processtest.Strings("-u", "train.py"),
		processtest.StreamOf(processtest.Stdout("epoch 1\n"), processtest.Stderr("warn\n"), processtest.Stdout("epoch 2\n")))

	obs, err := proc.ExecObservable(context.Background(), python, []string{"-u", "train.py"}, process.SpawnOptions{})
	require.NoError(t, err)

	var got []process.Output
	for out := range obs.Out {
		got = append(got, out)
	}
	require.NoError(t, obs.Wait())
	assert.Equal(t, []process.Output{
		processtest.Stdout("epoch 1\n"),
		processtest.Stderr("warn\n"),
		processtest.Stdout("epoch 2\n"),
	}, got)
}

func TestMockExecObservable_StreamError(t *testing.T) {
	proc := processtest.NewMockService()
	boom := errors.New("kernel died")
	proc.AddExecObservableResult(python, processtest.Strings("run"),
		processtest.StreamWithError(boom, processtest.Stdout("partial")))

	obs, err := proc.ExecObservable(context.Background(), python, []string{"run"}, process.SpawnOptions{})
	require.NoError(t, err)

	result, err := process.Collect(context.Background(), obs)
	assert.Equal(t, boom, err)
	assert.Equal(t, "partial", result.Stdout)
}

func TestMockExecObservable_NoMatch(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("run"), processtest.Result(""))

	obs, err := proc.ExecObservable(context.Background(), python, []string{"run"}, process.SpawnOptions{})
	assert.Nil(t, obs)
	assert.ErrorIs(t, err, processtest.ErrNoMatch)
}

func TestMock_RecordsCalls(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("a"), processtest.Result(""))
	opts := process.SpawnOptions{Cwd: "/work"}

	_, _ = proc.Exec(context.Background(), python, []string{"a"}, opts)
	_, _ = proc.ExecObservable(context.Background(), python, []string{"b"}, process.SpawnOptions{})

	calls := proc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, processtest.Call{File: python, Args: []string{"a"}, Options: opts}, calls[0])
	assert.True(t, calls[1].Observable)
	assert.Equal(t, []string{"b"}, calls[1].Args)
}

func TestMock_Reset(t *testing.T) {
	proc := processtest.NewMockService()
	proc.AddExecResult(python, processtest.Strings("a"), processtest.Result(""))
	proc.SetDelay(time.Second)
	_, _ = proc.Exec(context.Background(), python, []string{"x"}, process.SpawnOptions{})

	proc.Reset()

	assert.Empty(t, proc.Calls())
	assert.Zero(t, proc.Delay())
	_, err := proc.Exec(context.Background(), python, []string{"a"}, process.SpawnOptions{})
	assert.ErrorIs(t, err, processtest.ErrNoMatch)
}

func TestMock_DelayWaitsOnClock(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	proc := processtest.NewMockService(processtest.WithClock(fc))
	proc.AddExecResult(python, processtest.Strings("slow"), processtest.Result("done"))
	proc.SetDelay(5 * time.Second)

	type outcome struct {
		result process.ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := proc.Exec(context.Background(), python, []string{"slow"}, process.SpawnOptions{})
		done <- outcome{r, err}
	}()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)

	fc.Step(4 * time.Second)
	select {
	case <-done:
		t.Fatal("resolved before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Step(time.Second)
	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.Equal(t, "done", o.result.Stdout)
	case <-time.After(time.Second):
		t.Fatal("did not resolve after the delay elapsed")
	}
}

func TestMock_DelayHonoursContext(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	proc := processtest.NewMockService(processtest.WithClock(fc))
	proc.AddExecResult(python, processtest.Strings("slow"), processtest.Result("done"))
	proc.SetDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := proc.Exec(ctx, python, []string{"slow"}, process.SpawnOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMock_ObservableDelayWaitsOnClock(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	proc := processtest.NewMockService(processtest.WithClock(fc))
	proc.AddExecObservableResult(python, processtest.Strings("slow"),
		processtest.StreamOf(processtest.Stdout("a"), processtest.Stdout("b")))
	proc.SetDelay(5 * time.Second)

	type outcome struct {
		obs *process.ObservableResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		obs, err := proc.ExecObservable(context.Background(), python, []string{"slow"}, process.SpawnOptions{})
		done <- outcome{obs, err}
	}()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)

	fc.Step(4 * time.Second)
	select {
	case <-done:
		t.Fatal("stream returned before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Step(time.Second)
	select {
	case o := <-done:
		require.NoError(t, o.err)
		result, err := process.Collect(context.Background(), o.obs)
		require.NoError(t, err)
		assert.Equal(t, "ab", result.Stdout)
	case <-time.After(time.Second):
		t.Fatal("stream not returned after the delay elapsed")
	}
}

func TestMock_ObservableDelayHonoursContext(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	proc := processtest.NewMockService(processtest.WithClock(fc))
	proc.AddExecObservableResult(python, processtest.Strings("slow"), processtest.StreamOf(processtest.Stdout("a")))
	proc.SetDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := proc.ExecObservable(ctx, python, []string{"slow"}, process.SpawnOptions{})
		done <- err
	}()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not interrupt the delay")
	}
}

func TestArgs_UnsupportedTypePanics(t *testing.T) {
	assert.Panics(t, func() { processtest.Args(42) })
}

func TestArg_String(t *testing.T) {
	assert.Equal(t, `"-m"`, processtest.Exact("-m").String())
	assert.Equal(t, `/^pip$/`, processtest.Pattern("^pip$").String())
}
