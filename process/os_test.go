package process_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeineduck/pyexec/internal/tracing"
	"github.com/caffeineduck/pyexec/process"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available, skipping OS process test")
	}
	return sh
}

func TestOSExec_CapturesStdout(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	result, err := svc.Exec(context.Background(), sh, []string{"-c", "printf hello"}, process.SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
}

func TestOSExec_SeparatesAndMergesStderr(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()
	script := []string{"-c", "printf out; printf err >&2"}

	result, err := svc.Exec(context.Background(), sh, script, process.SpawnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "out", result.Stdout)
	assert.Equal(t, "err", result.Stderr)

	result, err = svc.Exec(context.Background(), sh, script, process.SpawnOptions{MergeStdErr: true})
	require.NoError(t, err)
	assert.Equal(t, "outerr", result.Stdout)
	assert.Empty(t, result.Stderr)
}

func TestOSExec_ThrowOnStdErr(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	_, err := svc.Exec(context.Background(), sh, []string{"-c", "echo boom >&2"}, process.SpawnOptions{ThrowOnStdErr: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, process.ErrStdErr))
	assert.Contains(t, err.Error(), "boom")
}

func TestOSExec_ExitCode(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	result, err := svc.Exec(context.Background(), sh, []string{"-c", "echo nope >&2; exit 3"}, process.SpawnOptions{})
	require.Error(t, err)

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "nope", exitErr.Stderr)
	assert.Equal(t, 3, result.ExitCode)
}

func TestOSExec_Timeout(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService(process.WithDefaultTimeout(50 * time.Millisecond))

	_, err := svc.Exec(context.Background(), sh, []string{"-c", "sleep 5"}, process.SpawnOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestOSExec_TimeoutKillsDescendants(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	start := time.Now()
	_, err := svc.Exec(context.Background(), sh, []string{"-c", "sleep 3; echo done"}, process.SpawnOptions{Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, "timeout after 100ms", err.Error())
	assert.Less(t, elapsed, 2*time.Second, "Exec outlived its timeout")
}

func TestOSExec_BackgroundDescendantDoesNotBlock(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	start := time.Now()
	result, err := svc.Exec(context.Background(), sh, []string{"-c", "sleep 3 & echo done"}, process.SpawnOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "done\n", result.Stdout)
	assert.Less(t, elapsed, 2500*time.Millisecond, "Exec waited for a background descendant")
}

func TestOSExec_MissingExecutable(t *testing.T) {
	svc := process.NewOSService()

	_, err := svc.Exec(context.Background(), "/nonexistent/python3", nil, process.SpawnOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start /nonexistent/python3")
}

func TestOSExec_EnvStdinCwd(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()
	dir := t.TempDir()

	result, err := svc.Exec(context.Background(), sh, []string{"-c", `printf "%s|" "$GREETING"; cat; printf "|%s" "$(pwd)"`}, process.SpawnOptions{
		Env:   map[string]string{"GREETING": "hi"},
		Stdin: "from-stdin",
		Cwd:   dir,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "hi|from-stdin|")
	assert.Contains(t, result.Stdout, dir)
}

func TestOSExecObservable_Streams(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	obs, err := svc.ExecObservable(context.Background(), sh, []string{"-c", "echo a; echo b >&2"}, process.SpawnOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, obs.ID)

	result, err := process.Collect(context.Background(), obs)
	require.NoError(t, err)
	assert.Equal(t, "a\n", result.Stdout)
	assert.Equal(t, "b\n", result.Stderr)
}

func TestOSExecObservable_ExitError(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	obs, err := svc.ExecObservable(context.Background(), sh, []string{"-c", "exit 7"}, process.SpawnOptions{})
	require.NoError(t, err)

	result, err := process.Collect(context.Background(), obs)
	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, result.ExitCode)
}

func TestOSExecObservable_Cancel(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService()

	obs, err := svc.ExecObservable(context.Background(), sh, []string{"-c", "sleep 3; echo done"}, process.SpawnOptions{})
	require.NoError(t, err)

	start := time.Now()
	obs.Cancel()

	select {
	case <-obs.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish after Cancel")
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, obs.Wait(), context.Canceled)
}

func TestOSExecObservable_TimeoutKillsDescendants(t *testing.T) {
	sh := requireShell(t)
	svc := process.NewOSService(process.WithDefaultTimeout(100 * time.Millisecond))

	start := time.Now()
	obs, err := svc.ExecObservable(context.Background(), sh, []string{"-c", "echo started; sleep 3; echo done"}, process.SpawnOptions{})
	require.NoError(t, err)

	result, err := process.Collect(context.Background(), obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout after 100ms")
	assert.Equal(t, "started\n", result.Stdout)
	assert.Less(t, time.Since(start), 2*time.Second, "stream outlived its timeout")
}

func TestOSExecObservable_StartFailure(t *testing.T) {
	svc := process.NewOSService()

	obs, err := svc.ExecObservable(context.Background(), "/nonexistent/python3", nil, process.SpawnOptions{})
	require.Error(t, err)
	assert.Nil(t, obs)
}

func TestOSExec_RecordsSpan(t *testing.T) {
	sh := requireShell(t)

	var buf bytes.Buffer
	cfg := tracing.DefaultConfig()
	cfg.Enabled = true
	cfg.Writer = &buf
	provider, err := tracing.NewProvider(cfg)
	require.NoError(t, err)

	svc := process.NewOSService(process.WithTracer(provider.Tracer()))
	_, err = svc.Exec(context.Background(), sh, []string{"-c", "true"}, process.SpawnOptions{})
	require.NoError(t, err)
	require.NoError(t, provider.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), tracing.SpanExec)
	assert.Contains(t, buf.String(), "process.file")
}
