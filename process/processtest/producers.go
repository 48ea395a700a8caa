package processtest

import (
	"context"

	"github.com/caffeineduck/pyexec/process"
)

// Result produces a successful invocation that printed stdout.
func Result(stdout string) ResultFunc {
	return ResultOf(process.ExecutionResult{Stdout: stdout})
}

// ResultOf produces result with no error.
func ResultOf(result process.ExecutionResult) ResultFunc {
	return func() (process.ExecutionResult, error) {
		return result, nil
	}
}

// Failure produces err.
func Failure(err error) ResultFunc {
	return func() (process.ExecutionResult, error) {
		return process.ExecutionResult{}, err
	}
}

// StreamOf produces a stream that emits outputs in order and then ends
// without error.
func StreamOf(outputs ...process.Output) ObservableFunc {
	return StreamWithError(nil, outputs...)
}

// StreamWithError produces a stream that emits outputs and then ends with err.
func StreamWithError(err error, outputs ...process.Output) ObservableFunc {
	return func() (*process.ObservableResult, error) {
		obs, emitter := process.NewObservable(context.Background())
		go func() {
			for _, out := range outputs {
				if !emitter.Emit(out) {
					emitter.Close(emitter.Context().Err())
					return
				}
			}
			emitter.Close(err)
		}()
		return obs, nil
	}
}

// Stdout is shorthand for a stdout chunk.
func Stdout(s string) process.Output {
	return process.Output{Source: process.Stdout, Out: s}
}

// Stderr is shorthand for a stderr chunk.
func Stderr(s string) process.Output {
	return process.Output{Source: process.Stderr, Out: s}
}
