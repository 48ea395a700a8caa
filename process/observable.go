package process

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const outputBuffer = 100

// ObservableResult is a running invocation whose output arrives on Out.
// Out is closed after the last chunk; a stream cannot be restarted.
type ObservableResult struct {
	ID  string
	Out <-chan Output

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	err    error
}

// Cancel stops the invocation. Out is still closed by the producer.
func (o *ObservableResult) Cancel() {
	o.cancel()
}

// Done is closed once the producer has finished.
func (o *ObservableResult) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the producer has finished and returns its error.
func (o *ObservableResult) Wait() error {
	<-o.done
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Emitter is the producer side of an ObservableResult.
type Emitter struct {
	ctx  context.Context
	ch   chan Output
	obs  *ObservableResult
	once sync.Once
}

// NewObservable returns a stream and the emitter that feeds it. The emitter's
// context is derived from ctx and cancelled by ObservableResult.Cancel.
func NewObservable(ctx context.Context) (*ObservableResult, *Emitter) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Output, outputBuffer)
	obs := &ObservableResult{
		ID:     uuid.NewString(),
		Out:    ch,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	return obs, &Emitter{ctx: ctx, ch: ch, obs: obs}
}

// Context is cancelled when the consumer cancels the stream.
func (e *Emitter) Context() context.Context {
	return e.ctx
}

// Emit sends out. It returns false once the stream has been cancelled.
func (e *Emitter) Emit(out Output) bool {
	select {
	case <-e.ctx.Done():
		return false
	default:
	}
	select {
	case e.ch <- out:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// Close ends the stream with err. Only the first call has an effect.
func (e *Emitter) Close(err error) {
	e.once.Do(func() {
		e.obs.mu.Lock()
		e.obs.err = err
		e.obs.mu.Unlock()
		close(e.ch)
		close(e.obs.done)
		e.obs.cancel()
	})
}

// Collect drains obs into an ExecutionResult. The exit code is taken from an
// *ExitError returned by Wait.
func Collect(ctx context.Context, obs *ObservableResult) (ExecutionResult, error) {
	var stdout, stderr strings.Builder
	for {
		select {
		case out, ok := <-obs.Out:
			if !ok {
				result := ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}
				err := obs.Wait()
				var exitErr *ExitError
				if errors.As(err, &exitErr) {
					result.ExitCode = exitErr.Code
				}
				return result, err
			}
			if out.Source == Stderr {
				stderr.WriteString(out.Out)
			} else {
				stdout.WriteString(out.Out)
			}
		case <-ctx.Done():
			obs.Cancel()
			return ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
		}
	}
}

// emitWriter adapts an Emitter to io.Writer for one source.
type emitWriter struct {
	source  Source
	emitter *Emitter
	wrote   bool
}

func (w *emitWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.wrote = true
	if !w.emitter.Emit(Output{Source: w.source, Out: string(p)}) {
		return 0, w.emitter.ctx.Err()
	}
	return len(p), nil
}
