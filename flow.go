package mqttwire

import (
	"context"
	"errors"
	"sync"
)

// Flow is the completion handle of an asynchronous operation such as a
// reauthentication. It completes exactly once.
type Flow struct {
	mu   sync.Mutex
	err  error
	done chan struct{}
}

func newFlow() *Flow {
	return &Flow{done: make(chan struct{})}
}

// complete finishes the flow with err. It reports false if the flow was
// already complete, for example because it was cancelled.
func (f *Flow) complete(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return false
	default:
	}
	f.err = err
	close(f.done)
	return true
}

// Done is closed when the flow completes.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Err returns the result. It is nil while the flow is pending and on
// success.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the flow completes or ctx is done.
func (f *Flow) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel completes the flow with ErrFlowCancelled. The operation itself
// keeps running; only its result is discarded.
func (f *Flow) Cancel() bool {
	return f.complete(ErrFlowCancelled)
}

// IsCancelled reports whether Cancel won the race to complete the flow.
func (f *Flow) IsCancelled() bool {
	select {
	case <-f.done:
		return errors.Is(f.Err(), ErrFlowCancelled)
	default:
		return false
	}
}
