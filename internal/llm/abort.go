package llm

import (
	"context"
	"errors"
	"sync"
)

// Cancelled is returned by CheckAbort once the controller has been
// aborted.
var Cancelled = errors.New("llm: cancelled")

// AbortController is the single cancellation signal for one request. It is
// safe to call Abort from a signal-handler-like context: Abort never
// blocks and never allocates beyond the one-time close of a channel.
type AbortController struct {
	mu      sync.Mutex
	aborted bool
	waitCh  chan struct{}
	cancels []context.CancelFunc
}

// NewAbortController returns a controller ready for one request.
func NewAbortController() *AbortController {
	return &AbortController{waitCh: make(chan struct{})}
}

// Abort is idempotent: it sets the aborted flag and notifies every waiter
// and every registered task handle exactly once.
func (a *AbortController) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted {
		return
	}
	a.aborted = true
	close(a.waitCh)
	for _, cancel := range a.cancels {
		cancel()
	}
}

// IsAborted reports whether Abort has been called since construction or the
// last Reset. Once true it stays true until Reset.
func (a *AbortController) IsAborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

// WaitForAbort blocks until Abort is called or ctx is done.
func (a *AbortController) WaitForAbort(ctx context.Context) {
	a.mu.Lock()
	ch := a.waitCh
	a.mu.Unlock()
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// CheckAbort returns Cancelled if the controller has already been aborted,
// nil otherwise. It never blocks.
func (a *AbortController) CheckAbort() error {
	if a.IsAborted() {
		return Cancelled
	}
	return nil
}

// Register schedules cancel to be invoked when Abort fires. If the
// controller is already aborted, cancel runs immediately.
func (a *AbortController) Register(cancel context.CancelFunc) {
	a.mu.Lock()
	if a.aborted {
		a.mu.Unlock()
		cancel()
		return
	}
	a.cancels = append(a.cancels, cancel)
	a.mu.Unlock()
}

// Reset clears the aborted flag and the waiter/registration set, making the
// controller reusable for a new request.
func (a *AbortController) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aborted = false
	a.waitCh = make(chan struct{})
	a.cancels = nil
}
