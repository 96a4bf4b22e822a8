package ingest

import (
	"sync"
	"sync/atomic"
)

// CancelFlag is a cooperative cancellation signal. Downloads poll it between
// chunk writes, so a chunk is never half written when the read stops.
// Streams register hooks that unblock a pending read.
type CancelFlag struct {
	cancelled atomic.Bool

	mu    sync.Mutex
	hooks []func()
}

func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Cancel sets the flag and runs registered hooks once. Safe to call from
// any goroutine and more than once.
func (f *CancelFlag) Cancel() {
	if f == nil || f.cancelled.Swap(true) {
		return
	}
	f.mu.Lock()
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// Cancelled reports whether Cancel was called. A nil flag is never cancelled.
func (f *CancelFlag) Cancelled() bool {
	return f != nil && f.cancelled.Load()
}

// onCancel registers fn to run on Cancel and returns a function that
// unregisters it. fn runs immediately when the flag is already set.
func (f *CancelFlag) onCancel(fn func()) func() {
	if f == nil {
		return func() {}
	}
	f.mu.Lock()
	if f.cancelled.Load() {
		f.mu.Unlock()
		fn()
		return func() {}
	}
	f.hooks = append(f.hooks, fn)
	idx := len(f.hooks) - 1
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.hooks) {
			f.hooks[idx] = func() {}
		}
	}
}
