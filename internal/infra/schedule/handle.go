package schedule

import (
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

// Cancellable is anything holding a scheduled task that can be withdrawn.
type Cancellable interface {
	Cancel() bool
}

// Handle controls a scheduled task.
type Handle struct {
	cancelled atomic.Bool

	mu       sync.Mutex
	timer    clockwork.Timer
	onCancel func(*Handle)
}

func newHandle() *Handle {
	return &Handle{}
}

// Cancel withdraws the task. A run already in progress completes, but no
// further run starts. It returns true when this call cancelled the task.
func (h *Handle) Cancel() bool {
	if !h.cancelled.CompareAndSwap(false, true) {
		return false
	}
	h.mu.Lock()
	timer := h.timer
	h.timer = nil
	onCancel := h.onCancel
	h.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if onCancel != nil {
		onCancel(h)
	}
	return true
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

func (h *Handle) setTimer(t clockwork.Timer) {
	h.mu.Lock()
	if h.cancelled.Load() {
		h.mu.Unlock()
		t.Stop()
		return
	}
	h.timer = t
	h.mu.Unlock()
}
