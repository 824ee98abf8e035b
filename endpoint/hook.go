package endpoint

import (
	"sync"
	"sync/atomic"
)

var hookCounter int32

type hookOrder string

const (
	ForwardOrder hookOrder = "forward"
	ReverseOrder hookOrder = "reverse"
)

type hookID int32

// Hook is the handle/name for a list of callbacks to invoke.
type Hook struct {
	ID            hookID
	lock          sync.Mutex
	Name          string
	Order         hookOrder
	InvokeOnError []*Hook
	ContinuePast  bool
	ErrorCombiner func(first, second error) error
}

// NewHook creates a new category of callbacks.
func NewHook(name string, order hookOrder) *Hook {
	return &Hook{
		ID:    hookID(atomic.AddInt32(&hookCounter, 1)),
		Name:  name,
		Order: order,
	}
}

// OnError adds to the set of hooks to invoke when this hook
// returns an error.  Call with nil to clear the set.
// OnError is thread-safe.
func (h *Hook) OnError(e *Hook) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	if e == nil {
		h.InvokeOnError = nil
	} else {
		h.InvokeOnError = append(h.InvokeOnError, e)
	}
	return h
}

// SetErrorCombiner sets a function to combine two errors into one when there
// is more than one error to return from invoking all the callbacks.
// SetErrorCombiner is thread-safe.
func (h *Hook) SetErrorCombiner(f func(first, second error) error) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ErrorCombiner = f
	return h
}

// ContinuePastError sets if callbacks should continue to be invoked
// if there has already been an error.
// ContinuePastError is thread-safe.
func (h *Hook) ContinuePastError(b bool) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ContinuePast = b
	return h
}

func (h *Hook) String() string {
	return "hook " + h.Name
}

func (h *Hook) settings() (hookOrder, []*Hook, bool, func(first, second error) error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	onError := make([]*Hook, len(h.InvokeOnError))
	copy(onError, h.InvokeOnError)
	return h.Order, onError, h.ContinuePast, h.ErrorCombiner
}

// Start completes registration with the InjectionManager and then
// starts services.  A failed start runs Stop.
var Start = NewHook("start", ForwardOrder).OnError(Stop)

// Stop stops services from accepting requests.  A failed stop runs
// Shutdown.
var Stop = NewHook("stop", ReverseOrder).OnError(Shutdown).ContinuePastError(true)

// Shutdown shuts the InjectionManager down.
var Shutdown = NewHook("shutdown", ReverseOrder).ContinuePastError(true)
