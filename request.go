package inject

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	uuid "github.com/nu7hatch/gouuid"
)

// RequestContext holds the RequestScoped instances for one request.
// It travels in a context.Context.  Release tears down the instances;
// it may be called any number of times from any goroutine but only the
// first call does anything.
type RequestContext struct {
	id       string
	lock     sync.Mutex
	entries  map[int64]*requestEntry
	order    []int64
	released int32
	once     sync.Once
}

type requestEntry struct {
	lock      sync.Mutex
	done      bool
	abandoned bool
	instance  any
	dispose   func(any)
}

var requestCounter int64

// NewRequestContext creates a RequestContext with a fresh id
func NewRequestContext() *RequestContext {
	var id string
	u, err := uuid.NewV4()
	if err != nil {
		id = "request-" + strconv.FormatInt(atomic.AddInt64(&requestCounter, 1), 10)
	} else {
		id = u.String()
	}
	return &RequestContext{
		id:      id,
		entries: make(map[int64]*requestEntry),
	}
}

func (rc *RequestContext) ID() string { return rc.id }

func (rc *RequestContext) String() string { return "request " + rc.id }

// Released is true once Release has been called
func (rc *RequestContext) Released() bool {
	return atomic.LoadInt32(&rc.released) == 1
}

// Resolve returns the instance stored under key, calling create the
// first time.  dispose, if not nil, is called on Release.  A failed
// create is not remembered: the next Resolve calls create again.
func (rc *RequestContext) Resolve(key int64, create func() (any, error), dispose func(any)) (any, error) {
	for {
		if rc.Released() {
			return nil, IllegalState(rc.String(), ErrReleased)
		}
		rc.lock.Lock()
		e, ok := rc.entries[key]
		if !ok {
			e = &requestEntry{dispose: dispose}
			rc.entries[key] = e
			rc.order = append(rc.order, key)
		}
		rc.lock.Unlock()

		e.lock.Lock()
		if e.done {
			e.lock.Unlock()
			return e.instance, nil
		}
		if e.abandoned {
			e.lock.Unlock()
			continue
		}
		instance, err := create()
		rc.lock.Lock()
		if err != nil {
			e.abandoned = true
			rc.forget(key, e)
		} else {
			e.instance, e.done = instance, true
		}
		rc.lock.Unlock()
		e.lock.Unlock()
		return instance, err
	}
}

// forget drops an abandoned entry.  rc.lock must be held.
func (rc *RequestContext) forget(key int64, e *requestEntry) {
	if rc.entries[key] != e {
		return
	}
	delete(rc.entries, key)
	for i, k := range rc.order {
		if k == key {
			rc.order = append(rc.order[:i:i], rc.order[i+1:]...)
			break
		}
	}
}

// Seed stores an instance that was created elsewhere
func (rc *RequestContext) Seed(key int64, instance any) {
	_, _ = rc.Resolve(key, func() (any, error) { return instance, nil }, nil)
}

// Release disposes of the stored instances in reverse creation order.
// Instances that implement PreDestroyer are told first.
func (rc *RequestContext) Release() {
	rc.once.Do(func() {
		atomic.StoreInt32(&rc.released, 1)
		rc.lock.Lock()
		order := rc.order
		entries := rc.entries
		rc.entries = make(map[int64]*requestEntry)
		rc.order = nil
		rc.lock.Unlock()
		for i := len(order) - 1; i >= 0; i-- {
			e := entries[order[i]]
			e.lock.Lock()
			done := e.done
			e.lock.Unlock()
			if !done || e.instance == nil {
				continue
			}
			if pd, ok := e.instance.(PreDestroyer); ok {
				pd.PreDestroy()
			}
			if e.dispose != nil {
				e.dispose(e.instance)
			}
		}
		debugf("released %s (%d instances)", rc, len(order))
	})
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the RequestContext, if any
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
