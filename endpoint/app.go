package endpoint

import (
	"context"
	"sync"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

// Callback is invoked when a hook runs
type Callback func(ctx context.Context) error

// App ties the lifecycle of an InjectionManager and the services that
// use it to hooks.  Start runs CompleteRegistration before any
// callback registered by the caller; Shutdown runs the manager's
// Shutdown after them.
type App struct {
	Name    string
	IM      inject.InjectionManager
	lock    sync.Mutex // held when adding hooks
	runLock sync.Mutex // held when running hooks
	hooks   map[hookID][]Callback
	ctx     context.Context
	log     inject.BasicLogger
}

// AppOpt are options for NewApp
type AppOpt func(*App)

// WithAppLogger sets the logger used for hook failures
func WithAppLogger(log inject.BasicLogger) AppOpt {
	return func(app *App) {
		app.log = log
	}
}

// NewApp creates an App.  The context passed to callbacks is canceled
// by Shutdown.
func NewApp(name string, im inject.InjectionManager, opts ...AppOpt) *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Name:  name,
		IM:    im,
		hooks: make(map[hookID][]Callback),
		ctx:   ctx,
		log:   inject.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.On(Start, func(context.Context) error {
		return errors.Wrapf(im.CompleteRegistration(), "start %s", name)
	})
	app.On(Shutdown, func(context.Context) error {
		im.Shutdown()
		cancel()
		return nil
	})
	return app
}

// Context is canceled when the App shuts down
func (app *App) Context() context.Context { return app.ctx }

// On registers a callback to be invoked on hook invocation.  This can be used during
// callbacks, for example a start callback, can register a stop callback.
func (app *App) On(h *Hook, callbacks ...Callback) {
	app.lock.Lock()
	defer app.lock.Unlock()
	app.hooks[h.ID] = append(app.hooks[h.ID], callbacks...)
}

// Do invokes the callbacks for a hook.  It returns only the first error reported
// unless the hook provides an error combiner.
func (app *App) Do(h *Hook) error {
	app.runLock.Lock()
	defer app.runLock.Unlock()
	return app.do(h)
}

func (app *App) do(h *Hook) error {
	order, onError, continuePast, ec := h.settings()
	if ec == nil {
		ec = func(err, _ error) error { return err }
	}
	ecw := func(e1, e2 error) error {
		if e1 == nil {
			return e2
		}
		if e2 == nil {
			return e1
		}
		return ec(e1, e2)
	}
	app.lock.Lock()
	callbacks := make([]Callback, len(app.hooks[h.ID]))
	copy(callbacks, app.hooks[h.ID])
	app.lock.Unlock()
	var err error
	run := func(cb Callback) {
		e := cb(app.ctx)
		if e != nil {
			app.log.Warn("hook callback failed", map[string]interface{}{
				"app":   app.Name,
				"hook":  h.Name,
				"error": e.Error(),
			})
		}
		err = ecw(err, e)
	}
	if order == ForwardOrder {
		for _, cb := range callbacks {
			run(cb)
			if err != nil && !continuePast {
				break
			}
		}
	} else {
		for i := len(callbacks) - 1; i >= 0; i-- {
			run(callbacks[i])
			if err != nil && !continuePast {
				break
			}
		}
	}
	if err != nil {
		for _, oe := range onError {
			err = ecw(err, app.do(oe))
		}
	}
	return err
}
