package filter

import (
	"context"
	"time"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"
)

// Stage is one step of request processing
type Stage interface {
	Apply(pc *ProcessingContext) (Continuation, error)
}

type StageFunc func(pc *ProcessingContext) (Continuation, error)

func (f StageFunc) Apply(pc *ProcessingContext) (Continuation, error) { return f(pc) }

// Endpoint produces the response for a request
type Endpoint interface {
	Apply(pc *ProcessingContext) (*Response, error)
}

type EndpointFunc func(pc *ProcessingContext) (*Response, error)

func (f EndpointFunc) Apply(pc *ProcessingContext) (*Response, error) { return f(pc) }

// ResponseStage transforms the response on the way out.  Response
// stages are pushed onto the ProcessingContext while the request is
// processed and run in reverse order of pushing.
type ResponseStage interface {
	Apply(pc *ProcessingContext, resp *Response) (*Response, error)
}

type ResponseStageFunc func(pc *ProcessingContext, resp *Response) (*Response, error)

func (f ResponseStageFunc) Apply(pc *ProcessingContext, resp *Response) (*Response, error) {
	return f(pc, resp)
}

// Continuation says what happens after a Stage.  The zero value moves
// on to the next stage.
type Continuation struct {
	// Endpoint, if set, becomes the endpoint for the request
	Endpoint Endpoint
	// Stop skips the remaining stages
	Stop bool
}

// Next moves on to the next stage
func Next() Continuation { return Continuation{} }

// Matched sets the endpoint and moves on to the next stage
func Matched(e Endpoint) Continuation { return Continuation{Endpoint: e} }

// Finish sets the endpoint and skips the remaining stages
func Finish(e Endpoint) Continuation { return Continuation{Endpoint: e, Stop: true} }

// Respond is an Endpoint that returns a fixed response
func Respond(resp *Response) Endpoint {
	return EndpointFunc(func(pc *ProcessingContext) (*Response, error) {
		if resp.Request == nil {
			resp.Request = pc.Request()
		}
		return resp, nil
	})
}

// ProcessingContext carries the state of one request through the
// stages.  It is not shared between goroutines.
type ProcessingContext struct {
	req             *Request
	resp            *Response
	err             error
	aborted         bool
	requestFilters  []string
	responseFilters []string
	responseStages  []ResponseStage
	*options
}

func (pc *ProcessingContext) Request() *Request          { return pc.req }
func (pc *ProcessingContext) Context() context.Context   { return pc.req.Context() }
func (pc *ProcessingContext) Log() inject.BasicLogger    { return pc.log }
func (pc *ProcessingContext) Registry() metrics.Registry { return pc.registry }

// Push adds a response stage.  The last pushed runs first.
func (pc *ProcessingContext) Push(stage ResponseStage) {
	pc.responseStages = append(pc.responseStages, stage)
}

// TriggerEvent tells the listeners about the current state
func (pc *ProcessingContext) TriggerEvent(t EventType) {
	if len(pc.listeners) == 0 {
		return
	}
	e := Event{
		Type:            t,
		Time:            time.Now(),
		Request:         pc.req,
		Response:        pc.resp,
		Err:             pc.err,
		RequestFilters:  pc.requestFilters,
		ResponseFilters: pc.responseFilters,
		Aborted:         pc.aborted,
	}
	for _, l := range pc.listeners {
		l.OnEvent(e)
	}
}

func (pc *ProcessingContext) timer(name string) metrics.Timer {
	return metrics.GetOrRegisterTimer(name, pc.registry)
}

func (pc *ProcessingContext) counter(name string) metrics.Counter {
	return metrics.GetOrRegisterCounter(name, pc.registry)
}

type options struct {
	log         inject.BasicLogger
	registry    metrics.Registry
	listeners   []Listener
	errorMapper ErrorMapper
}

// Opt are options for NewChain
type Opt func(*options)

// WithLogger overrides inject.DefaultLogger()
func WithLogger(log inject.BasicLogger) Opt {
	return func(o *options) {
		o.log = log
	}
}

// WithRegistry overrides metrics.DefaultRegistry
func WithRegistry(registry metrics.Registry) Opt {
	return func(o *options) {
		o.registry = registry
	}
}

// WithListeners adds monitoring listeners
func WithListeners(listeners ...Listener) Opt {
	return func(o *options) {
		o.listeners = append(o.listeners, listeners...)
	}
}

// WithErrorMapper overrides DefaultErrorMapper
func WithErrorMapper(mapper ErrorMapper) Opt {
	return func(o *options) {
		o.errorMapper = mapper
	}
}

// Chain runs request stages, the endpoint, and then the response
// stages that were pushed along the way.
type Chain struct {
	stages []Stage
	options
}

func NewChain(stages []Stage, opts ...Opt) *Chain {
	c := &Chain{
		stages: stages,
		options: options{
			log:         inject.DefaultLogger(),
			registry:    metrics.DefaultRegistry,
			errorMapper: DefaultErrorMapper,
		},
	}
	for _, opt := range opts {
		opt(&c.options)
	}
	return c
}

// Process runs req through the chain.  The returned response is never
// nil: errors are mapped to responses and those responses still go
// through the response stages.  The error, if any, is the first one
// that was mapped.
func (c *Chain) Process(req *Request) (*Response, error) {
	start := time.Now()
	pc := &ProcessingContext{
		req:     req,
		options: &c.options,
	}
	pc.TriggerEvent(Start)

	resp, err := c.request(pc)
	if err != nil {
		resp = pc.mapError(err)
	}
	resp, rerr := pc.respond(resp)
	if rerr != nil {
		resp = pc.mapError(rerr)
		if err == nil {
			err = rerr
		}
	}
	pc.resp = resp
	pc.TriggerEvent(Finished)
	pc.timer("filter.process").UpdateSince(start)
	return resp, err
}

func (c *Chain) request(pc *ProcessingContext) (resp *Response, err error) {
	var endpoint Endpoint
	for _, stage := range c.stages {
		cont, err := stage.Apply(pc)
		if err != nil {
			return nil, err
		}
		if cont.Endpoint != nil {
			endpoint = cont.Endpoint
		}
		if cont.Stop {
			break
		}
	}
	if endpoint == nil {
		return nil, NotFound(errors.Errorf("no resource matches %s %s", pc.req.Method, pc.req.URL))
	}
	pc.TriggerEvent(ResourceMethodStart)
	defer pc.TriggerEvent(ResourceMethodFinished)
	defer recoverPanic(pc, "resource", &err)
	resp, err = endpoint.Apply(pc)
	if err == nil && resp == nil {
		err = errors.New("endpoint returned no response")
	}
	return resp, err
}

func (pc *ProcessingContext) mapError(err error) *Response {
	pc.err = err
	pc.TriggerEvent(OnException)
	resp := pc.errorMapper(pc.req, err)
	pc.resp = resp
	pc.TriggerEvent(ExceptionMapped)
	pc.log.Debug("request failed", map[string]interface{}{
		"method": pc.req.Method,
		"url":    urlString(pc.req),
		"status": resp.Status,
		"error":  err.Error(),
	})
	return resp
}

func (pc *ProcessingContext) respond(resp *Response) (*Response, error) {
	if resp.Request == nil {
		resp.Request = pc.req
	}
	pc.resp = resp
	for len(pc.responseStages) > 0 {
		last := len(pc.responseStages) - 1
		stage := pc.responseStages[last]
		pc.responseStages = pc.responseStages[:last]
		next, err := stage.Apply(pc, resp)
		if err != nil {
			return resp, err
		}
		if next != nil {
			resp = next
			pc.resp = resp
		}
	}
	return resp, nil
}

func urlString(req *Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.String()
}
