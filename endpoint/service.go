package endpoint

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/chunked"
	"github.com/eclipse-ee4j/jersey-sub005/filter"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Service is a group of endpoints that share the global filters loaded
// from an InjectionManager.  Endpoints may be registered before or
// after Start; nothing is served until Start.
//
// Each request gets an inject.RequestContext.  It is released when the
// response has been written or, for a streamed response, when the
// chunked output closes.
type Service struct {
	Name      string
	im        inject.InjectionManager
	router    *mux.Router
	lock      sync.Mutex
	endpoints []*Registration
	routes    map[*mux.Route]*Registration
	chain     *filter.Chain
	started   bool
	stopped   int32
	options
}

type options struct {
	log        inject.BasicLogger
	filterOpts []filter.Opt
}

// Opt are options for NewService
type Opt func(*options)

// WithLogger sets the service logger.  It is passed on to the filter chain.
func WithLogger(log inject.BasicLogger) Opt {
	return func(o *options) {
		o.log = log
		o.filterOpts = append(o.filterOpts, filter.WithLogger(log))
	}
}

// WithFilterOptions passes options to the filter chain
func WithFilterOptions(opts ...filter.Opt) Opt {
	return func(o *options) {
		o.filterOpts = append(o.filterOpts, opts...)
	}
}

// NewService creates a service that routes with router.  If app is
// not nil, the service starts on the Start hook and stops on Stop.
// Unless the router already has them, the service becomes the
// router's NotFoundHandler and MethodNotAllowedHandler so that those
// responses also go through the filters.
func NewService(name string, app *App, router *mux.Router, opts ...Opt) *Service {
	s := &Service{
		Name:   name,
		router: router,
		routes: make(map[*mux.Route]*Registration),
		options: options{
			log: inject.DefaultLogger(),
		},
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	if router.NotFoundHandler == nil {
		router.NotFoundHandler = s
	}
	if router.MethodNotAllowedHandler == nil {
		router.MethodNotAllowedHandler = s
	}
	if app != nil {
		s.im = app.IM
		app.On(Start, s.Start)
		app.On(Stop, func(context.Context) error {
			s.Stop()
			return nil
		})
	}
	return s
}

// Registration holds one endpoint.  Most of the gorilla mux route
// methods can be used on it; they take effect when the service starts.
type Registration struct {
	lock            sync.Mutex
	path            string
	endpoint        filter.Endpoint
	muxroutes       []func(*mux.Route) *mux.Route
	route           *mux.Route
	err             error
	requestFilters  []filter.Ranked[filter.RequestFilter]
	responseFilters []filter.Ranked[filter.ResponseFilter]
}

// RegisterEndpoint adds an endpoint.  If the service has already
// started, the route is added to the router immediately.
func (s *Service) RegisterEndpoint(path string, e filter.Endpoint) *Registration {
	s.lock.Lock()
	defer s.lock.Unlock()
	r := &Registration{
		path:     path,
		endpoint: e,
	}
	s.endpoints = append(s.endpoints, r)
	if s.started {
		s.bind(r)
	}
	return r
}

func (s *Service) bind(r *Registration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.route = s.router.NewRoute().Path(r.path).Handler(s)
	for _, mod := range r.muxroutes {
		r.route = mod(r.route)
	}
	r.err = r.route.GetError()
	s.routes[r.route] = r
}

// Start loads the global filters, builds the filter chain, and binds
// every endpoint to the router.  Start is a Callback for the Start hook.
func (s *Service) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		return errors.Errorf("duplicate start of service %s", s.Name)
	}
	var filters filter.Filters
	if s.im != nil {
		var err error
		filters, err = filter.Load(ctx, s.im)
		if err != nil {
			return errors.Wrapf(err, "start service %s", s.Name)
		}
	}
	s.chain = filter.NewChain(filters.Stages(filter.StageFunc(s.match)), s.filterOpts...)
	for _, r := range s.endpoints {
		s.bind(r)
		if r.err != nil {
			return errors.Wrapf(r.err, "route %s", r.path)
		}
	}
	s.started = true
	atomic.StoreInt32(&s.stopped, 0)
	s.log.Debug("service started", map[string]interface{}{
		"service":   s.Name,
		"endpoints": len(s.endpoints),
	})
	return nil
}

// Stop makes the service answer 503 Service Unavailable
func (s *Service) Stop() {
	atomic.StoreInt32(&s.stopped, 1)
}

// match is the matching stage: it finds the route, sets the path
// variables, and attaches the endpoint's name-bound filters.
func (s *Service) match(pc *filter.ProcessingContext) (filter.Continuation, error) {
	req := pc.Request()
	hr := req.HTTP
	if hr == nil {
		hr = (&http.Request{
			Method: req.Method,
			URL:    req.URL,
			Header: req.Header,
		}).WithContext(req.Context())
	}
	var m mux.RouteMatch
	if !s.router.Match(hr, &m) || m.MatchErr != nil {
		if errors.Is(m.MatchErr, mux.ErrMethodMismatch) {
			return filter.Continuation{}, filter.ReturnCode(
				errors.Errorf("method %s not allowed for %s", req.Method, req.URL.Path),
				http.StatusMethodNotAllowed)
		}
		return filter.Next(), nil
	}
	s.lock.Lock()
	r := s.routes[m.Route]
	s.lock.Unlock()
	if r == nil {
		return filter.Next(), nil
	}
	for k, v := range m.Vars {
		req.Vars[k] = v
	}
	requestFilters, responseFilters := r.filters()
	for _, f := range requestFilters {
		req.AddRequestFilter(f)
	}
	for _, f := range responseFilters {
		req.AddResponseFilter(f)
	}
	return filter.Matched(r.endpoint), nil
}

// Process runs req through the filter chain
func (s *Service) Process(req *filter.Request) (*filter.Response, error) {
	s.lock.Lock()
	chain := s.chain
	s.lock.Unlock()
	if chain == nil {
		return nil, errors.Errorf("service %s is not started", s.Name)
	}
	return chain.Process(req)
}

// Stream is implemented by *chunked.Output
type Stream interface {
	Attach(t chunked.Target) error
	Close() error
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.stopped) == 1 {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	rc := inject.NewRequestContext()
	r = r.WithContext(inject.WithRequestContext(r.Context(), rc))
	resp, err := s.Process(filter.FromHTTP(r))
	if err != nil && resp == nil {
		rc.Release()
		s.log.Error("cannot process request", map[string]interface{}{
			"service": s.Name,
			"error":   err.Error(),
		})
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if stream, ok := resp.Entity.(Stream); ok {
		s.stream(w, r, resp, stream, rc)
		return
	}
	defer rc.Release()
	s.write(w, resp)
}

func (s *Service) write(w http.ResponseWriter, resp *filter.Response) {
	if resp.Entity == nil {
		copyHeader(w, resp)
		w.WriteHeader(resp.Status)
		return
	}
	mediaType := contentType(resp)
	copyHeader(w, resp)
	w.WriteHeader(resp.Status)
	if _, err := chunked.WriterFor(mediaType).WriteChunk(resp.Entity, mediaType, resp.Header, w); err != nil {
		s.log.Warn("cannot write response entity", map[string]interface{}{
			"service": s.Name,
			"error":   err.Error(),
		})
	}
}

func (s *Service) stream(w http.ResponseWriter, r *http.Request, resp *filter.Response, stream Stream, rc *inject.RequestContext) {
	mediaType := contentType(resp)
	copyHeader(w, resp)
	w.WriteHeader(resp.Status)
	sink := chunked.NewResponseSink(w)
	err := stream.Attach(chunked.Target{
		Sink:      sink,
		Writer:    chunked.WriterFor(mediaType),
		MediaType: mediaType,
		Header:    resp.Header,
		Callback: chunked.ConnectionCallbackFunc(func() {
			s.log.Debug("client went away", map[string]interface{}{
				"service": s.Name,
				"url":     r.URL.String(),
			})
		}),
		Request: rc,
	})
	if err != nil {
		s.log.Warn("cannot stream response", map[string]interface{}{
			"service": s.Name,
			"error":   err.Error(),
		})
		rc.Release()
		return
	}
	select {
	case <-sink.Done():
	case <-r.Context().Done():
		_ = stream.Close()
		<-sink.Done()
	}
}

// contentType picks the response media type, setting the header when
// it is missing.  Strings and byte slices default to text/plain,
// everything else to JSON.
func contentType(resp *filter.Response) string {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		switch resp.Entity.(type) {
		case string, []byte:
			ct = "text/plain; charset=utf-8"
		default:
			ct = "application/json"
		}
		resp.Header.Set("Content-Type", ct)
	}
	return strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
}

func copyHeader(w http.ResponseWriter, resp *filter.Response) {
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
}
