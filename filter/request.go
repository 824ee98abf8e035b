package filter

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

// Request is the in-flight request as seen by filters and resources.
// A request filter may abort the exchange by calling AbortWith.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	// Vars holds the path parameters once the request is matched
	Vars map[string]string
	// HTTP is the originating request, if there is one
	HTTP *http.Request

	ctx             context.Context
	lock            sync.Mutex
	abort           *Response
	properties      map[string]any
	requestFilters  []Ranked[RequestFilter]
	responseFilters []Ranked[ResponseFilter]
}

// NewRequest builds a Request that did not come from net/http
func NewRequest(ctx context.Context, method string, u *url.URL, header http.Header) *Request {
	if header == nil {
		header = make(http.Header)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: header,
		Vars:   map[string]string{},
		ctx:    ctx,
	}
}

// FromHTTP wraps r
func FromHTTP(r *http.Request) *Request {
	req := NewRequest(r.Context(), r.Method, r.URL, r.Header)
	req.HTTP = r
	return req
}

func (r *Request) Context() context.Context { return r.ctx }

// WithContext replaces the request's context
func (r *Request) WithContext(ctx context.Context) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ctx = ctx
}

// AbortWith stops request filtering.  The remaining request filters and
// the resource are skipped and resp becomes the response.  Response
// filters still run.
func (r *Request) AbortWith(resp *Response) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.abort = resp
}

// AbortResponse is the response given to AbortWith, or nil
func (r *Request) AbortResponse() *Response {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.abort
}

func (r *Request) Property(name string) (any, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	v, ok := r.properties[name]
	return v, ok
}

func (r *Request) SetProperty(name string, value any) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.properties == nil {
		r.properties = make(map[string]any)
	}
	r.properties[name] = value
}

// AddRequestFilter attaches a filter to this request only.  Filters
// added during matching run in the post-match phase, merged by rank
// with the global filters.
func (r *Request) AddRequestFilter(f Ranked[RequestFilter]) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.requestFilters = append(r.requestFilters, f)
}

// AddResponseFilter attaches a response filter to this request only
func (r *Request) AddResponseFilter(f Ranked[ResponseFilter]) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.responseFilters = append(r.responseFilters, f)
}

func (r *Request) RequestFilters() []Ranked[RequestFilter] {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Ranked[RequestFilter](nil), r.requestFilters...)
}

func (r *Request) ResponseFilters() []Ranked[ResponseFilter] {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Ranked[ResponseFilter](nil), r.responseFilters...)
}

// Response is what a resource, an abort, or error mapping produced.
// Entity is written by the transport; a *chunked.Output entity is
// streamed.
type Response struct {
	Status  int
	Header  http.Header
	Entity  any
	Request *Request
}

// NewResponse creates a response with an empty header
func NewResponse(status int, entity any) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Entity: entity,
	}
}
