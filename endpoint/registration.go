package endpoint

import (
	"net/url"

	"github.com/eclipse-ee4j/jersey-sub005/filter"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func (r *Registration) add(f func(m *mux.Route) *mux.Route) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.muxroutes = append(r.muxroutes, f)
	if r.route != nil {
		r.route = f(r.route)
		r.err = r.route.GetError()
	}
}

// Route returns the *mux.Route that has been registered to this endpoint, if possible.
func (r *Registration) Route() (*mux.Route, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.route == nil {
		return nil, errors.Errorf("registration is not complete for %s", r.path)
	}
	return r.route, nil
}

// Filter name-binds request filters to this endpoint.  They run in
// the post-match phase together with the global filters.
func (r *Registration) Filter(filters ...filter.RequestFilter) *Registration {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, f := range filters {
		r.requestFilters = append(r.requestFilters, filter.NewRanked(f))
	}
	return r
}

// ResponseFilter name-binds response filters to this endpoint
func (r *Registration) ResponseFilter(filters ...filter.ResponseFilter) *Registration {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, f := range filters {
		r.responseFilters = append(r.responseFilters, filter.NewRanked(f))
	}
	return r
}

func (r *Registration) filters() ([]filter.Ranked[filter.RequestFilter], []filter.Ranked[filter.ResponseFilter]) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.requestFilters, r.responseFilters
}

// Headers applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Headers(pairs ...string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Headers(pairs...) })
	return r
}

// Host applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Host(tpl string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Host(tpl) })
	return r
}

// MatcherFunc applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) MatcherFunc(f mux.MatcherFunc) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.MatcherFunc(f) })
	return r
}

// Methods applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Methods(methods ...string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Methods(methods...) })
	return r
}

// Name applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Name(name string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Name(name) })
	return r
}

// Queries applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Queries(pairs ...string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Queries(pairs...) })
	return r
}

// Schemes applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *Registration) Schemes(schemes ...string) *Registration {
	r.add(func(m *mux.Route) *mux.Route { return m.Schemes(schemes...) })
	return r
}

// GetError returns the route error, if any, once the endpoint is bound
func (r *Registration) GetError() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.err
}

// URL calls the mux.Route method of the same name on the route created for this endpoint.
func (r *Registration) URL(pairs ...string) (*url.URL, error) {
	route, err := r.Route()
	if err != nil {
		return nil, err
	}
	return route.URL(pairs...)
}
