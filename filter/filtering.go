package filter

import (
	"time"
)

// FilteringStage runs request filters.  The same stage type is used
// twice: NewPreMatchStage runs before the request is matched and
// NewPostMatchStage after.
//
// The pre-match stage pushes the response filtering stage before any
// request filter runs so that the global response filters see every
// response, including one produced by an aborting pre-match filter.
type FilteringStage struct {
	requestFilters  []Ranked[RequestFilter]
	responseFilters []Ranked[ResponseFilter]
	postMatch       bool
}

// NewPreMatchStage creates the stage that runs the pre-match request
// filters.  responseFilters are the global response filters.
func NewPreMatchStage(requestFilters []Ranked[RequestFilter], responseFilters []Ranked[ResponseFilter]) *FilteringStage {
	return &FilteringStage{
		requestFilters:  requestFilters,
		responseFilters: responseFilters,
	}
}

// NewPostMatchStage creates the stage that runs the global post-match
// request filters merged with the filters that matching attached to
// the request.
func NewPostMatchStage(requestFilters []Ranked[RequestFilter]) *FilteringStage {
	return &FilteringStage{
		requestFilters: requestFilters,
		postMatch:      true,
	}
}

func (s *FilteringStage) phase() string {
	if s.postMatch {
		return "post-match"
	}
	return "pre-match"
}

func (s *FilteringStage) Apply(pc *ProcessingContext) (Continuation, error) {
	var sorted []Ranked[RequestFilter]
	if s.postMatch {
		sorted = MergeAndSort(Ascending, s.requestFilters, pc.req.RequestFilters())
		pc.requestFilters = Names(sorted)
		pc.TriggerEvent(RequestMatched)
		defer pc.TriggerEvent(RequestFiltered)
	} else {
		pc.Push(&responseFilterStage{filters: s.responseFilters})
		sorted = MergeAndSort(Ascending, s.requestFilters)
	}

	start := time.Now()
	var processed int
	defer func() {
		pc.timer("filter.request." + s.phase()).UpdateSince(start)
		pc.log.Debug("request filters done", map[string]interface{}{
			"phase":     s.phase(),
			"processed": processed,
			"of":        len(sorted),
		})
	}()
	for _, f := range sorted {
		processed++
		err := runFilter(pc, "filter.request."+f.Name, f.Name, func() error {
			return f.Provider.Filter(pc.req)
		})
		if err != nil {
			return Continuation{}, err
		}
		if abort := pc.req.AbortResponse(); abort != nil {
			pc.aborted = true
			pc.counter("filter.aborted").Inc(1)
			pc.log.Debug("request aborted by filter", map[string]interface{}{
				"filter": f.Name,
				"phase":  s.phase(),
				"status": abort.Status,
			})
			return Finish(Respond(abort)), nil
		}
	}
	return Next(), nil
}

// runFilter times one filter call and turns errors and panics into
// MappableErrors
func runFilter(pc *ProcessingContext, metric string, name string, call func() error) (err error) {
	start := time.Now()
	defer func() {
		pc.timer(metric).UpdateSince(start)
		if err != nil {
			pc.log.Debug("filter failed", map[string]interface{}{
				"filter": name,
				"error":  err.Error(),
			})
			err = mappable(name, err)
		}
	}()
	defer recoverPanic(pc, name, &err)
	return call()
}

type responseFilterStage struct {
	filters []Ranked[ResponseFilter]
}

func (s *responseFilterStage) Apply(pc *ProcessingContext, resp *Response) (*Response, error) {
	sorted := MergeAndSort(Descending, s.filters, pc.req.ResponseFilters())
	pc.responseFilters = Names(sorted)
	pc.TriggerEvent(RespFiltersStart)
	defer pc.TriggerEvent(RespFiltersFinished)
	start := time.Now()
	defer func() {
		pc.timer("filter.response").UpdateSince(start)
	}()
	for _, f := range sorted {
		err := runFilter(pc, "filter.response."+f.Name, f.Name, func() error {
			return f.Provider.Filter(pc.req, resp)
		})
		if err != nil {
			return resp, err
		}
	}
	return resp, nil
}
