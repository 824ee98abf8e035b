package filter

import "time"

// EventType is a point in request processing that listeners hear about
type EventType int

const (
	Start EventType = iota
	MatchingStart
	RequestMatched
	RequestFiltered
	ResourceMethodStart
	ResourceMethodFinished
	RespFiltersStart
	RespFiltersFinished
	OnException
	ExceptionMapped
	Finished
)

var eventNames = map[EventType]string{
	Start:                  "START",
	MatchingStart:          "MATCHING_START",
	RequestMatched:         "REQUEST_MATCHED",
	RequestFiltered:        "REQUEST_FILTERED",
	ResourceMethodStart:    "RESOURCE_METHOD_START",
	ResourceMethodFinished: "RESOURCE_METHOD_FINISHED",
	RespFiltersStart:       "RESP_FILTERS_START",
	RespFiltersFinished:    "RESP_FILTERS_FINISHED",
	OnException:            "ON_EXCEPTION",
	ExceptionMapped:        "EXCEPTION_MAPPED",
	Finished:               "FINISHED",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Event is a snapshot of the processing state when an event fires
type Event struct {
	Type     EventType
	Time     time.Time
	Request  *Request
	Response *Response
	Err      error
	// RequestFilters and ResponseFilters are the names of the filters
	// chosen for this request, once known
	RequestFilters  []string
	ResponseFilters []string
	// Aborted is true once a request filter aborted the request
	Aborted bool
}

// Listener hears about every event of every request
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }
