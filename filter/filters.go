package filter

import (
	"reflect"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/muir/reflectutils"
)

// DefaultRank is the rank of filters that do not declare a priority
const DefaultRank = 5000

// RequestFilter sees the request before the resource does.  A filter
// that wants to stop processing calls req.AbortWith.
type RequestFilter interface {
	Filter(req *Request) error
}

// ResponseFilter sees the response before it is written
type ResponseFilter interface {
	Filter(req *Request, resp *Response) error
}

// PreMatching marks request filters that run before the request is
// matched to a resource.
type PreMatching interface {
	PreMatching()
}

type RequestFilterFunc func(req *Request) error

func (f RequestFilterFunc) Filter(req *Request) error { return f(req) }

type ResponseFilterFunc func(req *Request, resp *Response) error

func (f ResponseFilterFunc) Filter(req *Request, resp *Response) error { return f(req, resp) }

var (
	requestFilterType  = inject.TypeOf[RequestFilter]()
	responseFilterType = inject.TypeOf[ResponseFilter]()
)

func init() {
	inject.RegisterProviderContract(requestFilterType, responseFilterType)
}

// Ranked is a provider with its rank.  Name is used in logs, metrics
// and monitoring events.
type Ranked[T any] struct {
	Provider T
	Rank     int
	Name     string
}

// NewRanked wraps p.  If p implements inject.Prioritized its priority
// is the rank, otherwise DefaultRank.
func NewRanked[T any](p T) Ranked[T] {
	return Ranked[T]{
		Provider: p,
		Rank:     RankOf(p),
		Name:     nameOf(p),
	}
}

// WithRank wraps p with an explicit rank
func WithRank[T any](p T, rank int) Ranked[T] {
	r := NewRanked(p)
	r.Rank = rank
	return r
}

// RankOf returns the priority of p or DefaultRank
func RankOf(p any) int {
	if pr, ok := p.(inject.Prioritized); ok {
		return pr.Priority()
	}
	return DefaultRank
}

func nameOf(p any) string {
	if p == nil {
		return "<nil>"
	}
	return reflectutils.TypeName(reflect.TypeOf(p))
}

func isPreMatching(p any) bool {
	_, ok := p.(PreMatching)
	return ok
}

// Providers strips the ranks
func Providers[T any](ranked []Ranked[T]) []T {
	p := make([]T, len(ranked))
	for i, r := range ranked {
		p[i] = r.Provider
	}
	return p
}

// Names lists the names of ranked providers
func Names[T any](ranked []Ranked[T]) []string {
	n := make([]string, len(ranked))
	for i, r := range ranked {
		n[i] = r.Name
	}
	return n
}
