package filter

import (
	"context"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

// Filters are the global filters of an application
type Filters struct {
	PreMatch  []Ranked[RequestFilter]
	PostMatch []Ranked[RequestFilter]
	Response  []Ranked[ResponseFilter]
}

// Load collects the filters bound with the inject.Custom qualifier, as
// the ProviderBinder binds them.  A binding rank, when set, overrides
// the filter's own priority.  Request filters that implement
// PreMatching go to the pre-match list.
func Load(ctx context.Context, im inject.InjectionManager) (Filters, error) {
	var filters Filters
	holders, err := im.GetAllServiceHolders(ctx, requestFilterType, inject.Custom)
	if err != nil {
		return filters, errors.Wrap(err, "load request filters")
	}
	for _, h := range holders {
		f, ok := h.Instance().(RequestFilter)
		if !ok {
			continue
		}
		r := ranked(f, h)
		if isPreMatching(f) {
			filters.PreMatch = append(filters.PreMatch, r)
		} else {
			filters.PostMatch = append(filters.PostMatch, r)
		}
	}
	holders, err = im.GetAllServiceHolders(ctx, responseFilterType, inject.Custom)
	if err != nil {
		return filters, errors.Wrap(err, "load response filters")
	}
	for _, h := range holders {
		if f, ok := h.Instance().(ResponseFilter); ok {
			filters.Response = append(filters.Response, ranked(f, h))
		}
	}
	return filters, nil
}

func ranked[T any](p T, h inject.ServiceHolder) Ranked[T] {
	r := NewRanked(p)
	if rank, ok := h.Ranked(); ok {
		r.Rank = rank
	}
	return r
}

// Stages returns the pre-match stage, the given matching stage, and
// the post-match stage, in order
func (f Filters) Stages(matching Stage) []Stage {
	return []Stage{
		NewPreMatchStage(f.PreMatch, f.Response),
		matching,
		NewPostMatchStage(f.PostMatch),
	}
}
