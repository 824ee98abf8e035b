package endpoint

import (
	"context"
	"net/http"
	"reflect"
	"sync"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/filter"
	"github.com/eclipse-ee4j/jersey-sub005/paramconv"
)

// ResourceMethod handles a matched request.  params holds the request
// parameters that were decoded into P with paramconv.  The result may
// be a *filter.Response, a chunked.Output to stream, any other entity
// (sent with 200 OK), or nil (204 No Content).
type ResourceMethod[P any] func(ctx context.Context, req *filter.Request, params P) (any, error)

// Resource turns fn into an endpoint.  Converters for the parameter
// fields of P are looked up in im when the first request arrives, and
// again on later requests until the lookup succeeds.  im may be nil to use the
// built-in converters only.  Parameters that cannot be converted fail
// the request with 400 Bad Request.
func Resource[P any](im inject.InjectionManager, fn ResourceMethod[P]) filter.Endpoint {
	var lock sync.Mutex
	var decoder *paramconv.Decoder
	t := inject.TypeOf[P]()
	// failed builds are retried on the next request
	getDecoder := func(ctx context.Context) (*paramconv.Decoder, error) {
		lock.Lock()
		defer lock.Unlock()
		if decoder != nil {
			return decoder, nil
		}
		d, err := paramconv.NewDecoder(ctx, im, t)
		if err != nil {
			return nil, err
		}
		decoder = d
		return d, nil
	}
	return filter.EndpointFunc(func(pc *filter.ProcessingContext) (*filter.Response, error) {
		req := pc.Request()
		var params P
		if t.Kind() == reflect.Struct {
			d, err := getDecoder(pc.Context())
			if err != nil {
				return nil, err
			}
			if err := d.Decode(paramconv.RequestSource(req), &params); err != nil {
				return nil, err
			}
		}
		result, err := fn(pc.Context(), req, params)
		if err != nil {
			return nil, err
		}
		switch r := result.(type) {
		case *filter.Response:
			return r, nil
		case nil:
			return filter.NewResponse(http.StatusNoContent, nil), nil
		default:
			return filter.NewResponse(http.StatusOK, r), nil
		}
	})
}
