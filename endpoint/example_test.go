package endpoint_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/endpoint"
	"github.com/eclipse-ee4j/jersey-sub005/filter"
	"github.com/eclipse-ee4j/jersey-sub005/locator"
	"github.com/gorilla/mux"
	metrics "github.com/rcrowley/go-metrics"
)

type helloParams struct {
	Name  string `param:"path,name=name"`
	Times int    `param:"query,name=times,default=1"`
}

// Example serves one resource with a path variable and a query
// parameter that has a default
func Example() {
	l := locator.New(locator.WithLogger(inject.NoLogger()))
	app := endpoint.NewApp("example", l, endpoint.WithAppLogger(inject.NoLogger()))
	router := mux.NewRouter()
	svc := endpoint.NewService("hello", app, router,
		endpoint.WithLogger(inject.NoLogger()),
		endpoint.WithFilterOptions(filter.WithRegistry(metrics.NewRegistry())))
	svc.RegisterEndpoint("/hello/{name}", endpoint.Resource(l,
		func(ctx context.Context, req *filter.Request, p helloParams) (any, error) {
			return strings.TrimSpace(strings.Repeat("hello "+p.Name+". ", p.Times)), nil
		})).Methods("GET")

	if err := app.Do(endpoint.Start); err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = app.Do(endpoint.Shutdown) }()

	for _, target := range []string{"/hello/world", "/hello/you?times=2", "/hello/you?times=many"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		fmt.Println(rec.Code, rec.Body.String())
	}
	// Output: 200 hello world.
	// 200 hello you. hello you.
	// 400 Bad Request
}
