/*
Package endpoint serves resources over net/http with gorilla mux.

A Service routes with a mux.Router and runs each request through the
filter chain: the pre-match filters, route matching, the post-match
filters (global and name-bound), and the resource.  Resource builds
an endpoint from a function whose parameters are decoded with
paramconv.  A resource that returns a chunked.Output is streamed.

An App ties start and stop of services to the InjectionManager:
the Start hook completes registration and then starts services; the
Shutdown hook shuts the manager down.
*/
package endpoint
