/*
Package filter runs container request and response filters around a
resource.

Request processing is a Chain of Stages: a pre-match FilteringStage, a
matching stage that picks the Endpoint, and a post-match FilteringStage.
Request filters run in ascending rank order.  Response filters run in
descending rank order after the endpoint, or after an abort:

	filters, _ := filter.Load(ctx, injectionManager)
	chain := filter.NewChain(filters.Stages(matcher), filter.WithLogger(log))
	resp, err := chain.Process(filter.FromHTTP(r))

Errors returned by filters are wrapped in MappableError and turned into
responses by an ErrorMapper.
*/
package filter
