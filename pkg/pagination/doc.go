// Package pagination fetches every page of a paginated endpoint in parallel
// through a reqflow client.
//
// The upstream reports the page count in a response header (X-Pages by
// default). The first page is fetched alone to learn the count, then the
// remaining pages are fetched by a bounded pool of workers. Every page goes
// through the client, so concurrent fetches of the same page are deduplicated
// and cached like any other GET.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(pagination.NewClientFetcher(rf), pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "/v1/markets/10000002/orders", nil)
//
// Failed pages do not stop the batch: FetchAllPages returns the pages that
// succeeded together with an error joining every page failure.
package pagination
