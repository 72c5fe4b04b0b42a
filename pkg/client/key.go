package client

import "github.com/Sternrassler/reqflow/pkg/transport"

// Key derives the request key shared by deduplication and caching: the URL
// followed by the sorted form encoding of params.
//
// Example:
//
//	Key("/v1/orders", transport.Params{"region": 2, "type": "all"})
//	// "/v1/orders?region=2&type=all"
func Key(url string, params transport.Params) string {
	return transport.AppendQuery(url, params.Encode())
}
