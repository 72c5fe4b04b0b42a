// Package cache provides the in-memory response cache used by the request
// client.
//
// Every entry carries its own time-to-live. Expiry is checked lazily: an
// expired entry is ignored by Get but stays resident until it is overwritten,
// deleted or the cache is cleared. There is no background sweeper; callers
// that need bounded memory call Delete or Clear themselves.
//
// # Basic Usage
//
//	c := cache.New(5 * time.Second)
//
//	c.Put("/v1/users?id=7", user, 0) // 0 selects the default TTL
//
//	if v, ok := c.Get("/v1/users?id=7"); ok {
//		// fresh hit
//	}
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - reqflow_cache_hits_total - Reads that returned a fresh entry
//   - reqflow_cache_misses_total - Reads that found nothing usable
//   - reqflow_cache_expired_reads_total - Misses caused by an expired entry
//   - reqflow_cache_entries - Resident entries, expired ones included
package cache
