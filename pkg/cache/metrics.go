package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks reads that returned a fresh entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqflow_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks reads that found no usable entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqflow_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// ExpiredReads tracks misses caused by a resident but expired entry
	ExpiredReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqflow_cache_expired_reads_total",
			Help: "Total number of reads that found an expired entry",
		},
	)

	// CacheEntries tracks resident entries, expired ones included
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqflow_cache_entries",
			Help: "Current number of resident response cache entries",
		},
	)
)
