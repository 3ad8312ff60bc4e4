package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendFile  = "file"
	backendRedis = "redis"
)

var (
	// StoreWrites tracks snapshots written by backend
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_store_writes_total",
			Help: "Total number of snapshots written",
		},
		[]string{"backend"}, // "file", "redis"
	)

	// StoreReads tracks snapshot reads by backend and result
	StoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_store_reads_total",
			Help: "Total number of snapshot reads",
		},
		[]string{"backend", "result"}, // result: "hit", "miss"
	)

	// SnapshotBytes tracks the encoded size of written snapshots
	SnapshotBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_store_snapshot_bytes",
			Help:    "Encoded size of written snapshots in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"backend"},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"}, // "write", "read", "save", "load", "delete"
	)
)
