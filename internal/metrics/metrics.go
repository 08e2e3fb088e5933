// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "door_access"

var (
	// DirectoryLoads counts device directory fetches by result.
	DirectoryLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directory_loads_total",
		Help:      "Device directory fetches by result.",
	}, []string{"source", "result"})

	// Scans counts NFC scan round-trips by result (success, failed, stale).
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nfc_scans_total",
		Help:      "NFC scan round-trips by result.",
	}, []string{"result"})

	// DoorSubmissions counts per-door credential submissions.
	DoorSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "door_submissions_total",
		Help:      "Per-door credential submissions by method and result.",
	}, []string{"method", "result"})

	// Submissions counts whole-assignment submissions by outcome.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Assignment submissions by aggregated outcome.",
	}, []string{"strategy", "outcome"})

	// HTTPRequests counts API requests by route template and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	// OpenWorkflows tracks the workflows currently held by the registry.
	OpenWorkflows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_workflows",
		Help:      "Credential assignment workflows currently open.",
	})
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultStale   = "stale"
)
