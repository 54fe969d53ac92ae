// Package metrics holds the Prometheus collectors shared by the monitor components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lending_monitor"

var (
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_calls_total",
		Help:      "Contract reads and block queries issued, by network, method and status",
	}, []string{"network", "method", "status"})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_call_duration_seconds",
		Help:      "Latency of RPC calls in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "method"})

	BlockHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "block_height",
		Help:      "Latest block height observed per network",
	}, []string{"network"})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rpc_connections",
		Help:      "Number of live network connections",
	})

	AdapterFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_fetches_total",
		Help:      "Adapter invocations by protocol, network and outcome (ok, partial, error, unsupported)",
	}, []string{"protocol", "network", "outcome"})

	PoolsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pools_tracked",
		Help:      "Distinct pools held in history",
	})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Alerts emitted by kind and severity",
	}, []string{"kind", "severity"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled by route and status code",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
