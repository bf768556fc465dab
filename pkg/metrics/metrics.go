/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "dlmctl"
)

var (
	once     sync.Once
	registry *prometheus.Registry

	StreamConnectionState       GaugeVec
	StreamConnectAttemptsTotal  CounterVec
	StreamReconnectsTotal       Counter
	StreamReconnectDelaySeconds Histogram
	StreamEventsReceivedTotal   CounterVec
	StreamDecodeErrorsTotal     Counter
	StreamHeartbeatsTotal       CounterVec
	StreamConsumerErrorsTotal   CounterVec
	CredentialRefreshesTotal    CounterVec
	CredentialStoreErrorsTotal  CounterVec
	HTTPRequestsTotal           CounterVec
	HTTPRequestDurationSeconds  HistogramVec
	MockServerStreamClients     Gauge
	MockServerStreamFramesTotal CounterVec

	Up          Gauge
	Info        GaugeVec
	Goroutines  prometheus.Collector
	MemoryBytes GaugeVec
)

func init() {
	// Noop instances until Init() runs so callers never see nil metrics
	initMetrics()
}

// initMetrics initializes all metric variables.
// This must be called after SetEnabled() to ensure proper noop behavior when disabled.
func initMetrics() {
	StreamConnectionState = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connection_state",
			Help:      "Current event-stream connection state (1 for the active state)",
		},
		[]string{"state"},
	)

	StreamConnectAttemptsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connect_attempts_total",
			Help:      "Total number of event-stream connection attempts by result",
		},
		[]string{"result"},
	)

	StreamReconnectsTotal = newCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_scheduled_total",
			Help:      "Total number of scheduled event-stream reconnects",
		},
	)

	StreamReconnectDelaySeconds = newHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_reconnect_delay_seconds",
			Help:      "Delay applied before reconnecting the event stream",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30},
		},
	)

	StreamEventsReceivedTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_received_total",
			Help:      "Total number of event-stream frames received by category",
		},
		[]string{"category"},
	)

	StreamDecodeErrorsTotal = newCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_decode_errors_total",
			Help:      "Total number of inbound frames dropped because they could not be decoded",
		},
	)

	StreamHeartbeatsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_heartbeats_total",
			Help:      "Total number of heartbeat pings by result",
		},
		[]string{"result"},
	)

	StreamConsumerErrorsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_consumer_errors_total",
			Help:      "Total number of consumer failures by category and kind",
		},
		[]string{"category", "kind"},
	)

	CredentialRefreshesTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_refreshes_total",
			Help:      "Total number of credential refresh attempts by result",
		},
		[]string{"result"},
	)

	CredentialStoreErrorsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_store_errors_total",
			Help:      "Total number of credential persistence errors by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	HTTPRequestsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of REST API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDurationSeconds = newHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST API request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "endpoint"},
	)

	MockServerStreamClients = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mock_server_stream_clients",
			Help:      "Number of event-stream clients connected to the mock server",
		},
	)

	MockServerStreamFramesTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mock_server_stream_frames_total",
			Help:      "Total number of frames pushed by the mock server by type",
		},
		[]string{"type"},
	)

	Up = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the process is up (1 = up)",
		},
	)

	Info = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Build information",
		},
		[]string{"version", "component"},
	)

	Goroutines = newGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		},
		func() float64 { return float64(runtime.NumGoroutine()) },
	)

	MemoryBytes = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Memory usage in bytes",
		},
		[]string{"type"},
	)
}

// register adds a real collector to the registry; noop metrics are skipped
func register(v any) {
	if !Enabled || v == nil {
		return
	}
	var c prometheus.Collector
	switch m := v.(type) {
	case *counterVecWrapper:
		c = m.CounterVec
	case *histogramVecWrapper:
		c = m.HistogramVec
	case *gaugeVecWrapper:
		c = m.GaugeVec
	case prometheus.Collector:
		c = m
	default:
		return
	}
	// Already registered is not an error for us
	_ = registry.Register(c)
}

func initRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, m := range []any{
		StreamConnectionState,
		StreamConnectAttemptsTotal,
		StreamReconnectsTotal,
		StreamReconnectDelaySeconds,
		StreamEventsReceivedTotal,
		StreamDecodeErrorsTotal,
		StreamHeartbeatsTotal,
		StreamConsumerErrorsTotal,
		CredentialRefreshesTotal,
		CredentialStoreErrorsTotal,
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		MockServerStreamClients,
		MockServerStreamFramesTotal,
		Up,
		Info,
		Goroutines,
		MemoryBytes,
	} {
		register(m)
	}
}

// Init initializes the metrics registry and all metrics.
// SetEnabled() must be called before Init().
func Init() *prometheus.Registry {
	once.Do(func() {
		initMetrics()

		if !Enabled {
			registry = prometheus.NewRegistry()
			return
		}
		initRegistry()
	})

	return registry
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return Init()
	}
	return registry
}

// UpdateMemoryMetrics updates memory-related metrics
func UpdateMemoryMetrics() {
	if !Enabled {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryBytes.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryBytes.WithLabelValues("heap_sys").Set(float64(m.HeapSys))
	MemoryBytes.WithLabelValues("stack_inuse").Set(float64(m.StackInuse))
}
