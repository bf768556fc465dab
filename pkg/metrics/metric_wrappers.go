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
	"github.com/prometheus/client_golang/prometheus"
)

// Enabled indicates whether metrics collection is enabled.
// Set once at startup via SetEnabled() before Init().
var Enabled bool

// Counter is satisfied by prometheus.Counter and by the noop counter
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is satisfied by the prometheus.CounterVec wrapper and by the noop vector
type CounterVec interface {
	WithLabelValues(labels ...string) Counter
}

// Histogram is satisfied by prometheus.Histogram and by the noop histogram
type Histogram interface {
	Observe(float64)
}

// HistogramVec is satisfied by the prometheus.HistogramVec wrapper and by the noop vector
type HistogramVec interface {
	WithLabelValues(labels ...string) Histogram
}

// Gauge is satisfied by prometheus.Gauge and by the noop gauge
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

// GaugeVec is satisfied by the prometheus.GaugeVec wrapper and by the noop vector
type GaugeVec interface {
	WithLabelValues(labels ...string) Gauge
	Reset()
}

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopCounter{} }

type noopHistogram struct{}

func (noopHistogram) Observe(float64) {}

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopHistogram{} }

type noopGauge struct{}

func (noopGauge) Set(float64) {}
func (noopGauge) Inc()        {}
func (noopGauge) Dec()        {}

type noopGaugeVec struct{}

func (noopGaugeVec) WithLabelValues(...string) Gauge { return noopGauge{} }
func (noopGaugeVec) Reset()                          {}

type counterVecWrapper struct {
	*prometheus.CounterVec
}

func (c *counterVecWrapper) WithLabelValues(labels ...string) Counter {
	return c.CounterVec.WithLabelValues(labels...)
}

type histogramVecWrapper struct {
	*prometheus.HistogramVec
}

func (h *histogramVecWrapper) WithLabelValues(labels ...string) Histogram {
	return h.HistogramVec.WithLabelValues(labels...)
}

type gaugeVecWrapper struct {
	*prometheus.GaugeVec
}

func (g *gaugeVecWrapper) WithLabelValues(labels ...string) Gauge {
	return g.GaugeVec.WithLabelValues(labels...)
}

// IsEnabled returns whether metrics collection is enabled
func IsEnabled() bool {
	return Enabled
}

// SetEnabled sets whether metrics collection is enabled.
// This must be called before Init() for proper effect.
func SetEnabled(e bool) {
	Enabled = e
}

func newCounterVec(opts prometheus.CounterOpts, labelNames []string) CounterVec {
	if Enabled {
		return &counterVecWrapper{prometheus.NewCounterVec(opts, labelNames)}
	}
	return noopCounterVec{}
}

func newCounter(opts prometheus.CounterOpts) Counter {
	if Enabled {
		return prometheus.NewCounter(opts)
	}
	return noopCounter{}
}

func newHistogramVec(opts prometheus.HistogramOpts, labelNames []string) HistogramVec {
	if Enabled {
		return &histogramVecWrapper{prometheus.NewHistogramVec(opts, labelNames)}
	}
	return noopHistogramVec{}
}

func newHistogram(opts prometheus.HistogramOpts) Histogram {
	if Enabled {
		return prometheus.NewHistogram(opts)
	}
	return noopHistogram{}
}

func newGaugeVec(opts prometheus.GaugeOpts, labelNames []string) GaugeVec {
	if Enabled {
		return &gaugeVecWrapper{prometheus.NewGaugeVec(opts, labelNames)}
	}
	return noopGaugeVec{}
}

func newGauge(opts prometheus.GaugeOpts) Gauge {
	if Enabled {
		return prometheus.NewGauge(opts)
	}
	return noopGauge{}
}

// newGaugeFunc returns nil when disabled; register skips nil collectors
func newGaugeFunc(opts prometheus.GaugeOpts, f func() float64) prometheus.Collector {
	if Enabled {
		return prometheus.NewGaugeFunc(opts, f)
	}
	return nil
}
