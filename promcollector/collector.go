// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package promcollector exports client metrics to Prometheus.
package promcollector

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/gridclient"
)

const namespace = "gridclient"

// Collector implements gridclient.MetricsCollector with Prometheus metrics.
type Collector struct {
	cacheLatency *prometheus.HistogramVec
	taskLatency  *prometheus.HistogramVec
	dials        *prometheus.CounterVec
	payloadBytes prometheus.Counter
	frames       *prometheus.CounterVec
}

var _ gridclient.MetricsCollector = (*Collector)(nil)

// New creates a collector and registers its metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_operation_seconds",
			Help:      "Latency of cache operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		taskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_seconds",
			Help:      "Latency of compute task executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task", "status"}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dials_total",
			Help:      "Connection attempts per node",
		}, []string{"node", "status"}),
		payloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Request payload bytes written after compression",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Request frames written",
		}, []string{"compressed"}),
	}

	var errs []error
	for _, col := range []prometheus.Collector{c.cacheLatency, c.taskLatency, c.dials, c.payloadBytes, c.frames} {
		errs = append(errs, reg.Register(col))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCacheOp implements gridclient.MetricsCollector.
func (c *Collector) RecordCacheOp(op string, d time.Duration, err error) {
	c.cacheLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordTask implements gridclient.MetricsCollector.
func (c *Collector) RecordTask(task string, d time.Duration, err error) {
	c.taskLatency.WithLabelValues(task, status(err)).Observe(d.Seconds())
}

// RecordDial implements gridclient.MetricsCollector.
func (c *Collector) RecordDial(node string, err error) {
	c.dials.WithLabelValues(node, status(err)).Inc()
}

// RecordPayload implements gridclient.MetricsCollector.
func (c *Collector) RecordPayload(bytes int, compressed bool) {
	c.payloadBytes.Add(float64(bytes))
	if compressed {
		c.frames.WithLabelValues("true").Inc()
	} else {
		c.frames.WithLabelValues("false").Inc()
	}
}
