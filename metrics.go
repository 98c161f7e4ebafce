// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from the client.
// Implement it to integrate with a monitoring system; see the promcollector
// package for a Prometheus implementation.
type MetricsCollector interface {
	// RecordCacheOp is called after each cache operation. op is one of
	// "put", "get" or "remove".
	RecordCacheOp(op string, duration time.Duration, err error)

	// RecordTask is called after each compute task.
	RecordTask(task string, duration time.Duration, err error)

	// RecordDial is called after each connection attempt.
	RecordDial(node string, err error)

	// RecordPayload is called for each request payload sent. compressed
	// reports whether the frame was compressed.
	RecordPayload(bytes int, compressed bool)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCacheOp(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordTask(string, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDial(string, error)                   {}
func (NoopMetricsCollector) RecordPayload(int, bool)                    {}

// BasicMetricsCollector keeps simple in-memory counters.
type BasicMetricsCollector struct {
	PutCount           atomic.Int64
	GetCount           atomic.Int64
	RemoveCount        atomic.Int64
	CacheErrors        atomic.Int64
	CacheTotalNanos    atomic.Int64
	TaskCount          atomic.Int64
	TaskErrors         atomic.Int64
	TaskTotalNanos     atomic.Int64
	DialCount          atomic.Int64
	DialErrors         atomic.Int64
	PayloadBytes       atomic.Int64
	CompressedFrames   atomic.Int64
	UncompressedFrames atomic.Int64
}

// RecordCacheOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheOp(op string, duration time.Duration, err error) {
	switch op {
	case "put":
		b.PutCount.Add(1)
	case "get":
		b.GetCount.Add(1)
	case "remove":
		b.RemoveCount.Add(1)
	}
	b.CacheTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CacheErrors.Add(1)
	}
}

// RecordTask implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTask(_ string, duration time.Duration, err error) {
	b.TaskCount.Add(1)
	b.TaskTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TaskErrors.Add(1)
	}
}

// RecordDial implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDial(_ string, err error) {
	b.DialCount.Add(1)
	if err != nil {
		b.DialErrors.Add(1)
	}
}

// RecordPayload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPayload(bytes int, compressed bool) {
	b.PayloadBytes.Add(int64(bytes))
	if compressed {
		b.CompressedFrames.Add(1)
	} else {
		b.UncompressedFrames.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (b *BasicMetricsCollector) Stats() BasicMetricsStats {
	ops := b.PutCount.Load() + b.GetCount.Load() + b.RemoveCount.Load()
	return BasicMetricsStats{
		PutCount:           b.PutCount.Load(),
		GetCount:           b.GetCount.Load(),
		RemoveCount:        b.RemoveCount.Load(),
		CacheErrors:        b.CacheErrors.Load(),
		CacheAvgNanos:      avg(b.CacheTotalNanos.Load(), ops),
		TaskCount:          b.TaskCount.Load(),
		TaskErrors:         b.TaskErrors.Load(),
		TaskAvgNanos:       avg(b.TaskTotalNanos.Load(), b.TaskCount.Load()),
		DialCount:          b.DialCount.Load(),
		DialErrors:         b.DialErrors.Load(),
		PayloadBytes:       b.PayloadBytes.Load(),
		CompressedFrames:   b.CompressedFrames.Load(),
		UncompressedFrames: b.UncompressedFrames.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount           int64
	GetCount           int64
	RemoveCount        int64
	CacheErrors        int64
	CacheAvgNanos      int64
	TaskCount          int64
	TaskErrors         int64
	TaskAvgNanos       int64
	DialCount          int64
	DialErrors         int64
	PayloadBytes       int64
	CompressedFrames   int64
	UncompressedFrames int64
}
