package slab

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from an Array.
// Implement it to forward to a monitoring system.
type MetricsCollector interface {
	// RecordOpen is called after each Open, successful or not.
	RecordOpen(duration time.Duration, err error)

	// RecordSubarray is called after each Subarray call. bytes is the
	// size of the transferred region and fast reports whether the
	// transfer targeted the view's storage directly.
	RecordSubarray(bytes int, fast bool, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)                {}
func (NoopMetricsCollector) RecordSubarray(int, bool, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	OpenCount         atomic.Int64
	OpenErrors        atomic.Int64
	SubarrayCount     atomic.Int64
	SubarrayErrors    atomic.Int64
	SubarrayFallbacks atomic.Int64
	SubarrayBytes     atomic.Int64
	SubarrayNanos     atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordSubarray implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSubarray(bytes int, fast bool, duration time.Duration, err error) {
	b.SubarrayCount.Add(1)
	b.SubarrayNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SubarrayErrors.Add(1)
		return
	}
	if !fast {
		b.SubarrayFallbacks.Add(1)
	}
	b.SubarrayBytes.Add(int64(bytes))
}

// Stats returns a snapshot of the counters.
func (b *BasicMetricsCollector) Stats() BasicMetricsStats {
	s := BasicMetricsStats{
		OpenCount:         b.OpenCount.Load(),
		OpenErrors:        b.OpenErrors.Load(),
		SubarrayCount:     b.SubarrayCount.Load(),
		SubarrayErrors:    b.SubarrayErrors.Load(),
		SubarrayFallbacks: b.SubarrayFallbacks.Load(),
		SubarrayBytes:     b.SubarrayBytes.Load(),
	}
	if s.SubarrayCount > 0 {
		s.SubarrayAvgNanos = b.SubarrayNanos.Load() / s.SubarrayCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount         int64
	OpenErrors        int64
	SubarrayCount     int64
	SubarrayErrors    int64
	SubarrayFallbacks int64
	SubarrayBytes     int64
	SubarrayAvgNanos  int64
}
