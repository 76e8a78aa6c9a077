// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes: total and successful generation counts
//   - streams/frames:     streaming calls and decoded frames
//   - tokens:             prompt/completion token totals
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	requests         atomic.Int64
	successes        atomic.Int64
	streams          atomic.Int64
	frames           atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRequest records one generation request.
func (mc *MetricsCollector) RecordRequest(success bool, _ time.Duration) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordStream records the start of a streaming generation.
func (mc *MetricsCollector) RecordStream() { mc.streams.Add(1) }

// RecordFrame records one decoded stream frame.
func (mc *MetricsCollector) RecordFrame() { mc.frames.Add(1) }

// RecordTokens records token usage for one request.
func (mc *MetricsCollector) RecordTokens(prompt, completion int) {
	mc.promptTokens.Add(int64(prompt))
	mc.completionTokens.Add(int64(completion))
}

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":          mc.requests.Load(),
		"successes":         mc.successes.Load(),
		"streams":           mc.streams.Load(),
		"frames":            mc.frames.Load(),
		"prompt_tokens":     mc.promptTokens.Load(),
		"completion_tokens": mc.completionTokens.Load(),
	}
}
