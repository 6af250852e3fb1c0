package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	runsDispatchedTotal atomic.Uint64
	runsChargedTotal    atomic.Uint64
	runsFailedTotal     atomic.Uint64

	settleReceivedTotal atomic.Uint64
	settleDroppedTotal  atomic.Uint64

	assistantLatency = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunDispatched increments the dispatched counter.
func IncRunDispatched() {
	runsDispatchedTotal.Add(1)
}

// IncRunCharged increments the charged counter.
func IncRunCharged() {
	runsChargedTotal.Add(1)
}

// IncRunFailed increments the failed counter.
func IncRunFailed() {
	runsFailedTotal.Add(1)
}

// IncSettleReceived increments the settlement messages received counter.
func IncSettleReceived() {
	settleReceivedTotal.Add(1)
}

// IncSettleDropped increments the counter of messages deleted without settling,
// such as malformed payloads.
func IncSettleDropped() {
	settleDroppedTotal.Add(1)
}

// ObserveAssistantLatencyMs records one assistant round-trip in milliseconds.
func ObserveAssistantLatencyMs(value float64) {
	if value < 0 {
		value = 0
	}
	assistantLatency.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "runs_dispatched_total", "Total runs handed to the execution queue", runsDispatchedTotal.Load())
	writeCounter(&buf, "runs_charged_total", "Total runs settled and charged", runsChargedTotal.Load())
	writeCounter(&buf, "runs_failed_total", "Total runs that failed settlement", runsFailedTotal.Load())
	writeCounter(&buf, "settle_messages_received_total", "Total settlement messages received from the queue", settleReceivedTotal.Load())
	writeCounter(&buf, "settle_messages_dropped_total", "Total settlement messages deleted without settling", settleDroppedTotal.Load())
	writeHistogram(&buf, "assistant_latency_ms", "Assistant round-trip latency in milliseconds", assistantLatency.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
