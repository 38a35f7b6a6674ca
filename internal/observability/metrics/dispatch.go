// Package metrics defines standardised metric emission for the review
// pipeline's webhook and dispatch lifecycle.
package metrics

import (
	"time"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DispatchMetric captures one webhook job's trip through the dispatch runner.
type DispatchMetric struct {
	Platform   string
	Outcome    string // dispatched, skipped_by_gate, abandoned, failed
	Transition string // completed, failed, discarded
	Result     string
	Duration   time.Duration
}

// EmitDispatchLifecycle emits standardised dispatch lifecycle metrics.
func EmitDispatchLifecycle(sink statsd.Sink, in DispatchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"platform":   in.Platform,
		"outcome":    in.Outcome,
		"transition": in.Transition,
		"result":     in.Result,
	}

	sink.Count("webhook_job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("webhook_job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitQueueDepth reports queue depth per lifecycle state as gauges.
func EmitQueueDepth(sink statsd.Sink, pending, running, failed int) {
	if sink == nil {
		return
	}
	sink.Gauge("webhook_queue.pending", float64(pending), nil)
	sink.Gauge("webhook_queue.running", float64(running), nil)
	sink.Gauge("webhook_queue.failed", float64(failed), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
