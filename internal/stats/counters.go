// Package stats keeps live translation counters and writes per-request
// history through the store. Counters answer instantly; history is advisory
// and lands in batches.
package stats

import (
	"sync/atomic"

	"github.com/translatd/translatd/internal/store"
)

// Counters provides lock-free counters updated on every translate call.
type Counters struct {
	requests     atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

// Record increments counters for one finished call. Lock-free.
func (c *Counters) Record(failed bool, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.requests.Add(1)
	if failed {
		c.failures.Add(1)
	} else {
		c.successes.Add(1)
	}
	c.inputTokens.Add(inputTokens)
	c.outputTokens.Add(outputTokens)
}

// Snapshot returns a point-in-time view of the counters.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Requests:     c.requests.Load(),
		Successes:    c.successes.Load(),
		Failures:     c.failures.Load(),
		InputTokens:  c.inputTokens.Load(),
		OutputTokens: c.outputTokens.Load(),
	}
}

// Bootstrap seeds the counters from aggregated history. Called once at
// startup so restarts do not zero the dashboard.
func (c *Counters) Bootstrap(t store.Totals) {
	if c == nil {
		return
	}
	c.requests.Store(t.Requests)
	c.successes.Store(t.Successes)
	c.failures.Store(t.Failures)
	c.inputTokens.Store(t.InputTokens)
	c.outputTokens.Store(t.OutputTokens)
}

// Snapshot holds an immutable view of the counter values.
type Snapshot struct {
	Requests     int64 `json:"requests"`
	Successes    int64 `json:"successes"`
	Failures     int64 `json:"failures"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
