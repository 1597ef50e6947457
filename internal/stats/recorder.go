package stats

import (
	"context"
	"time"

	log "github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/store"
)

// Sample describes one finished translate call.
type Sample struct {
	Provider       string
	Model          string
	TargetLanguage string
	// ErrorCode is empty on success.
	ErrorCode    string
	InputTokens  int64
	OutputTokens int64
	Duration     time.Duration
}

// Recorder pairs the live counters with durable history writes. Recording is
// fire-and-forget: a full queue or a broken store never fails the translation
// being recorded.
type Recorder struct {
	counters *Counters
	store    store.Store
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{counters: NewCounters(), store: st}
}

// Bootstrap seeds the counters from stored history. A query failure only
// warns; the relay starts with zeroed counters.
func (r *Recorder) Bootstrap(ctx context.Context) {
	if r == nil || r.store == nil {
		return
	}
	totals, err := r.store.HistoryTotals(ctx, time.Time{})
	if err != nil {
		log.WithError(err).Warnf("failed to bootstrap stats counters from history")
		return
	}
	if totals != nil {
		r.counters.Bootstrap(*totals)
	}
}

// Record updates the counters and enqueues a history row. Never blocks.
func (r *Recorder) Record(s Sample) {
	if r == nil {
		return
	}
	failed := s.ErrorCode != ""
	r.counters.Record(failed, s.InputTokens, s.OutputTokens)

	if r.store == nil {
		return
	}
	r.store.EnqueueHistory(store.HistoryRecord{
		Provider:       s.Provider,
		Model:          s.Model,
		TargetLanguage: s.TargetLanguage,
		Failed:         failed,
		ErrorCode:      s.ErrorCode,
		InputTokens:    s.InputTokens,
		OutputTokens:   s.OutputTokens,
		DurationMS:     s.Duration.Milliseconds(),
		RequestedAt:    time.Now(),
	})
}

// Counters returns the current counter snapshot.
func (r *Recorder) Counters() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return r.counters.Snapshot()
}

// RecentHistory returns the newest stored records, most recent first.
func (r *Recorder) RecentHistory(ctx context.Context, limit int) ([]store.HistoryRecord, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.RecentHistory(ctx, limit)
}
