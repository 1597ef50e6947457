package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/translatd/translatd/internal/store"
)

type captureStore struct {
	mu       sync.Mutex
	records  []store.HistoryRecord
	totals   *store.Totals
	totalErr error
}

func (c *captureStore) UpsertPreset(context.Context, string, string, time.Time) error { return nil }
func (c *captureStore) DeletePreset(context.Context, string, string) error            { return nil }
func (c *captureStore) LoadPresets(context.Context) ([]store.PresetRow, error)        { return nil, nil }

func (c *captureStore) EnqueueHistory(record store.HistoryRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
}

func (c *captureStore) Flush(context.Context) error { return nil }

func (c *captureStore) RecentHistory(context.Context, int) ([]store.HistoryRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.HistoryRecord, len(c.records))
	copy(out, c.records)
	return out, nil
}

func (c *captureStore) HistoryTotals(context.Context, time.Time) (*store.Totals, error) {
	return c.totals, c.totalErr
}

func (c *captureStore) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }
func (c *captureStore) Start() error                                      { return nil }
func (c *captureStore) Stop() error                                       { return nil }

func TestRecordUpdatesCountersAndHistory(t *testing.T) {
	cs := &captureStore{}
	rec := NewRecorder(cs)

	rec.Record(Sample{
		Provider:       "gemini",
		Model:          "gemini-2.0-flash",
		TargetLanguage: "French",
		InputTokens:    12,
		OutputTokens:   30,
		Duration:       250 * time.Millisecond,
	})
	rec.Record(Sample{
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		TargetLanguage: "German",
		ErrorCode:      "provider_rate_limited",
		Duration:       40 * time.Millisecond,
	})

	snap := rec.Counters()
	if snap.Requests != 2 || snap.Successes != 1 || snap.Failures != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.InputTokens != 12 || snap.OutputTokens != 30 {
		t.Fatalf("unexpected token totals: %+v", snap)
	}

	if len(cs.records) != 2 {
		t.Fatalf("expected two history rows, got %d", len(cs.records))
	}
	first := cs.records[0]
	if first.Failed || first.TargetLanguage != "French" || first.DurationMS != 250 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	second := cs.records[1]
	if !second.Failed || second.ErrorCode != "provider_rate_limited" {
		t.Fatalf("unexpected second row: %+v", second)
	}
	if second.RequestedAt.IsZero() {
		t.Fatal("RequestedAt should be stamped")
	}
}

func TestBootstrapSeedsCountersFromHistory(t *testing.T) {
	cs := &captureStore{totals: &store.Totals{
		Requests:     10,
		Successes:    8,
		Failures:     2,
		InputTokens:  100,
		OutputTokens: 250,
	}}
	rec := NewRecorder(cs)
	rec.Bootstrap(context.Background())

	snap := rec.Counters()
	if snap.Requests != 10 || snap.Successes != 8 || snap.Failures != 2 {
		t.Fatalf("counters not seeded: %+v", snap)
	}

	rec.Record(Sample{Provider: "gemini", Model: "m", TargetLanguage: "Spanish"})
	if got := rec.Counters().Requests; got != 11 {
		t.Fatalf("expected 11 requests after one more call, got %d", got)
	}
}

func TestBootstrapFailureLeavesZeroCounters(t *testing.T) {
	cs := &captureStore{totalErr: errors.New("no such table")}
	rec := NewRecorder(cs)
	rec.Bootstrap(context.Background())

	if snap := rec.Counters(); snap != (Snapshot{}) {
		t.Fatalf("expected zeroed counters, got %+v", snap)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(Sample{Provider: "gemini"})
	rec.Bootstrap(context.Background())
	if snap := rec.Counters(); snap != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
