// Package preset remembers which (provider, model) pairs have completed a
// translation and reorders model lists so proven pairs surface first.
package preset

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/provider"
	"github.com/translatd/translatd/internal/store"
)

// Entry is one remembered (provider, model) pair.
type Entry struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	LastSuccess time.Time `json:"last_success"`
}

// trackerState is the immutable snapshot for copy-on-write updates. Entries
// are ordered most recent success first, all providers interleaved.
type trackerState struct {
	entries []Entry
}

func (s *trackerState) clone() *trackerState {
	if s == nil {
		return &trackerState{}
	}
	return &trackerState{entries: slices.Clone(s.entries)}
}

func (s *trackerState) remove(vendor, model string) {
	for i, e := range s.entries {
		if e.Provider == vendor && e.Model == model {
			s.entries = slices.Delete(s.entries, i, i+1)
			return
		}
	}
}

// evictOver drops the oldest entries of vendor beyond limit and returns them.
func (s *trackerState) evictOver(vendor string, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	var evicted []Entry
	kept := make([]Entry, 0, len(s.entries))
	seen := 0
	for _, e := range s.entries {
		if e.Provider == vendor {
			seen++
			if seen > limit {
				evicted = append(evicted, e)
				continue
			}
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return evicted
}

// Tracker keeps the ordered preset view in memory with copy-on-write
// snapshots. Reads load the atomic pointer; writes lock writerMu, clone,
// modify, and store.
type Tracker struct {
	state    atomic.Pointer[trackerState]
	writerMu sync.Mutex
	store    store.Store

	// capPerProvider bounds remembered pairs per vendor; 0 means unbounded.
	capPerProvider int
}

func NewTracker(st store.Store, capPerProvider int) *Tracker {
	t := &Tracker{store: st, capPerProvider: capPerProvider}
	t.state.Store(&trackerState{})
	return t
}

// Load replaces the in-memory view with the store contents, enforcing the
// per-provider cap in case it shrank since the last run. Call once at startup.
func (t *Tracker) Load(ctx context.Context) error {
	rows, err := t.store.LoadPresets(ctx)
	if err != nil {
		return err
	}

	next := &trackerState{entries: make([]Entry, 0, len(rows))}
	for _, row := range rows {
		next.entries = append(next.entries, Entry{
			Provider:    row.Provider,
			Model:       row.Model,
			LastSuccess: row.LastSuccess,
		})
	}

	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	var evicted []Entry
	for _, vendor := range vendorsOf(next.entries) {
		evicted = append(evicted, next.evictOver(vendor, t.capPerProvider)...)
	}
	t.state.Store(next)
	t.deleteEvicted(ctx, evicted)
	return nil
}

func vendorsOf(entries []Entry) []string {
	var vendors []string
	for _, e := range entries {
		if !slices.Contains(vendors, e.Provider) {
			vendors = append(vendors, e.Provider)
		}
	}
	return vendors
}

// RecordSuccess marks the pair as proven. The durable write happens before
// this returns; the in-memory view is refreshed even when the write fails, so
// a broken store degrades ordering durability without breaking translations.
func (t *Tracker) RecordSuccess(ctx context.Context, vendor, model string) error {
	now := time.Now()

	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	persistErr := t.store.UpsertPreset(ctx, vendor, model, now)

	next := t.state.Load().clone()
	next.remove(vendor, model)
	next.entries = slices.Insert(next.entries, 0, Entry{Provider: vendor, Model: model, LastSuccess: now})
	evicted := next.evictOver(vendor, t.capPerProvider)
	t.state.Store(next)

	t.deleteEvicted(ctx, evicted)
	return persistErr
}

func (t *Tracker) deleteEvicted(ctx context.Context, evicted []Entry) {
	for _, e := range evicted {
		if err := t.store.DeletePreset(ctx, e.Provider, e.Model); err != nil {
			log.WithError(err).Warnf("failed to delete evicted preset %s/%s", e.Provider, e.Model)
		}
	}
}

// Ordered returns every remembered pair, most recent success first.
func (t *Tracker) Ordered() []Entry {
	return slices.Clone(t.state.Load().entries)
}

// OrderedFor returns the remembered pairs of one vendor, most recent first.
func (t *Tracker) OrderedFor(vendor string) []Entry {
	var out []Entry
	for _, e := range t.state.Load().entries {
		if e.Provider == vendor {
			out = append(out, e)
		}
	}
	return out
}

// MergeIntoModelList moves the vendor's remembered models to the front of the
// list, most recent success first, marking them as presets. Models the vendor
// no longer advertises are not resurrected, the relative order of the
// remaining models is untouched, and the set never changes.
func (t *Tracker) MergeIntoModelList(vendor string, models []provider.Model) []provider.Model {
	ordered := t.OrderedFor(vendor)
	if len(ordered) == 0 || len(models) == 0 {
		return models
	}

	firstIndex := make(map[string]int, len(models))
	for i, m := range models {
		if _, dup := firstIndex[m.ID]; !dup {
			firstIndex[m.ID] = i
		}
	}

	promoted := make(map[int]bool, len(ordered))
	out := make([]provider.Model, 0, len(models))
	for _, e := range ordered {
		if idx, ok := firstIndex[e.Model]; ok && !promoted[idx] {
			m := models[idx]
			m.Preset = true
			out = append(out, m)
			promoted[idx] = true
		}
	}
	for i, m := range models {
		if !promoted[i] {
			out = append(out, m)
		}
	}
	return out
}
