// Package store persists preset recency and translation history behind a
// DSN-selected backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/translatd/translatd/internal/config"
)

// PresetRow is one durable (provider, model) pair with its recency stamp.
type PresetRow struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	LastSuccess time.Time `json:"last_success"`
}

// HistoryRecord is one completed translate call.
type HistoryRecord struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	TargetLanguage string    `json:"target_language"`
	Failed         bool      `json:"failed"`
	ErrorCode      string    `json:"error_code,omitempty"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	DurationMS     int64     `json:"duration_ms"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Totals aggregates history over a window.
type Totals struct {
	Requests     int64 `json:"requests"`
	Successes    int64 `json:"successes"`
	Failures     int64 `json:"failures"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Store is the persistence contract for presets and history.
// Implementations must be safe for concurrent use.
type Store interface {
	// UpsertPreset records a successful (provider, model) pair. The write is
	// synchronous; callers rely on it being durable when this returns.
	UpsertPreset(ctx context.Context, provider, model string, lastSuccess time.Time) error

	// DeletePreset removes a pair that fell off the per-provider cap.
	DeletePreset(ctx context.Context, provider, model string) error

	// LoadPresets returns every pair, most recent success first.
	LoadPresets(ctx context.Context) ([]PresetRow, error)

	// EnqueueHistory queues one history record without blocking. Records may
	// be dropped under pressure; history is advisory.
	EnqueueHistory(record HistoryRecord)

	// Flush forces pending history records to storage.
	Flush(ctx context.Context) error

	// RecentHistory returns up to limit records, newest first.
	RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error)

	// HistoryTotals aggregates history since the given time.
	HistoryTotals(ctx context.Context, since time.Time) (*Totals, error)

	// Cleanup removes history older than the given time.
	Cleanup(ctx context.Context, before time.Time) (int64, error)

	// Start begins background workers (write loop, cleanup loop).
	Start() error

	// Stop shuts the backend down, flushing pending history.
	Stop() error
}

// Config holds backend initialization parameters.
type Config struct {
	// DSN selects the backend (sqlite://path or postgres://...).
	DSN string

	// BatchSize is the number of history records written per transaction.
	BatchSize int

	// FlushInterval is how often buffered history is written out.
	FlushInterval time.Duration

	// RetentionDays is how many days of history to keep.
	RetentionDays int
}

// New creates the backend the DSN names.
func New(cfg Config) (Store, error) {
	parsed, err := config.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, fmt.Errorf("store DSN is required (use sqlite:// or postgres://)")
	}

	switch parsed.Backend {
	case "postgres":
		return NewPostgres(parsed.URL, cfg)
	case "sqlite":
		return NewSQLite(parsed.Path, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", parsed.Backend)
	}
}
