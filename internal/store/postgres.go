package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	log "github.com/translatd/translatd/internal/logging"
)

// PostgresStore implements Store on PostgreSQL via pgx. Useful when several
// machines share one preset history.
type PostgresStore struct {
	pool          *pgxpool.Pool
	recordChan    chan HistoryRecord
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	batchSize     int
	retentionDays int
}

const (
	pgDefaultBatchSize         = 100
	pgDefaultFlushInterval     = 5 * time.Second
	pgDefaultRetentionDays     = 30
	pgDefaultChannelBufferSize = 500
)

// NewPostgres connects, verifies, and prepares the schema. The store must be
// started with Start() before history is persisted.
func NewPostgres(dsn string, cfg Config) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := ensurePostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = pgDefaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = pgDefaultFlushInterval
	}
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = pgDefaultRetentionDays
	}

	return &PostgresStore{
		pool:          pool,
		recordChan:    make(chan HistoryRecord, pgDefaultChannelBufferSize),
		flushTicker:   time.NewTicker(flushInterval),
		cleanupTicker: time.NewTicker(24 * time.Hour),
		stopChan:      make(chan struct{}),
		batchSize:     batchSize,
		retentionDays: retentionDays,
	}, nil
}

func ensurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS presets (
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		last_success TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (provider, model)
	);

	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		target_language TEXT NOT NULL DEFAULT '',
		failed BOOLEAN NOT NULL DEFAULT FALSE,
		error_code TEXT NOT NULL DEFAULT '',
		input_tokens BIGINT NOT NULL DEFAULT 0,
		output_tokens BIGINT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		requested_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_requested_at ON translations(requested_at);
	CREATE INDEX IF NOT EXISTS idx_translations_provider_model ON translations(provider, model);
	`

	_, err := pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Start() error {
	s.wg.Add(2)
	go s.writeLoop()
	go s.cleanupLoop()
	return nil
}

func (s *PostgresStore) Stop() error {
	if s == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.flushTicker.Stop()
		s.cleanupTicker.Stop()
		s.wg.Wait()
		if s.pool != nil {
			s.pool.Close()
		}
	})
	return nil
}

func (s *PostgresStore) UpsertPreset(ctx context.Context, provider, model string, lastSuccess time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO presets (provider, model, last_success) VALUES ($1, $2, $3)
		ON CONFLICT (provider, model) DO UPDATE SET last_success = EXCLUDED.last_success
	`, provider, model, lastSuccess)
	if err != nil {
		return fmt.Errorf("failed to upsert preset: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePreset(ctx context.Context, provider, model string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM presets WHERE provider = $1 AND model = $2`, provider, model)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadPresets(ctx context.Context) ([]PresetRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider, model, last_success FROM presets ORDER BY last_success DESC, provider, model
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	defer rows.Close()

	var results []PresetRow
	for rows.Next() {
		var row PresetRow
		if err := rows.Scan(&row.Provider, &row.Model, &row.LastSuccess); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *PostgresStore) EnqueueHistory(record HistoryRecord) {
	if s == nil {
		return
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	select {
	case s.recordChan <- record:
	default:
		log.Warnf("history queue full, dropping record for %s/%s", record.Provider, record.Model)
	}
}

func (s *PostgresStore) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}

	batch := make([]HistoryRecord, 0, s.batchSize)
	for {
		select {
		case record := <-s.recordChan:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				if err := s.writeBatch(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				return s.writeBatch(ctx, batch)
			}
			return nil
		}
	}
}

func (s *PostgresStore) RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, model, target_language, failed, error_code,
		       input_tokens, output_tokens, duration_ms, requested_at
		FROM translations
		ORDER BY requested_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Model, &r.TargetLanguage, &r.Failed, &r.ErrorCode,
			&r.InputTokens, &r.OutputTokens, &r.DurationMS, &r.RequestedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) HistoryTotals(ctx context.Context, since time.Time) (*Totals, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN failed = FALSE THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN failed = TRUE THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0)
		FROM translations
		WHERE requested_at >= $1
	`, since)

	var totals Totals
	if err := row.Scan(&totals.Requests, &totals.Successes, &totals.Failures, &totals.InputTokens, &totals.OutputTokens); err != nil {
		return nil, fmt.Errorf("failed to query history totals: %w", err)
	}
	return &totals, nil
}

func (s *PostgresStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM translations WHERE requested_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) writeLoop() {
	defer s.wg.Done()

	batch := make([]HistoryRecord, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.writeBatch(ctx, batch); err != nil {
			log.Errorf("failed to write history batch: %v", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case record := <-s.recordChan:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-s.flushTicker.C:
			flush()
		case <-s.stopChan:
			for {
				select {
				case record := <-s.recordChan:
					batch = append(batch, record)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *PostgresStore) writeBatch(ctx context.Context, records []HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO translations (
				id, provider, model, target_language, failed, error_code,
				input_tokens, output_tokens, duration_ms, requested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			record.ID,
			record.Provider,
			record.Model,
			record.TargetLanguage,
			record.Failed,
			record.ErrorCode,
			record.InputTokens,
			record.OutputTokens,
			record.DurationMS,
			record.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) cleanupLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.cleanupTicker.C:
			cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := s.Cleanup(ctx, cutoff)
			cancel()
			if err != nil {
				log.Errorf("failed to clean up old history: %v", err)
			} else if deleted > 0 {
				log.Infof("cleaned up %d history records older than %d days", deleted, s.retentionDays)
			}
		case <-s.stopChan:
			return
		}
	}
}
