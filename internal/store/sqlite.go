package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	log "github.com/translatd/translatd/internal/logging"
)

// SQLiteStore implements Store on a local SQLite file. Presets are written in
// the caller's transaction scope; history goes through a buffered write loop.
type SQLiteStore struct {
	db            *sql.DB
	recordChan    chan HistoryRecord
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	batchSize     int
	retentionDays int
	dbPath        string
}

const (
	sqliteDefaultBatchSize         = 100
	sqliteDefaultFlushInterval     = 5 * time.Second
	sqliteDefaultRetentionDays     = 30
	sqliteDefaultChannelBufferSize = 500
)

// Timestamps are stored as unix milliseconds so ordering and retention math
// never depend on the driver's TIMESTAMP parsing.
func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS presets (
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		last_success INTEGER NOT NULL,
		PRIMARY KEY (provider, model)
	);

	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		target_language TEXT NOT NULL DEFAULT '',
		failed INTEGER NOT NULL DEFAULT 0,
		error_code TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		requested_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_requested_at ON translations(requested_at);
	CREATE INDEX IF NOT EXISTS idx_translations_provider_model ON translations(provider, model);
	`

	_, err := db.Exec(schema)
	return err
}

// NewSQLite opens (creating if needed) the database at dbPath. The store must
// be started with Start() before history is persisted.
func NewSQLite(dbPath string, cfg Config) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = sqliteDefaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = sqliteDefaultFlushInterval
	}
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = sqliteDefaultRetentionDays
	}

	return &SQLiteStore{
		db:            db,
		recordChan:    make(chan HistoryRecord, sqliteDefaultChannelBufferSize),
		flushTicker:   time.NewTicker(flushInterval),
		cleanupTicker: time.NewTicker(24 * time.Hour),
		stopChan:      make(chan struct{}),
		batchSize:     batchSize,
		retentionDays: retentionDays,
		dbPath:        dbPath,
	}, nil
}

func (s *SQLiteStore) Start() error {
	s.wg.Add(2)
	go s.writeLoop()
	go s.cleanupLoop()
	return nil
}

func (s *SQLiteStore) Stop() error {
	if s == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.flushTicker.Stop()
		s.cleanupTicker.Stop()
		s.wg.Wait()
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

// DBPath returns the filesystem path to the SQLite database.
func (s *SQLiteStore) DBPath() string {
	if s == nil {
		return ""
	}
	return s.dbPath
}

func (s *SQLiteStore) UpsertPreset(ctx context.Context, provider, model string, lastSuccess time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presets (provider, model, last_success) VALUES (?, ?, ?)
		ON CONFLICT(provider, model) DO UPDATE SET last_success = excluded.last_success
	`, provider, model, lastSuccess.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert preset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePreset(ctx context.Context, provider, model string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE provider = ? AND model = ?`, provider, model)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadPresets(ctx context.Context) ([]PresetRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, model, last_success FROM presets ORDER BY last_success DESC, provider, model
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	defer rows.Close()

	var results []PresetRow
	for rows.Next() {
		var row PresetRow
		var millis int64
		if err := rows.Scan(&row.Provider, &row.Model, &millis); err != nil {
			return nil, err
		}
		row.LastSuccess = time.UnixMilli(millis)
		results = append(results, row)
	}
	return results, rows.Err()
}

// EnqueueHistory queues a record for the write loop. Never blocks; a full
// queue drops the record with a warning.
func (s *SQLiteStore) EnqueueHistory(record HistoryRecord) {
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

func (s *SQLiteStore) Flush(ctx context.Context) error {
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

func (s *SQLiteStore) RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, model, target_language, failed, error_code,
		       input_tokens, output_tokens, duration_ms, requested_at
		FROM translations
		ORDER BY requested_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var millis int64
		if err := rows.Scan(&r.ID, &r.Provider, &r.Model, &r.TargetLanguage, &r.Failed, &r.ErrorCode,
			&r.InputTokens, &r.OutputTokens, &r.DurationMS, &millis); err != nil {
			return nil, err
		}
		r.RequestedAt = time.UnixMilli(millis)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) HistoryTotals(ctx context.Context, since time.Time) (*Totals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN failed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN failed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0)
		FROM translations
		WHERE requested_at >= ?
	`, since.UnixMilli())

	var totals Totals
	if err := row.Scan(&totals.Requests, &totals.Successes, &totals.Failures, &totals.InputTokens, &totals.OutputTokens); err != nil {
		return nil, fmt.Errorf("failed to query history totals: %w", err)
	}
	return &totals, nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM translations WHERE requested_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) writeLoop() {
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
			// Drain remaining records
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

func (s *SQLiteStore) writeBatch(ctx context.Context, records []HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO translations (
			id, provider, model, target_language, failed, error_code,
			input_tokens, output_tokens, duration_ms, requested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.ID,
			record.Provider,
			record.Model,
			record.TargetLanguage,
			record.Failed,
			record.ErrorCode,
			record.InputTokens,
			record.OutputTokens,
			record.DurationMS,
			record.RequestedAt.UnixMilli(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert history record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) cleanupLoop() {
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
