// Package marketdata provides the sqlite-backed candle store that
// implements domain.MarketDataProvider. The engine only ever sees the
// interface; ingestion (REST backfill, websocket stream) writes through
// UpsertCandles.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/aristath/advisor/internal/domain"
)

// Store is a candle store on a single sqlite database
type Store struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// NewStore opens (creating if needed) the candle database at dbPath.
// WAL mode keeps concurrent readers off the writers' backs.
func NewStore(dbPath string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	s := &Store{
		conn: conn,
		path: dbPath,
		log:  log.With().Str("component", "candle_store").Logger(),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (instrument, timeframe, ts)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate candle store: %w", err)
	}
	return nil
}

// GetCandles implements domain.MarketDataProvider: the trailing
// lookback candles at or before end, ascending. Fewer rows than
// lookback fail with ErrDataUnavailable.
func (s *Store) GetCandles(ctx context.Context, instrument string, timeframe domain.Timeframe, end time.Time, lookback int) (*domain.CandleSeries, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: non-positive lookback %d", domain.ErrDataUnavailable, lookback)
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE instrument = ? AND timeframe = ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT ?
	`, instrument, string(timeframe), end.UTC().Unix(), lookback)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", domain.ErrDataUnavailable, err)
	}
	defer rows.Close()

	descending := make([]domain.Candle, 0, lookback)
	for rows.Next() {
		var ts int64
		var c domain.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", domain.ErrDataUnavailable, err)
		}
		c.Time = time.Unix(ts, 0).UTC()
		descending = append(descending, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	if len(descending) < lookback {
		return nil, fmt.Errorf("%w: %w: %s %s has %d of %d bars before %s",
			domain.ErrDataUnavailable, domain.ErrInsufficientHistory,
			instrument, timeframe, len(descending), lookback, end.UTC().Format(time.RFC3339))
	}

	ascending := make([]domain.Candle, len(descending))
	for i, c := range descending {
		ascending[len(descending)-1-i] = c
	}
	return domain.NewCandleSeries(instrument, timeframe, ascending)
}

// UpsertCandles inserts or replaces candles in one transaction.
// Invalid candles reject the whole batch.
func (s *Store) UpsertCandles(ctx context.Context, instrument string, timeframe domain.Timeframe, candles []domain.Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("rejecting batch for %s: %w", instrument, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (instrument, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, instrument, string(timeframe), c.Time.UTC().Unix(),
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to upsert candle at %s: %w", c.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candle batch: %w", err)
	}
	return nil
}

// Count returns the number of stored candles for the pair
func (s *Store) Count(ctx context.Context, instrument string, timeframe domain.Timeframe) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candles WHERE instrument = ? AND timeframe = ?
	`, instrument, string(timeframe)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return n, nil
}

// LatestTime returns the newest stored bar time for the pair, or false
// when none exist
func (s *Store) LatestTime(ctx context.Context, instrument string, timeframe domain.Timeframe) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.conn.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM candles WHERE instrument = ? AND timeframe = ?
	`, instrument, string(timeframe)).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read latest candle time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}
