package datafeed

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const watchlistSchema = `
CREATE TABLE IF NOT EXISTS scanner_watchlists (
	name     TEXT    NOT NULL,
	ticker   TEXT    NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (name, ticker)
);

CREATE INDEX IF NOT EXISTS idx_scanner_watchlists_name ON scanner_watchlists(name, position);
`

// WatchlistStore reads and writes named watchlists kept in postgres.
type WatchlistStore struct {
	db *sql.DB
}

// OpenWatchlistStore connects to postgres and makes sure the watchlist table exists.
func OpenWatchlistStore(ctx context.Context, dsn string) (*WatchlistStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewWatchlistStore(db)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("watchlist database connected")
	return s, nil
}

func NewWatchlistStore(db *sql.DB) *WatchlistStore {
	return &WatchlistStore{db: db}
}

func (s *WatchlistStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, watchlistSchema); err != nil {
		return fmt.Errorf("failed to create watchlist schema: %w", err)
	}
	return nil
}

// Tickers returns the watchlist in its stored order. An unknown name yields an empty list.
func (s *WatchlistStore) Tickers(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker FROM scanner_watchlists WHERE name = $1 ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist %s: %w", name, err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func (s *WatchlistStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM scanner_watchlists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Save replaces the stored watchlist with tickers, keeping their order.
func (s *WatchlistStore) Save(ctx context.Context, name string, tickers []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scanner_watchlists WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to clear watchlist %s: %w", name, err)
	}
	for i, t := range tickers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scanner_watchlists (name, ticker, position) VALUES ($1, $2, $3)`,
			name, t, i); err != nil {
			return fmt.Errorf("failed to store %s in %s: %w", t, name, err)
		}
	}
	return tx.Commit()
}

func (s *WatchlistStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

func (s *WatchlistStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
