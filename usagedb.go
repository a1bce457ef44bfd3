package autoquiz

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteUsageStore is the durable UsageStore. The counter key is
// (identity, usage_date) with the date stored as ISO-8601 TEXT, which
// compares correctly against other date strings at the storage boundary.
type SQLiteUsageStore struct {
	db *sql.DB
}

// OpenUsageStore opens (and migrates) the usage database at dbPath.
func OpenUsageStore(dbPath string) (*SQLiteUsageStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	// One connection serializes writers; concurrent upserts otherwise race
	// into SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping usage database: %w", err)
	}

	query := `CREATE TABLE IF NOT EXISTS usage (
		identity TEXT NOT NULL,
		usage_date TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (identity, usage_date)
	)`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage table: %w", err)
	}

	return &SQLiteUsageStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteUsageStore) Close() error {
	return s.db.Close()
}

// Increment performs the compare inside a single upsert statement, so two
// concurrent requests racing for the last slot serialize in the database:
// the conditional UPDATE affects zero rows once the limit is reached.
func (s *SQLiteUsageStore) Increment(ctx context.Context, identity, date string, limit int) (bool, int, error) {
	if limit <= 0 {
		return false, 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (identity, usage_date, count) VALUES (?, ?, 1)
		ON CONFLICT(identity, usage_date)
		DO UPDATE SET count = count + 1 WHERE usage.count < ?`,
		identity, date, limit,
	)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment usage: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, 0, nil
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT count FROM usage WHERE identity = ? AND usage_date = ?",
		identity, date,
	).Scan(&count)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read usage count: %w", err)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

// Prune opportunistically deletes rows older than the given date. Stale
// rows are harmless (they simply stop matching today's key), so failures
// here are logged and swallowed.
func (s *SQLiteUsageStore) Prune(ctx context.Context, before string) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM usage WHERE usage_date < ?", before); err != nil {
		log.Printf("Failed to prune usage rows: %v", err)
	}
}
