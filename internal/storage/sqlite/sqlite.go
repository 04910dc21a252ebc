// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	hub *storage.Hub
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers; snapshot reads happen after commit.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.hub = storage.NewHub(s.loadSnapshot)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Subscribe registers fn to receive snapshots for userID.
func (s *SQLiteStore) Subscribe(ctx context.Context, userID string, fn func(storage.Snapshot)) (storage.Subscription, error) {
	return s.hub.Subscribe(ctx, userID, fn)
}

// loadSnapshot reads every group the user belongs to and every expense the
// user takes part in or that belongs to one of those groups.
func (s *SQLiteStore) loadSnapshot(ctx context.Context, userID string) (storage.Snapshot, error) {
	groups, err := s.ListGroupsForUser(ctx, userID)
	if err != nil {
		return storage.Snapshot{}, err
	}

	expenses, err := s.queryExpenses(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id IN (SELECT expense_id FROM expense_payers WHERE user_id = ?)
		   OR id IN (SELECT expense_id FROM expense_participants WHERE user_id = ?)
		   OR group_id IN (SELECT group_id FROM group_members WHERE user_id = ?)
		ORDER BY date DESC, id`,
		userID, userID, userID,
	)
	if err != nil {
		return storage.Snapshot{}, err
	}

	return storage.Snapshot{Expenses: expenses, Groups: groups}, nil
}
