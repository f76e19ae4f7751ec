// Package sqlite provides SQLite-backed implementations of the
// storage.DocumentStore and storage.Catalog interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/grouporder/internal/storage"
)

// Ensure SQLiteStore implements the storage interfaces
var (
	_ storage.DocumentStore = (*SQLiteStore)(nil)
	_ storage.Catalog       = (*SQLiteStore)(nil)
)

// SQLiteStore implements storage.DocumentStore and storage.Catalog using SQLite.
// Change notifications are fanned out in-process, so watchers only see
// writes made through this store value.
type SQLiteStore struct {
	db   *sql.DB
	feed *storage.Feed
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; SQLite would otherwise report SQLITE_BUSY
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, feed: storage.NewFeed()}, nil
}

// Close stops all watchers and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.feed.Close()
	return s.db.Close()
}

// Create persists a new order document.
func (s *SQLiteStore) Create(ctx context.Context, id string, doc []byte) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, data, revision, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, string(doc), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return classify("failed to insert document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, id)
	}

	s.feed.Publish(storage.Snapshot{ID: id, Data: doc, Exists: true, Revision: 1, UpdatedAt: now})
	return nil
}

// Get retrieves an order document by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (storage.Snapshot, error) {
	return getSnapshot(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSnapshot(ctx context.Context, q queryer, id string) (storage.Snapshot, error) {
	var (
		data      string
		revision  int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx,
		"SELECT data, revision, updated_at FROM orders WHERE id = ?",
		id,
	).Scan(&data, &revision, &updatedAt)
	if err == sql.ErrNoRows {
		return storage.Snapshot{ID: id}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return storage.Snapshot{ID: id}, classify("failed to get document", err)
	}
	return storage.Snapshot{
		ID:        id,
		Data:      []byte(data),
		Exists:    true,
		Revision:  revision,
		UpdatedAt: time.Unix(0, updatedAt),
	}, nil
}

// Update overwrites top-level fields of a document inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields map[string]json.RawMessage) error {
	return s.mutate(ctx, id, func(doc []byte) ([]byte, error) {
		return storage.MergeFields(doc, fields)
	})
}

// ArrayUnion appends values to array fields unless already present.
func (s *SQLiteStore) ArrayUnion(ctx context.Context, id string, values map[string][]json.RawMessage) error {
	return s.mutate(ctx, id, func(doc []byte) ([]byte, error) {
		return storage.UnionArrays(doc, values)
	})
}

// mutate runs a read-modify-write of one document in a transaction and
// publishes the result after commit.
func (s *SQLiteStore) mutate(ctx context.Context, id string, apply func([]byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := getSnapshot(ctx, tx, id)
	if err != nil {
		return err
	}

	next, err := apply(current.Data)
	if err != nil {
		return fmt.Errorf("failed to apply update: %w", err)
	}

	now := time.Now()
	revision := current.Revision + 1
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET data = ?, revision = ?, updated_at = ? WHERE id = ?",
		string(next), revision, now.UnixNano(), id,
	); err != nil {
		return classify("failed to update document", err)
	}

	if err := tx.Commit(); err != nil {
		return classify("failed to commit transaction", err)
	}

	s.feed.Publish(storage.Snapshot{ID: id, Data: next, Exists: true, Revision: revision, UpdatedAt: now})
	return nil
}

// Delete removes an order document.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := getSnapshot(ctx, tx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id); err != nil {
		return classify("failed to delete document", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("failed to commit transaction", err)
	}

	s.feed.Publish(storage.Snapshot{ID: id, Revision: current.Revision + 1, UpdatedAt: time.Now()})
	return nil
}

// List returns all order documents, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]storage.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data, revision, updated_at FROM orders ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, classify("failed to list documents", err)
	}
	defer rows.Close()

	var snapshots []storage.Snapshot
	for rows.Next() {
		var (
			snap      storage.Snapshot
			data      string
			updatedAt int64
		)
		if err := rows.Scan(&snap.ID, &data, &snap.Revision, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		snap.Data = []byte(data)
		snap.Exists = true
		snap.UpdatedAt = time.Unix(0, updatedAt)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return snapshots, nil
}

// Watch registers fn for changes to one document and delivers the current
// state first. A missing document is delivered with Exists=false.
func (s *SQLiteStore) Watch(ctx context.Context, id string, fn func(storage.Snapshot)) (func(), error) {
	w, cancel := s.feed.Subscribe(id, fn)

	current, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		cancel()
		return nil, err
	}
	w.Offer(current)
	return cancel, nil
}

// classify wraps err, tagging read-only failures with storage.ErrReadOnly.
func classify(msg string, err error) error {
	var serr *msqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_READONLY {
		return fmt.Errorf("%s: %w: %v", msg, storage.ErrReadOnly, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
