// Package views keeps per-page view counters in SQLite.
package views

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go_caption/internal/engine"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// maxPageLen bounds the page key.
const maxPageLen = 200

// ErrBadPage is returned for empty or oversized page keys.
var ErrBadPage = fmt.Errorf("%w: page must be 1-%d characters", engine.ErrInvalidInput, maxPageLen)

// Store is a view counter backed by one SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the counter database at path.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("views: mkdir %s: %w", filepath.Dir(path), err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("views: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("views: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS page_views (
		page       TEXT PRIMARY KEY,
		count      INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`)
	return err
}

func checkPage(page string) (string, error) {
	page = strings.TrimSpace(page)
	if page == "" || len(page) > maxPageLen {
		return "", ErrBadPage
	}
	return page, nil
}

// Incr adds one view to page and returns the new total.
func (s *Store) Incr(ctx context.Context, page string) (int64, error) {
	page, err := checkPage(page)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var n int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO page_views (page, count, updated_at) VALUES (?, 1, ?)
		 ON CONFLICT(page) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		 RETURNING count`,
		page, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("views: incr %s: %w", page, err)
	}
	engine.IncrViewIncrements()
	return n, nil
}

// Get returns the total for page; unknown pages have zero views.
func (s *Store) Get(ctx context.Context, page string) (int64, error) {
	page, err := checkPage(page)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx, `SELECT count FROM page_views WHERE page = ?`, page).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("views: get %s: %w", page, err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
