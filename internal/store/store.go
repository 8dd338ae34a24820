// Package store provides SQLite-backed persistence for resolved thumbnails,
// scoped to browsing sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register the sqlite database/sql driver.
)

// Open is part of the store package API.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite behaves best with a single connection for this workload.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;")
	if err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return db, nil
}

// Init is part of the store package API.
func Init(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS thumbs (
	session_id TEXT NOT NULL,
	page_url TEXT NOT NULL,
	image_url TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, page_url)
);

CREATE INDEX IF NOT EXISTS thumbs_created_at ON thumbs(created_at);
`

	_, err := db.ExecContext(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	return nil
}

// SessionThumbs is the durable thumbnail tier for one browsing session. The
// stored image_url is '' when the page resolved to no image; a missing row
// means the page has not been resolved this session.
type SessionThumbs struct {
	db        *sql.DB
	sessionID string
}

// ForSession binds db to one session's thumbnail rows.
func ForSession(db *sql.DB, sessionID string) *SessionThumbs {
	return &SessionThumbs{db: db, sessionID: sessionID}
}

// Get returns the stored image URL for pageURL and whether a row exists.
func (s *SessionThumbs) Get(ctx context.Context, pageURL string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT image_url FROM thumbs WHERE session_id = ? AND page_url = ?",
		s.sessionID, pageURL).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select thumb: %w", err)
	}
	return value, true, nil
}

// Set records the resolution for pageURL. An existing row keeps its value:
// once resolved, a key is final for the session.
func (s *SessionThumbs) Set(ctx context.Context, pageURL, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO thumbs (session_id, page_url, image_url, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(session_id, page_url) DO NOTHING
`, s.sessionID, pageURL, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert thumb: %w", err)
	}
	return nil
}

// SweepExpired deletes thumbnail rows older than ttl and reports how many
// went away. Sessions expire wholesale; there is no per-key expiry.
func SweepExpired(ctx context.Context, db *sql.DB, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := db.ExecContext(ctx, "DELETE FROM thumbs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired thumbs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count swept thumbs: %w", err)
	}
	return n, nil
}
