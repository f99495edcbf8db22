// Package cache provides durable local persistence of the record replica.
//
// The cache is a key-value store over SQLite: each key maps to a JSON blob,
// and every save replaces the whole blob. The replica is always written and
// read as one unit; there is no partial or delta persistence.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/models"
)

// Storage keys. One blob for the record replica, one for the profile.
const (
	keyRecords = "chronicle.records"
	keyProfile = "chronicle.profile"
)

// Store is the durable local cache.
type Store struct {
	db *sql.DB
}

// Open opens the cache database under dataDir, creating it if needed.
// The database is opened with WAL mode and a single writer, matching
// SQLite's concurrency model.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chronicle.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (unixepoch())
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// put replaces the value under key.
func (s *Store) put(key string, value []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch())
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value); err != nil {
		return apperrors.Wrap(apperrors.ErrCache, "failed to persist "+key, err)
	}
	return nil
}

// get reads the value under key. Returns nil with no error if the key is
// absent.
func (s *Store) get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCache, "failed to read "+key, err)
	}
	return value, nil
}

// SaveRecords persists the full record replica, replacing any previous copy.
func (s *Store) SaveRecords(records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCache, "failed to encode records", err)
	}
	return s.put(keyRecords, data)
}

// LoadRecords reads the persisted record replica. Returns an empty slice if
// nothing has been persisted yet.
func (s *Store) LoadRecords() ([]models.Record, error) {
	data, err := s.get(keyRecords)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []models.Record{}, nil
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCache, "failed to decode records", err)
	}
	return records, nil
}

// SaveProfile persists the profile, replacing any previous copy.
func (s *Store) SaveProfile(profile *models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCache, "failed to encode profile", err)
	}
	return s.put(keyProfile, data)
}

// LoadProfile reads the persisted profile. Returns nil if no profile has
// been persisted yet.
func (s *Store) LoadProfile() (*models.Profile, error) {
	data, err := s.get(keyProfile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCache, "failed to decode profile", err)
	}
	return &profile, nil
}

// Clear removes all persisted state. Used for full account reset.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM kv"); err != nil {
		return apperrors.Wrap(apperrors.ErrCache, "failed to clear cache", err)
	}
	return nil
}
