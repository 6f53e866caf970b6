package bibliography

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key  TEXT PRIMARY KEY COLLATE NOCASE,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fields (
	key   TEXT NOT NULL COLLATE NOCASE,
	name  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (key, name)
);
`

// Store is an Index backed by a SQLite database, for bibliographies that are
// too large to re-parse on every start.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path. Use ":memory:"
// for a private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bibliography store: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bibliography schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Import copies every entry of lib into the store, replacing existing
// entries with the same key. Returns the number of entries written.
func (s *Store) Import(lib *Library) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for _, key := range lib.Keys() {
		record, _ := lib.Lookup(key)
		if _, err := tx.Exec(`DELETE FROM fields WHERE key = ?`, key); err != nil {
			return 0, fmt.Errorf("failed to clear %q: %w", key, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO entries (key, kind) VALUES (?, ?)`, key, lib.Type(key)); err != nil {
			return 0, fmt.Errorf("failed to store %q: %w", key, err)
		}
		for name, value := range record {
			if _, err := tx.Exec(`INSERT INTO fields (key, name, value) VALUES (?, ?, ?)`, key, name, value); err != nil {
				return 0, fmt.Errorf("failed to store %q field %q: %w", key, name, err)
			}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return count, nil
}

// Lookup returns the record for key. Keys compare case-insensitively.
func (s *Store) Lookup(key string) (Record, error) {
	rows, err := s.db.Query(`SELECT name, value FROM fields WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", key, err)
	}
	defer rows.Close()

	record := Record{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", key, err)
		}
		record[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if len(record) == 0 {
		var kind string
		err := s.db.QueryRow(`SELECT kind FROM entries WHERE key = ?`, key).Scan(&kind)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %q: %w", key, err)
		}
	}
	return record, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
