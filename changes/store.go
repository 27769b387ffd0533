package changes

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// stateKey names the tracker's row in the state table.
const stateKey = "seen_hashes"

// StateStore persists the tracker's serialized history. LoadState returns
// nil data and no error when nothing has been saved yet.
type StateStore interface {
	LoadState() ([]byte, error)
	SaveState(data []byte) error
}

// SQLiteStateStore keeps tracker state in a key/value table.
type SQLiteStateStore struct {
	db *sql.DB
}

// NewSQLiteStateStore opens (and if needed creates) the state database at
// dbPath.
func NewSQLiteStateStore(dbPath string) (*SQLiteStateStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStateStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the state table if it doesn't exist.
func (s *SQLiteStateStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracker_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStateStore) Close() error {
	return s.db.Close()
}

// LoadState returns the saved history, or nil when none exists.
func (s *SQLiteStateStore) LoadState() ([]byte, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM tracker_state WHERE key = ?", stateKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tracker state: %w", err)
	}
	return []byte(value), nil
}

// SaveState replaces the saved history.
func (s *SQLiteStateStore) SaveState(data []byte) error {
	query := "INSERT OR REPLACE INTO tracker_state (key, value) VALUES (?, ?)"
	if _, err := s.db.Exec(query, stateKey, string(data)); err != nil {
		return fmt.Errorf("failed to save tracker state: %w", err)
	}
	return nil
}

// MemoryStateStore keeps state in memory. The zero value is ready to use.
type MemoryStateStore struct {
	mu   sync.Mutex
	data []byte
}

// LoadState returns a copy of the stored bytes.
func (m *MemoryStateStore) LoadState() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

// SaveState stores a copy of data.
func (m *MemoryStateStore) SaveState(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}
