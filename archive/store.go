// Package archive stores captured page text in a bounded, least recently
// accessed first SQLite archive.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrMetadataMismatch means the stored totals disagree with the entries.
	ErrMetadataMismatch = errors.New("archive metadata does not match entries")

	// ErrEmptyURL is returned when a put names no URL.
	ErrEmptyURL = errors.New("url is required")
)

const statsKey = "stats"

// Limits are the archive ceilings. Eviction trims to 90% of each.
type Limits struct {
	MaxEntries   int64
	MaxSizeBytes int64
}

// DefaultLimits holds 10,000 entries or 100 MiB.
var DefaultLimits = Limits{
	MaxEntries:   10000,
	MaxSizeBytes: 100 * 1024 * 1024,
}

func (l Limits) exceeded(entries, size int64) bool {
	return entries > l.MaxEntries || size > l.MaxSizeBytes
}

func (l Limits) targets() (entries, size int64) {
	return l.MaxEntries * 9 / 10, l.MaxSizeBytes * 9 / 10
}

// Entry is one archived capture of a URL within one minute.
type Entry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	Bucket     string    `json:"bucket"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// PutResult reports the outcome of a put. Failures are reported here rather
// than as an error.
type PutResult struct {
	Saved  bool   `json:"saved"`
	Bucket string `json:"bucket"`
	Error  string `json:"error,omitempty"`
}

// Stats summarizes the archive.
type Stats struct {
	TotalEntries   int64            `json:"total_entries"`
	TotalSizeBytes int64            `json:"total_size_bytes"`
	LastEviction   *time.Time       `json:"last_eviction,omitempty"`
	PerBucket      map[string]int64 `json:"per_bucket"`
}

type metadata struct {
	totalEntries   int64
	totalSizeBytes int64
	lastEviction   int64
}

// Option configures a Store.
type Option func(*Store)

// WithLimits sets the eviction ceilings.
func WithLimits(l Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store is the SQLite archive. Every mutation, including eviction, runs in a
// single transaction.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	limits Limits
	now    func() time.Time
	log    zerolog.Logger
}

// NewStore opens (and if needed creates) the archive at dbPath.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		limits: DefaultLimits,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables and indexes if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		content TEXT NOT NULL,
		bucket TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		accessed_at INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_url ON entries(url);
	CREATE INDEX IF NOT EXISTS idx_entries_bucket ON entries(bucket);
	CREATE INDEX IF NOT EXISTS idx_entries_accessed_at ON entries(accessed_at);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		total_entries INTEGER NOT NULL,
		total_size_bytes INTEGER NOT NULL,
		last_eviction INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO metadata (key, total_entries, total_size_bytes, last_eviction)
	VALUES ('stats', 0, 0, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Heartbeat reports whether the database is reachable.
func (s *Store) Heartbeat(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach archive: %w", err)
	}
	return nil
}

// MinuteBucket is the time unit that coalesces repeated saves of one URL.
func MinuteBucket(t time.Time) int64 {
	return t.UnixMilli() / 60000
}

// EntryID is the key of url's entry for the minute containing t.
func EntryID(url string, t time.Time) string {
	return fmt.Sprintf("%s_%d", url, MinuteBucket(t))
}

// Put upserts the entry for url in the current minute and then evicts if a
// ceiling is exceeded.
func (s *Store) Put(ctx context.Context, url, content, bucket string) PutResult {
	if url == "" {
		return PutResult{Saved: false, Bucket: bucket, Error: ErrEmptyURL.Error()}
	}
	if err := s.put(ctx, url, content, bucket); err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Failed to archive content")
		return PutResult{Saved: false, Bucket: bucket, Error: err.Error()}
	}
	return PutResult{Saved: true, Bucket: bucket}
}

func (s *Store) put(ctx context.Context, url, content, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := EntryID(url, now)
	size := int64(len(content))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldSize int64
	exists := true
	err = tx.QueryRowContext(ctx, "SELECT size_bytes FROM entries WHERE id = ?", id).Scan(&oldSize)
	if err == sql.ErrNoRows {
		exists = false
	} else if err != nil {
		return fmt.Errorf("failed to query entry: %w", err)
	}

	meta, err := readMetadata(ctx, tx)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO entries (id, url, content, bucket, created_at, accessed_at, size_bytes)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		bucket = excluded.bucket,
		accessed_at = excluded.accessed_at,
		size_bytes = excluded.size_bytes
	`
	stamp := now.UnixNano()
	if _, err := tx.ExecContext(ctx, query, id, url, content, bucket, stamp, stamp, size); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	if exists {
		meta.totalSizeBytes += size - oldSize
	} else {
		meta.totalEntries++
		meta.totalSizeBytes += size
	}

	if s.limits.exceeded(meta.totalEntries, meta.totalSizeBytes) {
		if err := s.evict(ctx, tx, &meta, now); err != nil {
			return err
		}
	}

	if err := writeMetadata(ctx, tx, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	return nil
}

// evict removes entries in ascending access order until both totals are at
// or below target.
func (s *Store) evict(ctx context.Context, tx *sql.Tx, meta *metadata, now time.Time) error {
	targetEntries, targetSize := s.limits.targets()

	rows, err := tx.QueryContext(ctx, "SELECT id, size_bytes FROM entries ORDER BY accessed_at ASC, created_at ASC, id ASC")
	if err != nil {
		return fmt.Errorf("failed to scan entries for eviction: %w", err)
	}

	var victims []string
	entries, size := meta.totalEntries, meta.totalSizeBytes
	for rows.Next() && (entries > targetEntries || size > targetSize) {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		victims = append(victims, id)
		entries--
		size -= n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to scan entries for eviction: %w", err)
	}
	rows.Close()

	for _, id := range victims {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to evict entry: %w", err)
		}
	}

	s.log.Info().
		Int("evicted", len(victims)).
		Int64("freed_bytes", meta.totalSizeBytes-size).
		Msg("Evicted archive entries")

	meta.totalEntries = entries
	meta.totalSizeBytes = size
	meta.lastEviction = now.UnixNano()
	return nil
}

// GetByURL returns every entry for url, oldest first, and marks them as
// accessed.
func (s *Store) GetByURL(ctx context.Context, url string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entries, err := queryEntries(ctx, tx, "WHERE url = ?", url)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx, "UPDATE entries SET accessed_at = ? WHERE url = ?", now.UnixNano(), url); err != nil {
		return nil, fmt.Errorf("failed to update access time: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit access time: %w", err)
	}

	for i := range entries {
		entries[i].AccessedAt = time.Unix(0, now.UnixNano())
	}
	return entries, nil
}

// GetByBucket returns every entry in bucket, oldest first. Access times are
// left alone.
func (s *Store) GetByBucket(ctx context.Context, bucket string) ([]Entry, error) {
	return queryEntries(ctx, s.db, "WHERE bucket = ?", bucket)
}

// Stats returns the archive totals and per-bucket counts, read as one
// snapshot.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	meta, err := readMetadata(ctx, tx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalEntries:   meta.totalEntries,
		TotalSizeBytes: meta.totalSizeBytes,
		PerBucket:      make(map[string]int64),
	}
	if meta.lastEviction != 0 {
		t := time.Unix(0, meta.lastEviction)
		stats.LastEviction = &t
	}

	rows, err := tx.QueryContext(ctx, "SELECT bucket, COUNT(*) FROM entries GROUP BY bucket")
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan bucket count: %w", err)
		}
		stats.PerBucket[bucket] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query bucket counts: %w", err)
	}

	return stats, nil
}

// DeleteByURL removes every entry for url and returns how many there were.
func (s *Store) DeleteByURL(ctx context.Context, url string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count, size int64
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries WHERE url = ?", url,
	).Scan(&count, &size)
	if err != nil {
		return 0, fmt.Errorf("failed to query entries: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE url = ?", url); err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	meta, err := readMetadata(ctx, tx)
	if err != nil {
		return 0, err
	}
	meta.totalEntries -= count
	meta.totalSizeBytes -= size
	if err := writeMetadata(ctx, tx, meta); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return count, nil
}

// Clear removes every entry and zeroes the metadata.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if err := writeMetadata(ctx, tx, metadata{}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

// Verify checks the stored totals against the entries themselves.
func (s *Store) Verify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := readMetadata(ctx, s.db)
	if err != nil {
		return err
	}

	var count, size int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries").Scan(&count, &size)
	if err != nil {
		return fmt.Errorf("failed to aggregate entries: %w", err)
	}

	if count != meta.totalEntries || size != meta.totalSizeBytes {
		return fmt.Errorf("%w: metadata has %d entries/%d bytes, table has %d/%d",
			ErrMetadataMismatch, meta.totalEntries, meta.totalSizeBytes, count, size)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryEntries(ctx context.Context, q querier, where string, arg any) ([]Entry, error) {
	query := `
	SELECT id, url, content, bucket, created_at, accessed_at, size_bytes
	FROM entries ` + where + `
	ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var created, accessed int64
		if err := rows.Scan(&e.ID, &e.URL, &e.Content, &e.Bucket, &created, &accessed, &e.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		e.AccessedAt = time.Unix(0, accessed)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	return entries, nil
}

func readMetadata(ctx context.Context, q querier) (metadata, error) {
	var m metadata
	err := q.QueryRowContext(ctx,
		"SELECT total_entries, total_size_bytes, last_eviction FROM metadata WHERE key = ?", statsKey,
	).Scan(&m.totalEntries, &m.totalSizeBytes, &m.lastEviction)
	if err == sql.ErrNoRows {
		return metadata{}, nil
	}
	if err != nil {
		return metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return m, nil
}

func writeMetadata(ctx context.Context, e execer, m metadata) error {
	query := `
	INSERT OR REPLACE INTO metadata (key, total_entries, total_size_bytes, last_eviction)
	VALUES (?, ?, ?, ?)
	`
	if _, err := e.ExecContext(ctx, query, statsKey, m.totalEntries, m.totalSizeBytes, m.lastEviction); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
