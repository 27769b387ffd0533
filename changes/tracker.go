package changes

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxBytes caps the serialized history.
const DefaultMaxBytes = 1024 * 1024

// Compactor decides whether a save should check the size ceiling.
type Compactor func() bool

// Always checks the ceiling on every save.
func Always() bool { return true }

// Sampled returns a Compactor that fires with probability rate.
func Sampled(rate float64) Compactor {
	return func() bool { return rand.Float64() < rate }
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxBytes sets the serialized size ceiling.
func WithMaxBytes(n int) Option {
	return func(t *Tracker) { t.maxBytes = n }
}

// WithCompactor sets when the ceiling is enforced.
func WithCompactor(c Compactor) Option {
	return func(t *Tracker) { t.compact = c }
}

// WithCompactionRate enforces the ceiling on a random fraction of saves.
func WithCompactionRate(rate float64) Option {
	return WithCompactor(Sampled(rate))
}

// WithLogger sets the tracker's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// Tracker answers whether content differs from everything recorded so far.
// History is kept oldest first and persisted through a StateStore. It is
// safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	store    StateStore
	hashes   []string
	seen     map[string]bool
	maxBytes int
	compact  Compactor
	log      zerolog.Logger
}

// NewTracker loads history from store. Unreadable history is discarded and
// the tracker starts empty.
func NewTracker(store StateStore, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		store:    store,
		seen:     make(map[string]bool),
		maxBytes: DefaultMaxBytes,
		compact:  Always,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	data, err := store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker state: %w", err)
	}
	if len(data) == 0 {
		return t, nil
	}

	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		t.log.Warn().Err(err).Msg("Discarding corrupted change history")
		return t, nil
	}
	for _, h := range hashes {
		if !t.seen[h] {
			t.seen[h] = true
			t.hashes = append(t.hashes, h)
		}
	}

	return t, nil
}

// HasChanged reports whether content's hash is absent from history.
func (t *Tracker) HasChanged(content string) bool {
	h := Hash(content)

	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.seen[h]
}

// RecordSeen adds content's hash to history and persists it. Recording the
// same content twice is a no-op.
func (t *Tracker) RecordSeen(content string) error {
	h := Hash(content)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[h] {
		return nil
	}
	t.hashes = append(t.hashes, h)
	t.seen[h] = true

	return t.save()
}

// Len returns the number of remembered hashes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.hashes)
}

// save serializes history, dropping the oldest half at a time while it is
// over the ceiling. Callers hold t.mu.
func (t *Tracker) save() error {
	data, err := json.Marshal(t.hashes)
	if err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}

	if t.compact() {
		for len(data) > t.maxBytes && len(t.hashes) > 0 {
			drop := (len(t.hashes) + 1) / 2
			for _, h := range t.hashes[:drop] {
				delete(t.seen, h)
			}
			t.hashes = append([]string(nil), t.hashes[drop:]...)

			data, err = json.Marshal(t.hashes)
			if err != nil {
				return fmt.Errorf("failed to encode tracker state: %w", err)
			}
			t.log.Debug().Int("dropped", drop).Int("remaining", len(t.hashes)).Msg("Compacted change history")
		}
	}

	if err := t.store.SaveState(data); err != nil {
		return fmt.Errorf("failed to persist tracker state: %w", err)
	}
	return nil
}
