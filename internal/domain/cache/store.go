// Package cache is the in-memory TTL store for optimization results.
//
// Entries are keyed by normalized URL plus the CSS-removal mode, so the two
// optimization modes of one URL cache independently. Expiry is enforced
// lazily at read time; there is no LRU or size bound beyond TTL, an accepted
// simplification for this store's scope. Artifact HTML is held
// gzip-compressed and inflated transparently on read.
package cache

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/snapshot"
)

// DefaultTTL is the entry lifespan from write time.
const DefaultTTL = 600 * time.Second

// Key identifies one cached optimization result.
type Key struct {
	URL        string
	CSSRemoval bool
}

// Entry is a cached (artifact, metrics) pair.
type Entry struct {
	Artifact  snapshot.Artifact
	Metrics   metrics.Metrics
	CreatedAt time.Time
}

type stored struct {
	compressed []byte
	byteSize   int
	capturedAt time.Time
	metrics    metrics.Metrics
	createdAt  time.Time
}

// Store is a TTL key-value store safe for concurrent readers and writers.
type Store struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[Key]*stored
	now     func() time.Time
}

// New creates a store with the given TTL; ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: make(map[Key]*stored),
		now:     time.Now,
	}
}

// Get returns the cached entry for key, or false past TTL or when absent.
// Expired entries are evicted on the spot.
func (s *Store) Get(key Key) (*Entry, bool) {
	s.mu.Lock()
	st, ok := s.entries[key]
	if ok && s.expired(st) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	html, err := inflate(st.compressed)
	if err != nil {
		// Corrupt payload counts as a miss; the next run overwrites it.
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}

	return &Entry{
		Artifact: snapshot.Artifact{
			HTML:       html,
			ByteSize:   st.byteSize,
			CapturedAt: st.capturedAt,
		},
		Metrics:   st.metrics,
		CreatedAt: st.createdAt,
	}, true
}

// Put stores an optimization result under key. Last write wins: a newer run
// replaces, never merges with, the prior entry.
func (s *Store) Put(key Key, artifact snapshot.Artifact, m metrics.Metrics) error {
	compressed, err := deflate(artifact.HTML)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = &stored{
		compressed: compressed,
		byteSize:   artifact.ByteSize,
		capturedAt: artifact.CapturedAt,
		metrics:    m,
		createdAt:  s.now(),
	}
	s.mu.Unlock()
	return nil
}

// EvictExpired sweeps the whole store and returns the number of evictions.
// Optional; Get already expires lazily.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, st := range s.entries {
		if s.expired(st) {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(st *stored) bool {
	return s.now().Sub(st.createdAt) > s.ttl
}

func deflate(html string) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(html)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) (string, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
