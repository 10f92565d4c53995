// Package state models the extension's background store: process-scoped
// toggle flags, per-URL cached results, metrics, and baselines, reachable
// only through an async message bus.
package state

import (
	"sync"
	"time"

	"github.com/pagelift/pagelift/backend/internal/domain/metrics"
	"github.com/pagelift/pagelift/backend/internal/domain/policy"
)

// CachedData is one client-side cached optimization result.
type CachedData struct {
	HTML     string          `json:"html"`
	Metrics  metrics.Metrics `json:"metrics"`
	StoredAt time.Time       `json:"storedAt"`
}

type cacheKey struct {
	url        string
	cssRemoval bool
}

// Store holds the process-scoped state. All access goes through the Bus;
// methods are still safe for direct concurrent use in tests.
type Store struct {
	mu         sync.RWMutex
	state      policy.State
	currentURL string
	cache      map[cacheKey]CachedData
	metricsMap map[string]metrics.Metrics
	baselines  map[string]metrics.Baseline
	enforcer   *policy.Enforcer
}

// NewStore creates an empty store starting from the disabled state. The
// enforcer, when given, has its rule set recomputed on every toggle change.
func NewStore(enforcer *policy.Enforcer) *Store {
	return &Store{
		cache:      make(map[cacheKey]CachedData),
		metricsMap: make(map[string]metrics.Metrics),
		baselines:  make(map[string]metrics.Baseline),
		enforcer:   enforcer,
	}
}

// State returns the current toggle state.
func (s *Store) State() policy.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState replaces the toggle state wholesale and recomputes block rules.
func (s *Store) SetState(state policy.State) policy.State {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.syncRules(state)
	return state
}

// ToggleEnabled flips the master switch and returns the new state.
func (s *Store) ToggleEnabled() policy.State {
	s.mu.Lock()
	s.state.Enabled = !s.state.Enabled
	state := s.state
	s.mu.Unlock()
	s.syncRules(state)
	return state
}

// ToggleCSSRemoval flips the CSS-removal mode and returns the new state.
func (s *Store) ToggleCSSRemoval() policy.State {
	s.mu.Lock()
	s.state.CSSRemovalEnabled = !s.state.CSSRemovalEnabled
	state := s.state
	s.mu.Unlock()
	s.syncRules(state)
	return state
}

func (s *Store) syncRules(state policy.State) {
	if s.enforcer != nil {
		s.enforcer.Update(state)
	}
}

// CachedData returns the cached result for (url, cssRemoval), if present.
func (s *Store) CachedData(url string, cssRemoval bool) (CachedData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.cache[cacheKey{url: url, cssRemoval: cssRemoval}]
	return data, ok
}

// SetCachedData stores a result under (url, cssRemoval), replacing any prior.
func (s *Store) SetCachedData(url string, cssRemoval bool, data CachedData) {
	if data.StoredAt.IsZero() {
		data.StoredAt = time.Now()
	}
	s.mu.Lock()
	s.cache[cacheKey{url: url, cssRemoval: cssRemoval}] = data
	s.mu.Unlock()
}

// Metrics returns stored metrics for a URL.
func (s *Store) Metrics(url string) (metrics.Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metricsMap[url]
	return m, ok
}

// StoreMetrics stores metrics for a URL, last write wins.
func (s *Store) StoreMetrics(url string, m metrics.Metrics) {
	s.mu.Lock()
	s.metricsMap[url] = m
	s.mu.Unlock()
}

// Baseline returns the recorded baseline for a URL.
func (s *Store) Baseline(url string) (metrics.Baseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[url]
	return b, ok
}

// StoreBaseline records a baseline for a URL. The first recorded baseline
// wins; a baseline captured after optimization started must not overwrite
// the true before-state.
func (s *Store) StoreBaseline(url string, b metrics.Baseline) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.baselines[url]; exists {
		return false
	}
	s.baselines[url] = b
	return true
}

// CurrentURL returns the URL of the active document.
func (s *Store) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURL
}

// SetCurrentURL records the active document's URL.
func (s *Store) SetCurrentURL(url string) {
	s.mu.Lock()
	s.currentURL = url
	s.mu.Unlock()
}
