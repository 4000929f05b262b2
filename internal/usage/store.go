// Package usage tracks provider-level and account-level call counters and
// enforces spend quotas before any network call is issued.
package usage

import "sync"

// Counter is the periodized call count for one provider. Period keys are
// calendar strings ("2026-08-28" daily, "2026-08" monthly); a counter read
// in a new period but not yet reset counts as zero.
type Counter struct {
	Daily      int    `json:"daily"`
	DailyKey   string `json:"daily_key"`
	Monthly    int    `json:"monthly"`
	MonthlyKey string `json:"monthly_key"`
}

// CounterStore owns the mutable counter state. Implementations must make
// Update atomic per key so concurrent check-then-increment sequences cannot
// both slip past a limit.
type CounterStore interface {
	// Update applies fn to the named counter under that key's lock and
	// returns the resulting value.
	Update(key string, fn func(c *Counter)) Counter
	// Get returns the current counter value (zero value if absent).
	Get(key string) Counter
	// Snapshot returns a copy of all counters keyed by provider.
	Snapshot() map[string]Counter
	// Reset clears all counters. Intended for process start and tests.
	Reset()
}

// MemoryStore is the default in-process CounterStore. Each key gets its own
// lock so unrelated providers never contend.
type MemoryStore struct {
	mu      sync.Mutex // guards the map itself
	entries map[string]*memEntry
}

type memEntry struct {
	mu sync.Mutex
	c  Counter
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) entry(key string) *memEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &memEntry{}
		s.entries[key] = e
	}
	return e
}

// Update implements CounterStore.
func (s *MemoryStore) Update(key string, fn func(c *Counter)) Counter {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.c)
	return e.c
}

// Get implements CounterStore.
func (s *MemoryStore) Get(key string) Counter {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c
}

// Snapshot implements CounterStore.
func (s *MemoryStore) Snapshot() map[string]Counter {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	out := make(map[string]Counter, len(keys))
	for _, k := range keys {
		out[k] = s.Get(k)
	}
	return out
}

// Reset implements CounterStore.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memEntry)
}
