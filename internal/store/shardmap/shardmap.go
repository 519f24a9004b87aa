// Package shardmap is a fixed-shard concurrent map used by the store to
// give per-key atomicity for read-check-remove sequences without a
// single global lock. Unlike a paging, splitting bucket structure sized
// for an on-disk, billion-key store, this map keeps everything
// resident, so a fixed shard count sized off the configured core count
// is enough.
package shardmap

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
)

const envShards = "KEYZ_SHARDMAP_SHARDS"

type config struct {
	shards int
}

func resolveConfig(opts ...func(*config)) *config {
	cfg := &config{}
	if env := os.Getenv(envShards); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			cfg.shards = val
		}
	}
	if cfg.shards <= 0 {
		cfg.shards = runtime.GOMAXPROCS(0) * 16
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.shards < 1 {
		cfg.shards = 1
	}
	return cfg
}

// OptShards overrides the shard count. Defaults to env KEYZ_SHARDMAP_SHARDS
// or GOMAXPROCS*16.
func OptShards(n int) func(*config) {
	return func(cfg *config) {
		cfg.shards = n
	}
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*Entry
}

// Map is a sharded map from string key to *Entry.
type Map struct {
	shards []*shard
}

// New creates a Map with the resolved shard count.
func New(opts ...func(*config)) *Map {
	cfg := resolveConfig(opts...)
	m := &Map{shards: make([]*shard, cfg.shards)}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[string]*Entry)}
	}
	return m
}

func (m *Map) shardFor(key string) *shard {
	h := murmur3.Sum32([]byte(key))
	return m.shards[int(h)%len(m.shards)]
}

// Set unconditionally inserts or replaces the entry for key.
func (m *Map) Set(key string, e *Entry) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
}

// Get returns the entry stored for key, if any, with no side effects.
func (m *Map) Get(key string) (*Entry, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	return e, ok
}

// Delete unconditionally removes key and returns the entry that was
// present, if any.
func (m *Map) Delete(key string) (*Entry, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	e, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	s.mu.Unlock()
	return e, ok
}

// Compute runs fn under the exclusive lock of the shard that owns key,
// giving it the current entry (if any) and letting it decide the new
// state atomically with respect to every other operation on that same
// key. fn returns the entry to store (nil to delete) and whether to
// write at all; returning write=false leaves the map untouched. Compute
// returns the entry as it was BEFORE fn ran, so callers can inspect the
// prior state (e.g. to know whether a removal was due to expiry).
func (m *Map) Compute(key string, fn func(existing *Entry, found bool) (next *Entry, write bool)) (existing *Entry, found bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found = s.m[key]
	next, write := fn(existing, found)
	if !write {
		return existing, found
	}
	if next == nil {
		delete(s.m, key)
	} else {
		s.m[key] = next
	}
	return existing, found
}

// Len returns the total number of live entries across all shards.
func (m *Map) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// CountMatching returns the number of entries for which pred returns true.
func (m *Map) CountMatching(pred func(*Entry) bool) int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		for _, e := range s.m {
			if pred(e) {
				total++
			}
		}
		s.mu.RUnlock()
	}
	return total
}

// RemoveMatching deletes every entry for which pred returns true, one
// shard at a time, and reports how many were removed. Each shard is
// locked only for the duration of its own sweep, so callers (such as the
// background sweeper) never block insert/get/delete globally.
func (m *Map) RemoveMatching(pred func(*Entry) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.m {
			if pred(e) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
