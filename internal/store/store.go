// Package store implements the concurrent expiring key-value store: the
// sharded map, gzip compression, TTL bookkeeping, and the background
// sweeper. It is memory-only: no on-disk files, no replication.
package store

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/viktor111/keyz/internal/clock"
	"github.com/viktor111/keyz/internal/protocol"
	"github.com/viktor111/keyz/internal/store/shardmap"
)

// Config is the store's immutable configuration.
type Config struct {
	CompressionThreshold int
	DefaultTTLSecs       uint64
	HasDefaultTTL        bool
	CleanupIntervalMS    uint64
}

// DefaultConfig returns the built-in store defaults.
func DefaultConfig() Config {
	return Config{
		CompressionThreshold: 512,
		CleanupIntervalMS:    250,
	}
}

// Stats is the snapshot returned by Store.Stats.
type Stats struct {
	Keys                 int
	CompressedKeys       int
	CompressionThreshold int
	DefaultTTLSecs       uint64
	HasDefaultTTL        bool
	CleanupIntervalMS    uint64
	UptimeSecs           float64
}

// Store is the concurrent, expiring key-value store.
type Store struct {
	data      *shardmap.Map
	cfg       Config
	clock     clock.Source
	startedAt time.Time

	sweeperStop chan struct{}
	sweeperDone chan struct{}
}

// New creates a Store with the default configuration and a real system
// clock, and starts its background sweeper.
func New() *Store {
	return NewWithClock(DefaultConfig(), clock.System{})
}

// NewWithConfig creates a Store with the given configuration and a real
// system clock.
func NewWithConfig(cfg Config) *Store {
	return NewWithClock(cfg, clock.System{})
}

// NewWithClock creates a Store with an explicit clock source, primarily
// for deterministic tests. The sweeper is started immediately and runs
// until Close is called.
func NewWithClock(cfg Config, src clock.Source) *Store {
	s := &Store{
		data:        shardmap.New(),
		cfg:         cfg,
		clock:       src,
		startedAt:   time.Now(),
		sweeperStop: make(chan struct{}),
		sweeperDone: make(chan struct{}),
	}
	go s.runSweeper()
	return s
}

// Close signals the sweeper to perform one final purge pass and exit,
// and waits for it to do so. The store's map itself needs no further
// teardown since it holds no external resources.
func (s *Store) Close() {
	close(s.sweeperStop)
	<-s.sweeperDone
}

// Insert stores value under key, replacing any existing entry. A
// ttlSeconds of zero uses the configured default TTL if one is set,
// otherwise the entry never expires.
func (s *Store) Insert(key string, value []byte, ttlSeconds uint64) error {
	expiresAt, hasExpiry, err := s.ttlDeadline(ttlSeconds)
	if err != nil {
		return err
	}

	payload, compressed, err := compressIfNeeded(value, s.cfg.CompressionThreshold)
	if err != nil {
		return err
	}

	s.data.Set(key, &shardmap.Entry{
		Payload:    payload,
		Compressed: compressed,
		HasExpiry:  hasExpiry,
		ExpiresAt:  expiresAt,
	})
	return nil
}

// Get returns the live value for key, or (nil, false) if absent or
// expired. An expired entry is removed as a side effect.
func (s *Store) Get(key string) ([]byte, bool, error) {
	now, err := s.clock.NowSeconds()
	if err != nil {
		return nil, false, protocol.Wrap(protocol.KindTime, "store get", err)
	}

	existing, found := s.data.Compute(key, func(existing *shardmap.Entry, found bool) (*shardmap.Entry, bool) {
		if !found {
			return nil, false
		}
		if existing.Expired(now) {
			return nil, true
		}
		return nil, false
	})
	if !found || existing.Expired(now) {
		return nil, false, nil
	}

	value, err := decompressIfNeeded(existing.Payload, existing.Compressed)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes key if present and not expired, returning the key
// string back to the caller (so the wire response can echo which key
// was removed). An expired entry is removed but reported as absent.
func (s *Store) Delete(key string) (string, bool, error) {
	now, err := s.clock.NowSeconds()
	if err != nil {
		return "", false, protocol.Wrap(protocol.KindTime, "store delete", err)
	}

	existing, found := s.data.Compute(key, func(existing *shardmap.Entry, found bool) (*shardmap.Entry, bool) {
		if !found {
			return nil, false
		}
		return nil, true
	})
	if !found || existing.Expired(now) {
		return "", false, nil
	}
	return key, true, nil
}

// ExpiresIn returns the seconds remaining until key expires, or
// (0, false) if the key is absent, has no expiry, or has already
// expired (in which case it is removed).
func (s *Store) ExpiresIn(key string) (int64, bool, error) {
	now, err := s.clock.NowSeconds()
	if err != nil {
		return 0, false, protocol.Wrap(protocol.KindTime, "store expires_in", err)
	}

	existing, found := s.data.Compute(key, func(existing *shardmap.Entry, found bool) (*shardmap.Entry, bool) {
		if !found || !existing.HasExpiry {
			return nil, false
		}
		if existing.Expired(now) {
			return nil, true
		}
		return nil, false
	})
	if !found || !existing.HasExpiry || existing.Expired(now) {
		return 0, false, nil
	}
	return existing.ExpiresAt - now, true, nil
}

// Stats returns a point-in-time snapshot of store statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Keys:                 s.data.Len(),
		CompressedKeys:       s.data.CountMatching(func(e *shardmap.Entry) bool { return e.Compressed }),
		CompressionThreshold: s.cfg.CompressionThreshold,
		DefaultTTLSecs:       s.cfg.DefaultTTLSecs,
		HasDefaultTTL:        s.cfg.HasDefaultTTL,
		CleanupIntervalMS:    s.cfg.CleanupIntervalMS,
		UptimeSecs:           time.Since(s.startedAt).Seconds(),
	}
}

func (s *Store) ttlDeadline(seconds uint64) (int64, bool, error) {
	ttl := seconds
	if ttl == 0 {
		if !s.cfg.HasDefaultTTL {
			return 0, false, nil
		}
		ttl = s.cfg.DefaultTTLSecs
	}
	if ttl == 0 {
		return 0, false, nil
	}

	now, err := s.clock.NowSeconds()
	if err != nil {
		return 0, false, protocol.Wrap(protocol.KindTime, "store insert", err)
	}
	return now + int64(ttl), true, nil
}

// runSweeper purges expired entries on cleanup_interval_ms cadence on a
// dedicated goroutine until Close is signaled, then performs one final
// purge pass before exiting.
func (s *Store) runSweeper() {
	defer close(s.sweeperDone)

	interval := time.Duration(s.cfg.CleanupIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweeperStop:
			s.purgeExpired()
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *Store) purgeExpired() {
	now, err := s.clock.NowSeconds()
	if err != nil {
		return
	}
	s.data.RemoveMatching(func(e *shardmap.Entry) bool { return e.Expired(now) })
}

var gzipPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func compressIfNeeded(value []byte, threshold int) ([]byte, bool, error) {
	if len(value) < threshold {
		return append([]byte(nil), value...), false, nil
	}

	buf := gzipPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer gzipPool.Put(buf)

	w := gzip.NewWriter(buf)
	if _, err := w.Write(value); err != nil {
		return nil, false, protocol.Wrap(protocol.KindIO, "gzip compression failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, protocol.Wrap(protocol.KindIO, "gzip compression failed", err)
	}

	if buf.Len() < len(value) {
		out := append([]byte(nil), buf.Bytes()...)
		return out, true, nil
	}
	return append([]byte(nil), value...), false, nil
}

func decompressIfNeeded(payload []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return payload, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, protocol.Wrap(protocol.KindIO, "gzip decompression failed", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindIO, "gzip decompression failed", err)
	}
	return out, nil
}
