package shardmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	m := New(OptShards(4))

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Set("a", &Entry{Payload: []byte("1")})
	e, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), e.Payload)

	removed, ok := m.Delete("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), removed.Payload)

	_, ok = m.Get("a")
	assert.False(t, ok)
}

func TestComputeAtomicRemoveOnExpiry(t *testing.T) {
	m := New(OptShards(4))
	m.Set("k", &Entry{Payload: []byte("v"), HasExpiry: true, ExpiresAt: 10})

	existing, found := m.Compute("k", func(existing *Entry, found bool) (*Entry, bool) {
		if !found {
			return nil, false
		}
		if existing.Expired(10) {
			return nil, true
		}
		return nil, false
	})

	require.True(t, found)
	assert.True(t, existing.Expired(10))

	_, ok := m.Get("k")
	assert.False(t, ok, "expired entry must be removed by Compute")
}

func TestComputeNoWriteLeavesEntryInPlace(t *testing.T) {
	m := New(OptShards(4))
	m.Set("k", &Entry{Payload: []byte("v")})

	m.Compute("k", func(existing *Entry, found bool) (*Entry, bool) {
		return nil, false
	})

	e, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), e.Payload)
}

func TestRemoveMatchingSweepsExpired(t *testing.T) {
	m := New(OptShards(8))
	m.Set("live", &Entry{Payload: []byte("a")})
	m.Set("dead1", &Entry{Payload: []byte("b"), HasExpiry: true, ExpiresAt: 5})
	m.Set("dead2", &Entry{Payload: []byte("c"), HasExpiry: true, ExpiresAt: 5})

	removed := m.RemoveMatching(func(e *Entry) bool { return e.Expired(10) })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, m.Len())

	_, ok := m.Get("live")
	assert.True(t, ok)
}

func TestCountMatching(t *testing.T) {
	m := New(OptShards(4))
	m.Set("a", &Entry{Compressed: true})
	m.Set("b", &Entry{Compressed: false})
	m.Set("c", &Entry{Compressed: true})

	assert.Equal(t, 2, m.CountMatching(func(e *Entry) bool { return e.Compressed }))
}

func TestConcurrentSharedKeysDoNotCorrupt(t *testing.T) {
	m := New(OptShards(16))
	var wg sync.WaitGroup
	const n = 200

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			m.Set(key, &Entry{Payload: []byte{byte(i)}})
			m.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 26)
}
