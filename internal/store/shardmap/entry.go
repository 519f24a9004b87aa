package shardmap

// Entry is one stored value: a payload that is either the raw bytes or
// their gzip form, a flag saying which, and an optional absolute expiry
// in whole seconds since the epoch. Entries are never mutated in
// place, a write always installs a new *Entry, so a pointer handed out
// by Compute/Get remains safe to read after the shard lock is released.
type Entry struct {
	Payload    []byte
	Compressed bool
	HasExpiry  bool
	ExpiresAt  int64
}

// Expired reports whether the entry is logically absent at the given
// wall-clock second.
func (e *Entry) Expired(now int64) bool {
	return e.HasExpiry && now >= e.ExpiresAt
}
