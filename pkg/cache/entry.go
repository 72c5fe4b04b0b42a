package cache

import (
	"time"
)

// Entry is a cached value together with the moment it was stored and its
// time-to-live. Entries are never mutated after creation.
type Entry struct {
	// Value is the cached value.
	Value any

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time

	// TTL is how long the entry stays fresh.
	TTL time.Duration
}

// IsExpired reports whether the entry is older than its TTL at now.
// An entry read exactly at CreatedAt+TTL is still fresh.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Remaining returns the time left until expiry at now.
// Returns 0 if already expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	left := e.TTL - now.Sub(e.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}
