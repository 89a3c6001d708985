// Package state provides the session store implementations. Every store
// keeps possibly several rows per sender and resolves reads to the active
// row with the latest expiration.
package state

import (
	"time"

	"github.com/user/tirtabot/internal/types"
)

// Compile-time interface compliance checks.
var _ types.SessionStore = (*MemoryStore)(nil)
var _ types.SessionStore = (*PostgresStore)(nil)
var _ types.SessionStore = (*RedisStore)(nil)
var _ types.SessionPruner = (*MemoryStore)(nil)
var _ types.SessionPruner = (*PostgresStore)(nil)
var _ types.SessionPruner = (*RedisStore)(nil)

// DefaultTTL is the sliding session lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// Option configures a session store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets the sliding expiration applied on every write.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
