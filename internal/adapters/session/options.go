package session

import "time"

// Option applies a configuration option to the InMemoryStore.
type Option func(*InMemoryStore)

// WithTTL sets how long an idle session survives.
func WithTTL(ttl time.Duration) Option {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired sessions are removed.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *InMemoryStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock replaces time.Now, mostly useful in tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
