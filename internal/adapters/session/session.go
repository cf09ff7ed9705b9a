// Package session keeps per-visitor state of the prediction surface: the
// pending prediction that a later feedback submission refers to.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultTTL           = time.Hour
	defaultSweepInterval = time.Minute
)

// Session is one visitor's state.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	pending  *feedback.Prediction
}

// SetPrediction replaces the pending prediction.
func (s *Session) SetPrediction(p feedback.Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
}

// Prediction returns the pending prediction, if any.
func (s *Session) Prediction() (feedback.Prediction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return feedback.Prediction{}, false
	}
	return *s.pending, true
}

// LastSeen returns the last time the session was used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Store tracks live sessions.
type Store interface {
	// Resolve returns the session for id, creating a new one when id is
	// unknown or expired. created reports whether a new session was made.
	Resolve(ctx context.Context, id string) (s *Session, created bool)

	// Len returns the number of live sessions.
	Len() int
}

// InMemoryStore implements Store with TTL eviction.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

// NewInMemoryStore creates a new session store with configuration options.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		sessions:      make(map[string]*Session),
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve implements Store.
func (s *InMemoryStore) Resolve(_ context.Context, id string) (*Session, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if now.Sub(sess.LastSeen()) < s.ttl {
			sess.touch(now)
			return sess, false
		}
		delete(s.sessions, id)
	}

	sess := &Session{ID: uuid.NewString(), CreatedAt: now, lastSeen: now}
	s.sessions[sess.ID] = sess
	metrics.UpdateSessionsActive(len(s.sessions))
	return sess, true
}

// Len implements Store.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *InMemoryStore) Evict() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) >= s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.UpdateSessionsActive(len(s.sessions))
	return removed
}

// Run evicts expired sessions until ctx is canceled.
func (s *InMemoryStore) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Evict()
		}
	}
}

type ctxKey struct{}

// NewContext attaches s to ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
