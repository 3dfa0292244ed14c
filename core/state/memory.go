package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/timebot/core/logger"
)

type entry[S any] struct {
	value   S
	touched time.Time
}

// Store keeps at most one session value per Key in memory.
type Store[S any] struct {
	mu       sync.Mutex
	sessions map[Key]*entry[S]
	ttl      time.Duration
	now      func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore[S any](opts ...Option) *Store[S] {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S]{
		sessions: make(map[Key]*entry[S]),
		ttl:      o.ttl,
		now:      o.now,
	}
}

func (s *Store[S]) expired(e *entry[S], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

// Get returns the live session for key. Expired sessions are dropped and reported as absent.
func (s *Store[S]) Get(key Key) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero S
	e, ok := s.sessions[key]
	if !ok {
		return zero, false
	}
	if s.expired(e, s.now()) {
		delete(s.sessions, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value for key, replacing any previous session, and refreshes its expiry.
func (s *Store[S]) Put(key Key, value S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = &entry[S]{value: value, touched: s.now()}
}

// Delete removes the session for key and returns the removed value, if it was live.
func (s *Store[S]) Delete(key Key) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero S
	e, ok := s.sessions[key]
	if !ok {
		return zero, false
	}
	delete(s.sessions, key)
	if s.expired(e, s.now()) {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key has a live session.
func (s *Store[S]) Has(key Key) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Store[S]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store[S]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, k)
			removed++
		}
	}
	return removed
}

// Janitor sweeps the store every interval until ctx is done.
func (s *Store[S]) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, "state", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("removed", n),
				)
			}
		}
	}
}
