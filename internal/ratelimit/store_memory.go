package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements WindowStore with in-memory sliding windows.
// Single-process only; deployments with multiple instances share state
// through RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	timestamps   []time.Time
	blockedUntil time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Allow(ctx context.Context, key string, limit int, windowDur, block time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil {
		w = &window{}
		s.windows[key] = w
	}

	if !w.blockedUntil.IsZero() {
		if now.Before(w.blockedUntil) {
			return Decision{Allowed: false, BlockedUntil: w.blockedUntil}, nil
		}
		// Block elapsed: the window resets.
		w.timestamps = nil
		w.blockedUntil = time.Time{}
	}

	w.cleanup(now, windowDur)
	if len(w.timestamps) >= limit {
		w.blockedUntil = now.Add(block)
		return Decision{Allowed: false, BlockedUntil: w.blockedUntil}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{Allowed: true, Remaining: limit - len(w.timestamps)}, nil
}

// cleanup removes timestamps that slid out of the window.
func (w *window) cleanup(now time.Time, dur time.Duration) {
	cutoff := now.Add(-dur)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// Reset clears the window and block state for a key.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
