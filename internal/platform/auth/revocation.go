package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records revoked tokens. Single tokens are revoked by JTI;
// all of a user's tokens are revoked by recording a cutoff, after which any
// token issued before the cutoff is rejected.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, cutoff time.Time, retain time.Duration) error
	UserCutoff(ctx context.Context, userID int64) (time.Time, bool, error)
}

type cutoffEntry struct {
	At        time.Time
	ExpiresAt time.Time
}

// MemoryRevocationStore keeps revocations in process memory with a
// background cleanup of expired entries. Thread-safe for concurrent access.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // JTI -> token expiry
	cutoffs map[int64]cutoffEntry
	done    chan struct{}
	now     func() time.Time
}

// NewMemoryRevocationStore creates a store and starts a goroutine that
// removes expired entries every interval.
func NewMemoryRevocationStore(interval time.Duration) *MemoryRevocationStore {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		cutoffs: make(map[int64]cutoffEntry),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.cleanupLoop(interval)
	return s
}

// Revoke adds a JTI. The entry is dropped once the token would have expired
// on its own.
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[jti]
	return ok, nil
}

// RevokeAllForUser records cutoff for userID for retain, which should be at
// least the longest token lifetime. A later cutoff replaces an earlier one.
func (s *MemoryRevocationStore) RevokeAllForUser(_ context.Context, userID int64, cutoff time.Time, retain time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cutoffs[userID]; ok && cur.At.After(cutoff) {
		return nil
	}
	s.cutoffs[userID] = cutoffEntry{At: cutoff, ExpiresAt: s.now().Add(retain)}
	return nil
}

func (s *MemoryRevocationStore) UserCutoff(_ context.Context, userID int64) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cutoffs[userID]
	return entry.At, ok, nil
}

// Count returns the number of revoked JTIs currently tracked.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background cleanup goroutine. It is safe to call
// multiple times but only the first call has effect.
func (s *MemoryRevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *MemoryRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes JTIs past their natural expiry and cutoffs past retention.
func (s *MemoryRevocationStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, expiresAt := range s.entries {
		if now.After(expiresAt) {
			delete(s.entries, jti)
		}
	}
	for userID, entry := range s.cutoffs {
		if now.After(entry.ExpiresAt) {
			delete(s.cutoffs, userID)
		}
	}
}
