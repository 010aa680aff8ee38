package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process denylist. Expired entries are dropped lazily
// on lookup and in bulk by the periodic sweep.
type MemoryStore struct {
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore constructs a MemoryStore sweeping at the given interval.
func NewMemoryStore(sweepInterval time.Duration) (*MemoryStore, error) {
	if sweepInterval <= 0 {
		return nil, ErrConfig
	}
	return &MemoryStore{
		sweepInterval: sweepInterval,
		entries:       make(map[string]time.Time),
	}, nil
}

// Revoke marks fingerprint as revoked until expiresAt.
func (s *MemoryStore) Revoke(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the later expiry if the same token is revoked twice.
	if cur, ok := s.entries[fingerprint]; !ok || expiresAt.After(cur) {
		s.entries[fingerprint] = expiresAt
	}
	return nil
}

// IsRevoked reports whether fingerprint is revoked at now.
func (s *MemoryStore) IsRevoked(ctx context.Context, now time.Time, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[fingerprint]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		delete(s.entries, fingerprint)
		return false, nil
	}
	return true, nil
}

// Len reports the number of stored entries, expired ones included until the
// next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes entries past their expiry and reports how many were
// dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, fp)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context) {
	t := time.NewTicker(s.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now.UTC())
		}
	}
}
