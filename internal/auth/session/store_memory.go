package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for single-instance deployments and
// tests. A single mutex guards the maps; all operations are O(1) except the
// sweep and DeleteAllForSubject, which are bounded by the per-subject
// session count.
type MemoryStore struct {
	cfg Config

	mu        sync.Mutex
	sessions  map[string]Session
	bySubject map[string]map[string]struct{}
}

// NewMemoryStore constructs a MemoryStore with the given lifetime policy.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{
		cfg:       cfg,
		sessions:  make(map[string]Session),
		bySubject: make(map[string]map[string]struct{}),
	}, nil
}

// Create allocates a new session.
func (s *MemoryStore) Create(ctx context.Context, now time.Time, in CreateInput) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	sess := Session{
		ID:                 id,
		SubjectID:          in.SubjectID,
		RefreshFingerprint: in.RefreshFingerprint,
		CreatedAt:          now,
		LastActivityAt:     now,
		ExpiresAt:          now.Add(s.cfg.idleTTL(in.RememberMe)),
		RememberMe:         in.RememberMe,
		Device:             in.Device,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = sess
	set := s.bySubject[in.SubjectID]
	if set == nil {
		set = make(map[string]struct{})
		s.bySubject[in.SubjectID] = set
	}
	set[id] = struct{}{}

	return sess, nil
}

// Get returns the live session. Expired entries are removed on sight.
func (s *MemoryStore) Get(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.Expired(now) {
		s.removeLocked(sess)
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Touch extends the activity window. The expiry is monotonic under any
// interleaving of concurrent touches.
func (s *MemoryStore) Touch(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.Expired(now) {
		s.removeLocked(sess)
		return Session{}, ErrSessionExpired
	}

	sess.LastActivityAt = now
	sess.ExpiresAt = s.cfg.nextExpiry(sess, now)
	s.sessions[sessionID] = sess
	return sess, nil
}

// Delete removes a session. Idempotent.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		s.removeLocked(sess)
	}
	return nil
}

// DeleteAllForSubject removes every session owned by subjectID.
func (s *MemoryStore) DeleteAllForSubject(ctx context.Context, subjectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.bySubject[subjectID]
	count := 0
	for id := range set {
		if sess, ok := s.sessions[id]; ok {
			s.removeLocked(sess)
			count++
		}
	}
	delete(s.bySubject, subjectID)
	return count, nil
}

// Len reports the number of stored sessions, expired entries included until
// the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes entries past their expiry and reports how many were
// dropped. Advisory: lookups already enforce expiry.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, sess := range s.sessions {
		if sess.Expired(now) {
			s.removeLocked(sess)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.SweepInterval)
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

func (s *MemoryStore) removeLocked(sess Session) {
	delete(s.sessions, sess.ID)
	if set := s.bySubject[sess.SubjectID]; set != nil {
		delete(set, sess.ID)
		if len(set) == 0 {
			delete(s.bySubject, sess.SubjectID)
		}
	}
}
