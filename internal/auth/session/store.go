package session

import (
	"context"
	"time"
)

// CreateInput carries the fields needed to allocate a session.
type CreateInput struct {
	// ID is optional; the store allocates one when empty. The service
	// pre-allocates IDs so refresh tokens can be issued before the session
	// row exists.
	ID string

	SubjectID          string
	RememberMe         bool
	Device             DeviceInfo
	RefreshFingerprint string
}

// Store abstracts the session registry.
//
// Concurrency contract: all operations are safe under concurrent access.
// Touch and Delete are atomic with respect to concurrent Get/Touch on the
// same key: no lost updates, and a deleted session is never resurrected.
// Touch never moves ExpiresAt backward.
type Store interface {
	// Create allocates a new session with a sliding expiry starting at now.
	Create(ctx context.Context, now time.Time, in CreateInput) (Session, error)

	// Get returns the live session, ErrSessionExpired if it exists past its
	// expiry (scheduling removal), or ErrSessionNotFound.
	Get(ctx context.Context, now time.Time, sessionID string) (Session, error)

	// Touch extends the session's activity window and returns the updated
	// snapshot.
	Touch(ctx context.Context, now time.Time, sessionID string) (Session, error)

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// DeleteAllForSubject removes every session owned by subjectID and
	// reports how many were live.
	DeleteAllForSubject(ctx context.Context, subjectID string) (int, error)
}
