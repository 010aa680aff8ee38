package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID does not resolve to a
	// live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session exists but its expiry has
	// passed. Callers should treat it the same as not-found; the distinct
	// sentinel exists for rejection-reason reporting.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidCredentials is returned on unknown email or failed password
	// check. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInactive is returned when the account exists but is disabled.
	ErrUserInactive = errors.New("user inactive")

	// ErrNoRoleAssigned is returned when a user has no role and none can be
	// derived from the legacy flags.
	ErrNoRoleAssigned = errors.New("no role assigned")

	// ErrDirectoryTimeout is returned when the user directory did not answer
	// within the configured budget. Retryable; never mapped to a credential
	// failure.
	ErrDirectoryTimeout = errors.New("directory lookup timed out")

	// ErrConfig is returned for invalid session configuration.
	ErrConfig = errors.New("invalid session config")
)
