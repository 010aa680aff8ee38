// Package gateway authenticates inbound requests.
//
// Every protected request walks the same chain: extract the token, verify
// signature and expiry, check the revocation denylist, then confirm the
// backing session is still alive. Any failure short-circuits to a typed
// rejection; on success the session's activity window is extended and the
// resolved identity travels in the request context.
package gateway

import (
	"context"
	"errors"
	"log/slog"

	"eduportal/internal/auth/revocation"
	"eduportal/internal/auth/session"
	"eduportal/internal/auth/token"
)

// Reason classifies why a request was rejected.
type Reason string

const (
	ReasonTokenMissing   Reason = "TOKEN_MISSING"
	ReasonTokenExpired   Reason = "TOKEN_EXPIRED"
	ReasonTokenInvalid   Reason = "TOKEN_INVALID"
	ReasonTokenRevoked   Reason = "TOKEN_REVOKED"
	ReasonSessionExpired Reason = "SESSION_EXPIRED"
	ReasonUserInactive   Reason = "USER_INACTIVE"
)

// ErrConfig is returned for invalid gateway configuration.
var ErrConfig = errors.New("invalid gateway config")

// RejectionError is the typed outcome of a failed authentication. It wraps
// the underlying cause for logging; the cause is never sent to clients.
type RejectionError struct {
	Reason Reason
	cause  error
}

func (e *RejectionError) Error() string {
	return "authentication rejected: " + string(e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.cause }

func reject(reason Reason, cause error) error {
	return &RejectionError{Reason: reason, cause: cause}
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	SubjectID   string
	Email       string
	Role        string
	Permissions []string
	SessionID   string
	Session     session.Session
}

// ActiveChecker reports whether a subject's account is still enabled.
// Optional; when nil the gateway trusts the claims until token expiry
// rather than paying a directory read on every request.
type ActiveChecker interface {
	IsActive(ctx context.Context, subjectID string) (bool, error)
}

// Gateway authenticates requests against the token codec, the revocation
// denylist and the session registry.
type Gateway struct {
	codec    *token.Codec
	fp       *token.Fingerprinter
	revoked  revocation.Store
	sessions session.Store
	active   ActiveChecker
	log      *slog.Logger
}

// New constructs a Gateway. The active checker may be nil.
func New(
	codec *token.Codec,
	fp *token.Fingerprinter,
	revoked revocation.Store,
	sessions session.Store,
	active ActiveChecker,
	log *slog.Logger,
) (*Gateway, error) {
	if codec == nil || fp == nil || revoked == nil || sessions == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		codec:    codec,
		fp:       fp,
		revoked:  revoked,
		sessions: sessions,
		active:   active,
		log:      log,
	}, nil
}

// Authenticate verifies raw and returns the caller's identity. On success
// the backing session has been touched. Failures are *RejectionError;
// anything else is an infrastructure fault.
func (g *Gateway) Authenticate(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, reject(ReasonTokenMissing, nil)
	}

	claims, err := g.codec.VerifyAccess(raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTokenExpired):
			return Identity{}, reject(ReasonTokenExpired, err)
		default:
			return Identity{}, reject(ReasonTokenInvalid, err)
		}
	}

	now := g.codec.Now()

	revoked, err := g.revoked.IsRevoked(ctx, now, g.fp.Fingerprint(raw))
	if err != nil {
		return Identity{}, err
	}
	if revoked {
		return Identity{}, reject(ReasonTokenRevoked, nil)
	}

	// Touch doubles as the liveness check; a valid token whose session is
	// gone is rejected regardless of its own expiry.
	sess, err := g.sessions.Touch(ctx, now, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return Identity{}, reject(ReasonSessionExpired, err)
		}
		return Identity{}, err
	}

	if g.active != nil {
		ok, err := g.active.IsActive(ctx, claims.Subject)
		if err != nil {
			return Identity{}, err
		}
		if !ok {
			return Identity{}, reject(ReasonUserInactive, nil)
		}
	}

	return Identity{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		SessionID:   claims.SessionID,
		Session:     sess,
	}, nil
}
