package session

import (
	"net"
	"time"
)

// DeviceInfo describes the client that owns a session.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        net.IP `json:"ip,omitempty"`
	Label     string `json:"label,omitempty"`
}

// Session is the server-side record of an active login.
type Session struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`

	// RefreshFingerprint is the HMAC fingerprint of the refresh token bound
	// to this session. The raw token is never persisted.
	RefreshFingerprint string `json:"refresh_fp"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	RememberMe bool       `json:"remember_me"`
	Device     DeviceInfo `json:"device"`
}

// Expired reports whether the session's expiry has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
