package session

import "time"

// Config defines the session lifetime policy.
//
// Expiry is sliding: every touch moves ExpiresAt forward by the idle TTL,
// capped at CreatedAt+MaxLifetime. RememberMe selects the longer idle TTL;
// the absolute cap applies to both.
type Config struct {
	// IdleTTL is the sliding window for regular sessions.
	IdleTTL time.Duration

	// IdleTTLRemember is the sliding window for remember-me sessions.
	IdleTTLRemember time.Duration

	// MaxLifetime is the absolute cap on session age, independent of
	// activity.
	MaxLifetime time.Duration

	// SweepInterval controls how often the background sweep removes expired
	// entries. The sweep is advisory; reads already enforce expiry.
	SweepInterval time.Duration

	// DirectoryTimeout bounds user-directory lookups during login/refresh.
	DirectoryTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		IdleTTL:          24 * time.Hour,
		IdleTTLRemember:  7 * 24 * time.Hour,
		MaxLifetime:      30 * 24 * time.Hour,
		SweepInterval:    5 * time.Minute,
		DirectoryTimeout: 5 * time.Second,
	}
}

// Validate checks the policy invariants.
func (c Config) Validate() error {
	if c.IdleTTL <= 0 || c.IdleTTLRemember < c.IdleTTL {
		return ErrConfig
	}
	if c.MaxLifetime < c.IdleTTLRemember {
		return ErrConfig
	}
	if c.SweepInterval <= 0 || c.DirectoryTimeout <= 0 {
		return ErrConfig
	}
	return nil
}

func (c Config) idleTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return c.IdleTTLRemember
	}
	return c.IdleTTL
}

// nextExpiry computes the sliding expiry for a session at now. It never
// regresses: the result is at least current, and never past the absolute
// lifetime cap.
func (c Config) nextExpiry(s Session, now time.Time) time.Time {
	exp := now.Add(c.idleTTL(s.RememberMe))
	if cap := s.CreatedAt.Add(c.MaxLifetime); exp.After(cap) {
		exp = cap
	}
	if exp.Before(s.ExpiresAt) {
		exp = s.ExpiresAt
	}
	return exp
}
