package authapi

import "net/http"

// Config holds the HTTP-surface knobs for the auth handlers.
type Config struct {
	// MaxBodyBytes bounds request body reads.
	MaxBodyBytes int64

	// TrustProxy enables X-Forwarded-For / X-Real-IP for client keys.
	// Only enable behind a proxy that strips those headers from clients.
	TrustProxy bool

	// RefreshCookieEnabled mirrors the refresh token into an httpOnly
	// cookie scoped to the auth path, for browser clients.
	RefreshCookieEnabled bool
	RefreshCookieName    string
	CookiePath           string
	CookieDomain         string
	CookieSecure         bool
	CookieSameSite       http.SameSite
}

// DefaultConfig returns production defaults for the auth HTTP surface.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:         1 << 20,
		RefreshCookieEnabled: true,
		RefreshCookieName:    "refresh_token",
		CookiePath:           "/auth",
		CookieSecure:         true,
		CookieSameSite:       http.SameSiteStrictMode,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = "refresh_token"
	}
	if c.CookiePath == "" {
		c.CookiePath = "/auth"
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = http.SameSiteStrictMode
	}
	return c
}
