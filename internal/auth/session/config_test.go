package session

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		IdleTTL:          24 * time.Hour,
		IdleTTLRemember:  7 * 24 * time.Hour,
		MaxLifetime:      30 * 24 * time.Hour,
		SweepInterval:    time.Minute,
		DirectoryTimeout: time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.IdleTTL = 0 },
		func(c *Config) { c.IdleTTLRemember = c.IdleTTL - time.Hour },
		func(c *Config) { c.MaxLifetime = c.IdleTTLRemember - time.Hour },
		func(c *Config) { c.SweepInterval = 0 },
		func(c *Config) { c.DirectoryTimeout = 0 },
	}
	for i, mutate := range bad {
		c := testConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: invalid config accepted", i)
		}
	}
}

func TestNextExpiry(t *testing.T) {
	cfg := testConfig()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sess := Session{
		CreatedAt: created,
		ExpiresAt: created.Add(cfg.IdleTTL),
	}

	// A touch one hour in slides the window forward.
	now := created.Add(time.Hour)
	got := cfg.nextExpiry(sess, now)
	if want := now.Add(cfg.IdleTTL); !got.Equal(want) {
		t.Fatalf("nextExpiry = %v, want %v", got, want)
	}

	// Never regresses, even if the stored expiry is already further out.
	sess.ExpiresAt = created.Add(10 * 24 * time.Hour)
	got = cfg.nextExpiry(sess, now)
	if got.Before(sess.ExpiresAt) {
		t.Fatalf("nextExpiry regressed: %v < %v", got, sess.ExpiresAt)
	}

	// Capped at CreatedAt+MaxLifetime regardless of activity.
	sess.RememberMe = true
	sess.ExpiresAt = created.Add(cfg.IdleTTLRemember)
	now = created.Add(cfg.MaxLifetime - time.Hour)
	got = cfg.nextExpiry(sess, now)
	if want := created.Add(cfg.MaxLifetime); !got.Equal(want) {
		t.Fatalf("nextExpiry past cap: %v, want %v", got, want)
	}
}
