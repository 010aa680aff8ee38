package app

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != time.Hour || cfg.RefreshTTL != 168*time.Hour {
		t.Fatalf("token TTLs=%v/%v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.SessionIdleTTL != 24*time.Hour || cfg.SessionMaxLifetime != 720*time.Hour {
		t.Fatalf("session TTLs=%v/%v", cfg.SessionIdleTTL, cfg.SessionMaxLifetime)
	}
	if cfg.GuardMaxPerWindow != 30 || cfg.GuardBurstMax != 5 {
		t.Fatalf("guard thresholds=%d/%d", cfg.GuardMaxPerWindow, cfg.GuardBurstMax)
	}
	if len(cfg.GuardEndpoints) != 2 {
		t.Fatalf("GuardEndpoints=%v", cfg.GuardEndpoints)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("EDU_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("EDU_ACCESS_TOKEN_TTL", "30m")
	t.Setenv("EDU_GUARD_ENDPOINTS", "/auth/login,/auth/refresh,/auth/validate")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != 30*time.Minute {
		t.Fatalf("AccessTTL=%v", cfg.AccessTTL)
	}
	if len(cfg.GuardEndpoints) != 3 || cfg.GuardEndpoints[1] != "/auth/refresh" {
		t.Fatalf("GuardEndpoints=%v", cfg.GuardEndpoints)
	}
}

func TestConfigValidatePolicy(t *testing.T) {
	t.Parallel()

	base := Config{
		JWTSecret:  strings.Repeat("s", 32),
		AccessTTL:  time.Hour,
		RefreshTTL: 168 * time.Hour,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "short jwt secret", mutate: func(c *Config) { c.JWTSecret = "short" }},
		{name: "short hmac key", mutate: func(c *Config) { c.TokenHMACKey = "short" }},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.RefreshTTL = time.Minute }},
	}

	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: want error", tc.name)
		}
	}
}
