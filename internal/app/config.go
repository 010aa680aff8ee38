package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime configuration, loaded from EDU_-prefixed
// environment variables.
type Config struct {
	HTTPAddr  string `env:"EDU_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"EDU_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"EDU_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"EDU_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"EDU_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"EDU_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"EDU_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"EDU_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// DatabaseURL enables the Postgres user directory. Empty runs an
	// in-memory directory, for development only.
	DatabaseURL string `env:"EDU_DATABASE_URL"`
	DBMaxConns  int32  `env:"EDU_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"EDU_DB_MIN_CONNS" envDefault:"0"`

	// RedisAddr enables Redis-backed session and revocation stores so that
	// multiple portal instances share state. Empty keeps both in memory.
	RedisAddr     string `env:"EDU_REDIS_ADDR"`
	RedisPassword string `env:"EDU_REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"EDU_REDIS_DB" envDefault:"0"`

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool `env:"EDU_READINESS_REQUIRE_DB" envDefault:"false"`

	JWTSecret   string        `env:"EDU_JWT_SECRET,unset"`
	JWTIssuer   string        `env:"EDU_JWT_ISSUER" envDefault:"eduportal"`
	JWTAudience string        `env:"EDU_JWT_AUDIENCE"`
	AccessTTL   time.Duration `env:"EDU_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTTL  time.Duration `env:"EDU_REFRESH_TOKEN_TTL" envDefault:"168h"`
	TokenLeeway time.Duration `env:"EDU_TOKEN_LEEWAY" envDefault:"30s"`

	// TokenHMACKey keys the fingerprints under which revoked tokens and
	// session bindings are stored. Empty falls back to plain SHA-256,
	// acceptable for development only.
	TokenHMACKey string `env:"EDU_TOKEN_HMAC_KEY,unset"`

	SessionIdleTTL         time.Duration `env:"EDU_SESSION_IDLE_TTL" envDefault:"24h"`
	SessionIdleTTLRemember time.Duration `env:"EDU_SESSION_IDLE_TTL_REMEMBER" envDefault:"168h"`
	SessionMaxLifetime     time.Duration `env:"EDU_SESSION_MAX_LIFETIME" envDefault:"720h"`
	SessionSweepInterval   time.Duration `env:"EDU_SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	DirectoryTimeout       time.Duration `env:"EDU_DIRECTORY_TIMEOUT" envDefault:"5s"`

	GuardWindow            time.Duration `env:"EDU_GUARD_WINDOW" envDefault:"30s"`
	GuardMaxPerWindow      int           `env:"EDU_GUARD_MAX_PER_WINDOW" envDefault:"30"`
	GuardSequenceWindow    time.Duration `env:"EDU_GUARD_SEQUENCE_WINDOW" envDefault:"15s"`
	GuardMaxSameInSequence int           `env:"EDU_GUARD_MAX_SAME_IN_SEQUENCE" envDefault:"8"`
	GuardBurstWindow       time.Duration `env:"EDU_GUARD_BURST_WINDOW" envDefault:"1s"`
	GuardBurstMax          int           `env:"EDU_GUARD_BURST_MAX" envDefault:"5"`
	GuardEndpoints         []string      `env:"EDU_GUARD_ENDPOINTS" envSeparator:"," envDefault:"/auth/login,/auth/validate"`
	GuardSweepInterval     time.Duration `env:"EDU_GUARD_SWEEP_INTERVAL" envDefault:"1m"`

	// TrustProxy enables X-Forwarded-For / X-Real-IP when deriving rate
	// guard client keys. Only enable behind a proxy that strips those
	// headers from clients.
	TrustProxy   bool   `env:"EDU_TRUST_PROXY" envDefault:"false"`
	CookieDomain string `env:"EDU_COOKIE_DOMAIN"`
	CookieSecure bool   `env:"EDU_COOKIE_SECURE" envDefault:"true"`

	// ActiveCheck makes the gateway confirm the account is still enabled on
	// every authenticated request, at the cost of a directory read.
	ActiveCheck bool `env:"EDU_GATEWAY_ACTIVE_CHECK" envDefault:"false"`
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate enforces the startup security policy.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("config: EDU_JWT_SECRET must be at least 32 bytes")
	}
	if len(c.TokenHMACKey) > 0 && len(c.TokenHMACKey) < 32 {
		return fmt.Errorf("config: EDU_TOKEN_HMAC_KEY must be at least 32 bytes when set")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("config: refresh token TTL must be at least the access token TTL")
	}
	return nil
}
