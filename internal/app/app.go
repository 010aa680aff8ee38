// Package app wires the portal runtime: config, logging, stores, and the
// authentication HTTP surface.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	authapi "eduportal/internal/auth/api"
	"eduportal/internal/auth/gateway"
	"eduportal/internal/auth/rateguard"
	"eduportal/internal/auth/revocation"
	"eduportal/internal/auth/session"
	"eduportal/internal/auth/token"
	"eduportal/internal/directory"
	"eduportal/internal/metrics"
)

// App is the portal runtime: it owns the HTTP server and the auth stack's
// dependencies.
type App struct {
	cfg Config
	log *slog.Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool
	rdb       *redis.Client

	registry *prometheus.Registry
	auth     *authapi.Handler

	// runners are background loops (store sweeps, guard sweep) started by
	// Run and stopped by context cancellation.
	runners []func(context.Context)
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	a := &App{cfg: cfg, log: log}

	codec, err := token.NewCodec(token.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Leeway:     cfg.TokenLeeway,
	}, nil)
	if err != nil {
		return nil, err
	}

	fp, err := token.NewFingerprinter([]byte(cfg.TokenHMACKey))
	if err != nil {
		return nil, err
	}
	if cfg.TokenHMACKey == "" {
		log.Warn("token fingerprints are unkeyed; set EDU_TOKEN_HMAC_KEY in production")
	}

	sessCfg := session.Config{
		IdleTTL:          cfg.SessionIdleTTL,
		IdleTTLRemember:  cfg.SessionIdleTTLRemember,
		MaxLifetime:      cfg.SessionMaxLifetime,
		SweepInterval:    cfg.SessionSweepInterval,
		DirectoryTimeout: cfg.DirectoryTimeout,
	}

	sessions, revoked, err := a.newSessionStores(ctx, sessCfg)
	if err != nil {
		return nil, err
	}

	users, roles, err := a.newDirectory(ctx)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	svc, err := session.NewService(sessCfg, codec, fp, sessions, revoked, users, roles, log)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	var active gateway.ActiveChecker
	if cfg.ActiveCheck {
		active = directoryActive{users: users}
	}

	gw, err := gateway.New(codec, fp, revoked, sessions, active, log)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	guard, err := rateguard.New(rateguard.Config{
		Window:            cfg.GuardWindow,
		MaxPerWindow:      cfg.GuardMaxPerWindow,
		SequenceWindow:    cfg.GuardSequenceWindow,
		MaxSameInSequence: cfg.GuardMaxSameInSequence,
		BurstWindow:       cfg.GuardBurstWindow,
		BurstMax:          cfg.GuardBurstMax,
		Endpoints:         cfg.GuardEndpoints,
		SweepInterval:     cfg.GuardSweepInterval,
	})
	if err != nil {
		a.closeStores()
		return nil, err
	}

	// The subscriber is the security audit trail; the handler separately
	// rejects the flagged request.
	guard.Subscribe(func(ev rateguard.Event) {
		log.Warn("security.event",
			slog.String("event_id", ev.ID),
			slog.String("client", ev.ClientKey),
			slog.String("method", ev.Method),
			slog.String("path", ev.URL),
			slog.String("rule", string(ev.Rule)),
			slog.Time("at", ev.At),
		)
	})
	a.runners = append(a.runners, guard.Run)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	apiCfg := authapi.DefaultConfig()
	apiCfg.TrustProxy = cfg.TrustProxy
	apiCfg.CookieDomain = cfg.CookieDomain
	apiCfg.CookieSecure = cfg.CookieSecure

	auth, err := authapi.NewHandler(log, apiCfg, svc, gw, guard, m)
	if err != nil {
		a.closeStores()
		return nil, err
	}
	a.auth = auth

	return a, nil
}

// Run starts the background loops and the HTTP server, and blocks until
// context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	runCtx, stopRunners := context.WithCancel(ctx)
	defer stopRunners()

	for _, r := range a.runners {
		go r(runCtx)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbEnabled,
		"redis_enabled", a.rdb != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.closeStores()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.closeStores()
		return err
	}

	a.closeStores()
	a.log.Info("server.stopped")
	return nil
}

// newSessionStores picks Redis-backed session and revocation stores when
// Redis is configured, in-memory otherwise.
func (a *App) newSessionStores(ctx context.Context, sessCfg session.Config) (session.Store, revocation.Store, error) {
	if a.cfg.RedisAddr == "" {
		a.log.Info("sessions.inmemory_store")

		sessions, err := session.NewMemoryStore(sessCfg)
		if err != nil {
			return nil, nil, err
		}
		revoked, err := revocation.NewMemoryStore(sessCfg.SweepInterval)
		if err != nil {
			return nil, nil, err
		}
		a.runners = append(a.runners, sessions.Run, revoked.Run)
		return sessions, revoked, nil
	}

	rdb, err := NewRedisClient(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.rdb = rdb
	a.log.Info("sessions.redis_store", "addr", a.cfg.RedisAddr)

	// Redis key TTLs handle expiry; no sweepers to run.
	sessions, err := session.NewRedisStore(sessCfg, rdb)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := revocation.NewRedisStore(rdb)
	if err != nil {
		return nil, nil, err
	}
	return sessions, revoked, nil
}

// newDirectory picks the Postgres user directory when a database is
// configured, an empty in-memory one otherwise.
func (a *App) newDirectory(ctx context.Context) (directory.UserDirectory, directory.RoleDirectory, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("directory.inmemory", "hint", "set EDU_DATABASE_URL for the postgres directory")
		dir := directory.NewMemoryDirectory()
		dir.SeedBuiltinRoles()
		return dir, dir.Roles(), nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.dbPool = pool
	a.dbEnabled = true
	a.log.Info("directory.postgres")

	users, err := directory.NewPostgresDirectory(pool)
	if err != nil {
		return nil, nil, err
	}
	roles, err := directory.NewPostgresRoles(pool)
	if err != nil {
		return nil, nil, err
	}
	return users, roles, nil
}

func (a *App) closeStores() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

// directoryActive adapts the user directory to the gateway's per-request
// account check.
type directoryActive struct {
	users directory.UserDirectory
}

func (d directoryActive) IsActive(ctx context.Context, subjectID string) (bool, error) {
	u, err := d.users.FindByID(ctx, subjectID)
	if errors.Is(err, directory.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Enabled, nil
}
