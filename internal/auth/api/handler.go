// Package authapi exposes the authentication subsystem over HTTP.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"eduportal/internal/auth/gateway"
	"eduportal/internal/auth/rateguard"
	"eduportal/internal/auth/session"
	"eduportal/internal/auth/token"
	"eduportal/internal/metrics"
)

// Handler wires the auth endpoints to the session service and gateway.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     *session.Service
	gw      *gateway.Gateway
	guard   *rateguard.Guard
	metrics *metrics.Metrics
	clock   func() time.Time
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handler)

// WithClock overrides the handler's time source.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(
	log *slog.Logger,
	cfg Config,
	svc *session.Service,
	gw *gateway.Gateway,
	guard *rateguard.Guard,
	m *metrics.Metrics,
	opts ...HandlerOption,
) (*Handler, error) {
	if svc == nil || gw == nil || guard == nil || m == nil {
		return nil, errors.New("authapi: missing dependency")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:     log,
		cfg:     cfg.withDefaults(),
		svc:     svc,
		gw:      gw,
		guard:   guard,
		metrics: m,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires the auth routes onto mux. Login and validate sit behind
// the rate guard; the others are already bounded by token checks.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.guarded(h.handleLogin))
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/logout-all", h.handleLogoutAll)
	mux.HandleFunc("GET /auth/validate", h.guarded(h.handleValidate))
	mux.HandleFunc("GET /auth/me", h.handleMe)
}

// guarded runs the rate guard before the wrapped handler. A flagged
// request is rejected with 429 and a Retry-After hint.
func (h *Handler) guarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := h.guard.Check(h.clock(), h.clientKey(r), r.Method, r.URL.Path)
		if v.Flagged {
			h.metrics.RateGuardFlags.WithLabelValues(string(v.Rule)).Inc()
			h.log.WarnContext(r.Context(), "request rate limited",
				slog.String("path", r.URL.Path),
				slog.String("rule", string(v.Rule)),
				slog.String("event_id", v.EventID),
			)
			writeRateLimited(w, v.RetryAfter)
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "email and password are required")
		return
	}

	res, err := h.svc.Login(r.Context(), session.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Device: session.DeviceInfo{
			UserAgent: strings.TrimSpace(r.UserAgent()),
			IP:        clientIP(r, h.cfg.TrustProxy),
		},
	})
	if err != nil {
		h.metrics.Logins.WithLabelValues(loginResult(err)).Inc()
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.Logins.WithLabelValues("success").Inc()
	h.metrics.SessionsOpened.Inc()

	if h.cfg.RefreshCookieEnabled {
		h.setRefreshCookie(w, res.RefreshToken)
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		User:         toUserResponse(res.Subject),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil && r.ContentLength > 0 {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	// Browser clients carry the token in the scoped cookie instead.
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		raw, _ = h.refreshTokenFromCookie(r)
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "refresh token is required")
		return
	}

	res, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		h.metrics.Refreshes.WithLabelValues(refreshResult(err)).Inc()
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.Refreshes.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, refreshResponse{
		Success:     true,
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := gateway.ExtractToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "TOKEN_MISSING", "authentication required")
		return
	}

	if err := h.svc.Logout(r.Context(), raw); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.SessionsClosed.Inc()
	if h.cfg.RefreshCookieEnabled {
		h.clearRefreshCookie(w)
	}
	writeJSON(w, http.StatusOK, logoutResponse{Success: true})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, err := h.gw.AuthenticateRequest(r)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	count, err := h.svc.LogoutAll(r.Context(), id.SubjectID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.metrics.SessionsClosed.Add(float64(count))
	if h.cfg.RefreshCookieEnabled {
		h.clearRefreshCookie(w)
	}
	writeJSON(w, http.StatusOK, logoutAllResponse{Success: true, RemovedSessions: count})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := h.gw.AuthenticateRequest(r)
	if err != nil {
		var rej *gateway.RejectionError
		if errors.As(err, &rej) {
			h.metrics.AuthRejections.WithLabelValues(string(rej.Reason)).Inc()
			writeJSON(w, http.StatusUnauthorized, invalidResponse{
				Valid:   false,
				Message: "invalid or expired credentials",
				Code:    string(rej.Reason),
			})
			return
		}
		h.log.ErrorContext(r.Context(), "validate failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Success: true,
		Valid:   true,
		Session: toSessionResponse(id.Session),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := h.gw.AuthenticateRequest(r)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Success: true,
		User: userResponse{
			ID:          id.SubjectID,
			Email:       id.Email,
			Role:        id.Role,
			Permissions: id.Permissions,
		},
	})
}

// writeAuthError maps gateway rejections to the stable 401 shape.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *gateway.RejectionError
	if errors.As(err, &rej) {
		h.metrics.AuthRejections.WithLabelValues(string(rej.Reason)).Inc()
		writeError(w, http.StatusUnauthorized, string(rej.Reason), "invalid or expired credentials")
		return
	}
	h.log.ErrorContext(r.Context(), "authentication failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// writeServiceError maps session service errors to HTTP statuses. All
// authentication failures are 401; only the retryable directory timeout
// surfaces as 503.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	case errors.Is(err, session.ErrUserInactive):
		writeError(w, http.StatusUnauthorized, "USER_INACTIVE", "account disabled")
	case errors.Is(err, session.ErrNoRoleAssigned):
		writeError(w, http.StatusUnauthorized, "NO_ROLE", "no role assigned")
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired")
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "SESSION_NOT_FOUND", "session not found")
	case errors.Is(err, token.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
	case errors.Is(err, token.ErrWrongType):
		writeError(w, http.StatusUnauthorized, "TOKEN_WRONG_TYPE", "wrong token type")
	case errors.Is(err, token.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, "TOKEN_MALFORMED", "malformed token")
	case errors.Is(err, token.ErrBadSignature), errors.Is(err, token.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "invalid token")
	case errors.Is(err, session.ErrDirectoryTimeout):
		writeError(w, http.StatusServiceUnavailable, "DIRECTORY_TIMEOUT", "please retry later")
	default:
		h.log.ErrorContext(r.Context(), "auth request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, session.ErrUserInactive):
		return "user_inactive"
	case errors.Is(err, session.ErrNoRoleAssigned):
		return "no_role"
	case errors.Is(err, session.ErrDirectoryTimeout):
		return "directory_timeout"
	default:
		return "error"
	}
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		return "session_gone"
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, session.ErrUserInactive):
		return "user_inactive"
	case errors.Is(err, session.ErrDirectoryTimeout):
		return "directory_timeout"
	default:
		return "error"
	}
}

// clientKey identifies the caller for rate-guard bookkeeping.
func (h *Handler) clientKey(r *http.Request) string {
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		return ip.String()
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
