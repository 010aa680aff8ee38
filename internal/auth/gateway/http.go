package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// AccessTokenCookie is the cookie checked when no bearer header is present.
const AccessTokenCookie = "access_token"

// accessTokenQueryParam is the query-parameter fallback for constrained
// clients that cannot set headers or cookies.
const accessTokenQueryParam = "access_token"

type ctxKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom extracts the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// ExtractToken pulls the access token from the request, checking the bearer
// header, then the scoped cookie, then the query parameter as a last
// resort.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(accessTokenQueryParam)
}

// AuthenticateRequest extracts and verifies the request's access token.
func (g *Gateway) AuthenticateRequest(r *http.Request) (Identity, error) {
	return g.Authenticate(r.Context(), ExtractToken(r))
}

// Middleware rejects unauthenticated requests with a 401 and otherwise
// forwards them with the identity in the request context.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.AuthenticateRequest(r)
		if err != nil {
			g.writeRejection(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (g *Gateway) writeRejection(w http.ResponseWriter, r *http.Request, err error) {
	var rej *RejectionError
	if !errors.As(err, &rej) {
		g.log.ErrorContext(r.Context(), "authentication failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusInternalServerError, rejectionBody{
			Message: "internal error",
			Code:    "INTERNAL",
		})
		return
	}

	g.log.DebugContext(r.Context(), "request rejected",
		slog.String("path", r.URL.Path),
		slog.String("reason", string(rej.Reason)),
	)
	writeJSON(w, http.StatusUnauthorized, rejectionBody{
		Message: rejectionMessage(rej.Reason),
		Code:    string(rej.Reason),
	})
}

// rejectionBody is the stable error shape shared with the auth handlers.
type rejectionBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func rejectionMessage(reason Reason) string {
	switch reason {
	case ReasonTokenMissing:
		return "authentication required"
	case ReasonTokenExpired:
		return "access token expired"
	case ReasonTokenRevoked:
		return "access token revoked"
	case ReasonSessionExpired:
		return "session expired"
	case ReasonUserInactive:
		return "account disabled"
	default:
		return "invalid access token"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
