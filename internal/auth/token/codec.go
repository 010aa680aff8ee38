package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	minSecretBytes = 32
)

// Clock supplies the current time. It is injected so that expiry behavior
// is testable without sleeping.
type Clock func() time.Time

// Config defines the immutable signing parameters for a Codec.
type Config struct {
	// Secret is the HMAC signing key. Must be at least 32 bytes.
	Secret []byte

	// Issuer is set in the "iss" claim and enforced on verification when
	// non-empty.
	Issuer string

	// Audience is set in the "aud" claim and enforced on verification when
	// non-empty.
	Audience string

	// AccessTTL is the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh tokens.
	RefreshTTL time.Duration

	// Leeway tolerates minor clock differences during verification.
	Leeway time.Duration
}

// Subject is the identity encoded into an access token.
type Subject struct {
	ID          string
	Email       string
	Role        string
	Permissions []string
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	SessionID   string   `json:"sid"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It deliberately carries
// no identity beyond the subject ID; everything else is reloaded from the
// directory on refresh.
type RefreshClaims struct {
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed tokens.
type Codec struct {
	cfg   Config
	clock Clock
}

// NewCodec validates cfg and constructs a Codec. A nil clock defaults to
// time.Now in UTC.
func NewCodec(cfg Config, clock Clock) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, ErrConfig
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrConfig
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, ErrConfig
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, ErrConfig
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Codec{cfg: cfg, clock: clock}, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// Now returns the codec's view of the current time.
func (c *Codec) Now() time.Time { return c.clock() }

// IssueAccess encodes sub into a signed access token bound to sessionID.
func (c *Codec) IssueAccess(sub Subject, sessionID string) (string, time.Time, error) {
	now := c.clock()
	exp := now.Add(c.cfg.AccessTTL)

	claims := AccessClaims{
		Email:       sub.Email,
		Role:        sub.Role,
		Permissions: sub.Permissions,
		SessionID:   sessionID,
		TokenType:   typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh encodes a refresh token for subjectID bound to sessionID.
// The token carries a unique JTI so individual refresh tokens remain
// distinguishable in logs.
func (c *Codec) IssueRefresh(subjectID, sessionID string) (string, time.Time, error) {
	now := c.clock()
	exp := now.Add(c.cfg.RefreshTTL)

	claims := RefreshClaims{
		SessionID: sessionID,
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess checks signature, expiry, issuer/audience, and token type.
func (c *Codec) VerifyAccess(raw string) (AccessClaims, error) {
	var claims AccessClaims
	if err := c.verify(raw, &claims); err != nil {
		return AccessClaims{}, err
	}
	if claims.TokenType != typeAccess {
		return AccessClaims{}, ErrWrongType
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return AccessClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry, issuer/audience, and token type.
func (c *Codec) VerifyRefresh(raw string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.verify(raw, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if claims.TokenType != typeRefresh {
		return RefreshClaims{}, ErrWrongType
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return RefreshClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) verify(raw string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.clock() }),
		jwt.WithExpirationRequired(),
	}
	if c.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(c.cfg.Leeway))
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}
	if c.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.cfg.Audience))
	}

	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.cfg.Secret, nil
	})
	if err != nil {
		return mapJWTError(err)
	}
	if !tok.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenInvalid
	}
}
