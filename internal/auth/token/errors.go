package token

import "errors"

var (
	// ErrTokenExpired is returned when a token's expiry is in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")

	// ErrTokenMalformed is returned when the token cannot be decoded at all.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrWrongType is returned when an access token is presented where a
	// refresh token is expected, or vice versa.
	ErrWrongType = errors.New("wrong token type")

	// ErrTokenInvalid is returned for verification failures that are not
	// covered by a more specific sentinel (issuer/audience mismatch etc).
	ErrTokenInvalid = errors.New("token invalid")

	// ErrConfig is returned for invalid codec configuration.
	ErrConfig = errors.New("invalid token config")
)
