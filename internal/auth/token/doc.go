// Package token implements the stateless access/refresh token codec.
//
// Tokens are compact JWS (HS256) credentials. The codec is a pure function
// over an immutable config and an injected clock: it holds no mutable state
// and is safe for concurrent use. Expected verification failures (expired,
// bad signature, wrong type, malformed) are reported as typed sentinel
// errors, never panics.
package token
