// Package session implements the server-side session registry and the
// high-level login/refresh/logout flows built on top of it.
//
// A session binds a subject to an active login. It is the single source of
// truth for whether an otherwise valid access token is still usable: access
// tokens reference their session by ID, and a deleted or expired session
// rejects the token regardless of its signature and expiry.
//
// Two Store implementations are provided: an in-process map for development
// and tests, and a Redis-backed store for multi-instance deployments.
package session
