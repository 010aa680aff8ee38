// Package revocation implements the access-token denylist.
//
// Entries are keyed by token fingerprint and carry the revoked token's own
// expiry, so the store is self-bounding: nothing ever needs to be retained
// past the natural lifetime of the token it blocks.
package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrConfig is returned for invalid store configuration.
var ErrConfig = errors.New("invalid revocation config")

// Store abstracts the denylist. Implementations are safe for concurrent
// use; IsRevoked never reports true for an entry past its expiry.
type Store interface {
	// Revoke marks fingerprint as revoked until expiresAt. Entries are
	// dropped once expiresAt passes.
	Revoke(ctx context.Context, fingerprint string, expiresAt time.Time) error

	// IsRevoked reports whether fingerprint is currently revoked at now.
	IsRevoked(ctx context.Context, now time.Time, fingerprint string) (bool, error)
}
