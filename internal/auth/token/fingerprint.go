package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const minFingerprintKeyBytes = 32

// Fingerprinter derives deterministic, non-reversible lookup keys from raw
// tokens so that revocation and session state never store token plaintext.
//
// With a key configured the derivation is HMAC-SHA256; without one it falls
// back to plain SHA-256, which is acceptable for development only.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter constructs a Fingerprinter. A non-empty key must be at
// least 32 bytes.
func NewFingerprinter(key []byte) (*Fingerprinter, error) {
	if len(key) > 0 && len(key) < minFingerprintKeyBytes {
		return nil, ErrConfig
	}
	return &Fingerprinter{key: key}, nil
}

// Fingerprint returns a 64-char hex digest of raw.
func (f *Fingerprinter) Fingerprint(raw string) string {
	if len(f.key) == 0 {
		sum := sha256.Sum256([]byte(raw))
		return hex.EncodeToString(sum[:])
	}
	m := hmac.New(sha256.New, f.key)
	_, _ = m.Write([]byte(raw))
	return hex.EncodeToString(m.Sum(nil))
}
