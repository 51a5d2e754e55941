package domain

import (
	"crypto/hmac"
	"time"
)

// Session binds an authenticatable principal to a one-time token and its
// validity window. Only the keyed digest of the token is ever stored; the
// plaintext exists in memory just long enough to be delivered.
type Session struct {
	ID            string     `bson:"_id,omitempty"`
	Identifier    string     `bson:"identifier"` // opaque public reference, used in URLs
	PrincipalKind string     `bson:"principal_kind"`
	PrincipalID   string     `bson:"principal_id"`
	TokenDigest   string     `bson:"token_digest"`
	ExpiresAt     time.Time  `bson:"expires_at"`
	TimeoutAt     time.Time  `bson:"timeout_at"`
	ClaimedAt     *time.Time `bson:"claimed_at,omitempty"`
	RemoteAddr    string     `bson:"remote_addr,omitempty"`
	UserAgent     string     `bson:"user_agent,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
}

// Digester computes the keyed digest of a plaintext token. Implemented by
// token.Codec; declared here so the entity stays free of crypto wiring.
type Digester interface {
	Digest(plaintext string) string
}

// Expired reports whether the session is past its absolute lifetime.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TimedOut reports whether the redemption window has closed.
func (s *Session) TimedOut(now time.Time) bool {
	return !now.Before(s.TimeoutAt)
}

// Available reports whether the session still counts for digest uniqueness.
func (s *Session) Available(now time.Time) bool {
	return !s.Expired(now)
}

// Claimed reports whether the token has already been redeemed.
func (s *Session) Claimed() bool {
	return s.ClaimedAt != nil
}

// Authenticate compares the digest of candidate against the stored digest in
// constant time. It never mutates the session.
func (s *Session) Authenticate(d Digester, candidate string) bool {
	return hmac.Equal([]byte(d.Digest(candidate)), []byte(s.TokenDigest))
}

// Claim marks the token as redeemed. With reuse restriction enabled a second
// claim fails with ErrTokenAlreadyClaimed and ClaimedAt is never overwritten.
// With reuse restriction disabled Claim is a no-op that never fails, so a link
// may be redeemed repeatedly within its timeout window.
func (s *Session) Claim(now time.Time, restrictReuse bool) error {
	if !restrictReuse {
		return nil
	}
	if s.Claimed() {
		return ErrTokenAlreadyClaimed
	}
	s.ClaimedAt = &now
	return nil
}

// Principal returns the polymorphic reference stored on the session.
func (s *Session) Principal() PrincipalRef {
	return PrincipalRef{Kind: s.PrincipalKind, ID: s.PrincipalID}
}
