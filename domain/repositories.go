package domain

import (
	"context"
	"time"
)

// SessionRepository is the persistence boundary for passwordless sessions.
// Sessions are never deleted by the flow; expired-session cleanup is the
// store's concern (TTL index in the MongoDB implementation).
type SessionRepository interface {
	// Insert persists a new session. Returns ErrDuplicateTokenDigest when the
	// digest collides with an available session, so the caller can regenerate.
	Insert(ctx context.Context, session *Session) error

	// FindByIdentifier looks a session up by its opaque public identifier.
	// Returns ErrSessionNotFound if unknown.
	FindByIdentifier(ctx context.Context, identifier string) (*Session, error)

	// FindByTokenDigest looks a session up by principal kind and token digest.
	// Returns ErrSessionNotFound if unknown.
	FindByTokenDigest(ctx context.Context, kind, digest string) (*Session, error)

	// MarkClaimed sets claimed_at exactly once. Returns ErrTokenAlreadyClaimed
	// when the session was claimed before, enforcing claim-once under
	// concurrent redeem attempts at the store level.
	MarkClaimed(ctx context.Context, id string, at time.Time) error
}

// LoginStore holds established login state and pre-challenge locations,
// keyed by opaque ids carried in cookies. Implementations: in-memory ttlcache
// for a single process, Redis for anything shared.
type LoginStore interface {
	// CreateLogin establishes login state for a principal and returns the
	// opaque login id to hand to the client.
	CreateLogin(ctx context.Context, ref PrincipalRef, ttl time.Duration) (string, error)

	// GetLogin resolves a login id back to its principal. Returns
	// ErrSessionNotFound for unknown or expired ids.
	GetLogin(ctx context.Context, id string) (PrincipalRef, error)

	// DeleteLogin tears down login state. Deleting an unknown id is not an error.
	DeleteLogin(ctx context.Context, id string) error

	// SaveLocation remembers where a client was headed before the sign-in
	// challenge, so Confirm can send it back there.
	SaveLocation(ctx context.Context, key, location string, ttl time.Duration) error

	// TakeLocation returns and clears the saved location, or "" if none.
	TakeLocation(ctx context.Context, key string) (string, error)
}
