package domain

import "errors"

// Domain error taxonomy. Callers select HTTP status and user messaging with
// errors.Is; the state machine never renders messages itself.
var (
	// ErrPrincipalNotFound means the identifying value resolved to nothing.
	// Recovered locally: 404 in normal mode, synthesized success in paranoid mode.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrSessionNotFound means an unknown session identifier was presented.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenAlreadyClaimed means the token was redeemed before and reuse
	// restriction is active.
	ErrTokenAlreadyClaimed = errors.New("token already claimed")

	// ErrSessionTimedOut means redemption was attempted after the timeout window.
	ErrSessionTimedOut = errors.New("session timed out")

	// ErrInvalidToken means the candidate token's digest did not match. The
	// claim is not consumed, so the user may retry within the window.
	ErrInvalidToken = errors.New("invalid token")

	// ErrResolverNotRegistered is a setup error: a principal kind was never
	// registered with a resolver. Raised loudly, never swallowed.
	ErrResolverNotRegistered = errors.New("no resolver registered for principal kind")

	// ErrDuplicateTokenDigest is returned by stores when an insert races an
	// existing available session with the same digest. The creation loop
	// retries with a fresh token.
	ErrDuplicateTokenDigest = errors.New("token digest already exists")

	// ErrTokenCollision means token generation kept colliding until the retry
	// cap was hit. Indicates broken entropy or a persistently failing store.
	ErrTokenCollision = errors.New("token generation exhausted uniqueness retries")
)
