package config

import (
	"time"

	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/internal/token"
)

// Default validity windows. Expiry bounds storage growth and supports audit;
// timeout is the actual brute-force defense.
const (
	DefaultExpiry  = 365 * 24 * time.Hour
	DefaultTimeout = 10 * time.Minute
)

// InstantFunc computes an absolute instant for a session being created. It
// receives the session so policies can vary per principal.
type InstantFunc func(s *domain.Session) time.Time

// RedirectFunc resolves a redirect path. ref is nil when no principal is in
// scope (e.g. sign-out), so a static path can ignore it.
type RedirectFunc func(ref *domain.PrincipalRef) string

// StaticPath adapts a literal path into a RedirectFunc.
func StaticPath(path string) RedirectFunc {
	return func(*domain.PrincipalRef) string { return path }
}

// Policy centralizes the passwordless flow's behavior knobs. Build one with
// DefaultPolicy, adjust with Configure, and pass it into the services
// explicitly; there is no process-wide singleton, which keeps tests isolated.
type Policy struct {
	// DigestAlgorithm selects the HMAC hash for token digests.
	DigestAlgorithm token.Algorithm

	// TokenGenerator produces plaintext tokens.
	TokenGenerator token.Generator

	// ExpiresAt and TimeoutAt compute the session's validity windows.
	ExpiresAt InstantFunc
	TimeoutAt InstantFunc

	// RestrictTokenReuse makes claiming single-use. Off by default: a magic
	// link may be opened more than once within its timeout window.
	RestrictTokenReuse bool

	// Paranoid hides whether an identifying value resolves to a real
	// principal, defeating account enumeration via the sign-in form.
	Paranoid bool

	// CombatBruteForce runs the deliberate bcrypt delay on every confirm.
	CombatBruteForce bool

	// RedirectBackAfterSignIn honors the location saved before the challenge.
	RedirectBackAfterSignIn bool

	SuccessRedirect RedirectFunc
	FailureRedirect RedirectFunc
	SignOutRedirect RedirectFunc

	// LoginTTL bounds how long an established login stays valid.
	LoginTTL time.Duration
}

// DefaultPolicy returns a Policy with every knob at its default. Tests reset
// by constructing a fresh one.
func DefaultPolicy() *Policy {
	return &Policy{
		DigestAlgorithm:         token.SHA256,
		TokenGenerator:          token.URLSafeGenerator{},
		ExpiresAt:               func(*domain.Session) time.Time { return time.Now().Add(DefaultExpiry) },
		TimeoutAt:               func(*domain.Session) time.Time { return time.Now().Add(DefaultTimeout) },
		RestrictTokenReuse:      false,
		Paranoid:                false,
		CombatBruteForce:        true,
		RedirectBackAfterSignIn: true,
		SuccessRedirect:         StaticPath("/"),
		FailureRedirect:         StaticPath("/"),
		SignOutRedirect:         StaticPath("/"),
		LoginTTL:                720 * time.Hour,
	}
}

// Configure applies a scoped mutation to the policy.
func (p *Policy) Configure(fn func(*Policy)) *Policy {
	fn(p)
	return p
}
