package domain_test

import (
	"testing"
	"time"

	"github.com/entryway-auth/entryway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDigester prefixes instead of hashing so tests stay readable.
type stubDigester struct{}

func (stubDigester) Digest(plaintext string) string { return "digest:" + plaintext }

func newSession(now time.Time) *domain.Session {
	return &domain.Session{
		ID:            "sess-1",
		Identifier:    "11111111-2222-3333-4444-555555555555",
		PrincipalKind: "users",
		PrincipalID:   "user-1",
		TokenDigest:   "digest:ABC123",
		ExpiresAt:     now.Add(365 * 24 * time.Hour),
		TimeoutAt:     now.Add(10 * time.Minute),
		CreatedAt:     now,
	}
}

func TestSessionFreshPredicates(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	assert.True(t, s.Available(now))
	assert.False(t, s.Expired(now))
	assert.False(t, s.TimedOut(now))
	assert.False(t, s.Claimed())
}

func TestSessionTimeoutBoundary(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	s.TimeoutAt = now.Add(-time.Second)
	assert.True(t, s.TimedOut(now))

	s.TimeoutAt = now.Add(time.Second)
	assert.False(t, s.TimedOut(now))

	// The boundary instant itself counts as timed out.
	s.TimeoutAt = now
	assert.True(t, s.TimedOut(now))
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	s.ExpiresAt = now.Add(-time.Second)
	assert.True(t, s.Expired(now))
	assert.False(t, s.Available(now))
}

func TestSessionAuthenticate(t *testing.T) {
	s := newSession(time.Now())

	assert.True(t, s.Authenticate(stubDigester{}, "ABC123"))
	assert.False(t, s.Authenticate(stubDigester{}, "abc123"), "matching is case-sensitive")
	assert.False(t, s.Authenticate(stubDigester{}, "XYZ789"))
	assert.False(t, s.Authenticate(stubDigester{}, ""))
}

func TestSessionClaimRestricted(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	require.NoError(t, s.Claim(now, true))
	require.NotNil(t, s.ClaimedAt)
	first := *s.ClaimedAt

	err := s.Claim(now.Add(time.Minute), true)
	assert.ErrorIs(t, err, domain.ErrTokenAlreadyClaimed)
	assert.Equal(t, first, *s.ClaimedAt, "claimed_at is never overwritten")
}

func TestSessionClaimUnrestricted(t *testing.T) {
	now := time.Now()
	s := newSession(now)

	require.NoError(t, s.Claim(now, false))
	require.NoError(t, s.Claim(now, false))
	assert.Nil(t, s.ClaimedAt, "unrestricted claim does not consume the token")
}

func TestSessionPrincipal(t *testing.T) {
	s := newSession(time.Now())
	ref := s.Principal()

	assert.Equal(t, "users", ref.Kind)
	assert.Equal(t, "user-1", ref.ID)
	assert.Equal(t, "users/user-1", ref.String())
}
