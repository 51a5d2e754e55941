package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/entryway-auth/entryway/config"
	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/internal/metrics"
	"github.com/entryway-auth/entryway/internal/token"
	"github.com/entryway-auth/entryway/notify"
)

// maxTokenAttempts bounds the generate-digest-insert loop. Hitting the cap
// with 32 bytes of entropy means something other than bad luck is wrong.
const maxTokenAttempts = 5

// SessionWithToken pairs a persisted session with its plaintext token. The
// plaintext exists only in this value, for the duration of delivery.
type SessionWithToken struct {
	Session *domain.Session
	Token   string
}

// SessionService owns session creation and the claim/authenticate operations
// that need the codec or the store.
type SessionService struct {
	repo   domain.SessionRepository
	codec  *token.Codec
	policy *config.Policy
	now    func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(repo domain.SessionRepository, codec *token.Codec, policy *config.Policy) *SessionService {
	return &SessionService{
		repo:   repo,
		codec:  codec,
		policy: policy,
		now:    time.Now,
	}
}

// Create generates a token, digests it and persists a new session for ref.
// The store's uniqueness constraint is the arbiter: on a digest conflict the
// loop regenerates rather than trusting any pre-check, so two racing
// creations cannot both keep the same digest.
func (s *SessionService) Create(ctx context.Context, ref domain.PrincipalRef, meta notify.RequestMeta) (*SessionWithToken, error) {
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		plaintext, err := s.policy.TokenGenerator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating token: %w", err)
		}

		session := &domain.Session{
			Identifier:    uuid.NewString(),
			PrincipalKind: ref.Kind,
			PrincipalID:   ref.ID,
			TokenDigest:   s.codec.Digest(plaintext),
			RemoteAddr:    meta.RemoteAddr,
			UserAgent:     meta.UserAgent,
			CreatedAt:     s.now(),
		}
		session.ExpiresAt = s.policy.ExpiresAt(session)
		session.TimeoutAt = s.policy.TimeoutAt(session)

		if err := s.repo.Insert(ctx, session); err != nil {
			if errors.Is(err, domain.ErrDuplicateTokenDigest) {
				log.Warn().
					Int("attempt", attempt).
					Str("principal_kind", ref.Kind).
					Msg("Token digest collision, regenerating")
				continue
			}
			return nil, fmt.Errorf("persisting session: %w", err)
		}

		metrics.SessionsCreatedTotal.Inc()
		return &SessionWithToken{Session: session, Token: plaintext}, nil
	}

	log.Error().
		Int("attempts", maxTokenAttempts).
		Str("principal_kind", ref.Kind).
		Msg("Token generation kept colliding, giving up")
	return nil, domain.ErrTokenCollision
}

// FindByIdentifier looks a session up by its opaque public identifier.
func (s *SessionService) FindByIdentifier(ctx context.Context, identifier string) (*domain.Session, error) {
	return s.repo.FindByIdentifier(ctx, identifier)
}

// Authenticate checks candidate against the session's stored digest.
func (s *SessionService) Authenticate(session *domain.Session, candidate string) bool {
	return session.Authenticate(s.codec, candidate)
}

// Claim redeems the session's token once. Under reuse restriction the store
// enforces claim-once, so concurrent redeems race safely; without it Claim is
// a no-op.
func (s *SessionService) Claim(ctx context.Context, session *domain.Session) error {
	if !s.policy.RestrictTokenReuse {
		return nil
	}

	now := s.now()
	if err := session.Claim(now, true); err != nil {
		return err
	}
	if err := s.repo.MarkClaimed(ctx, session.ID, now); err != nil {
		return err
	}
	return nil
}
