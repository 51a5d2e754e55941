package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/entryway-auth/entryway/config"
	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/internal/bruteforce"
	"github.com/entryway-auth/entryway/internal/metrics"
	"github.com/entryway-auth/entryway/notify"
)

// ConfirmResult is what a successful token redemption yields: the claimed
// session, its principal and the established login id.
type ConfirmResult struct {
	Session   *domain.Session
	Principal domain.PrincipalRef
	LoginID   string
}

// FlowService orchestrates the passwordless flow: request sign-in, deliver,
// confirm, establish login, sign out.
type FlowService struct {
	sessions *SessionService
	registry *domain.PrincipalRegistry
	logins   domain.LoginStore
	sender   notify.Sender
	policy   *config.Policy
	delay    bruteforce.Delayer
	baseURL  string
	now      func() time.Time
}

// NewFlowService creates a FlowService. baseURL is the external URL magic
// links point at; delay is the anti-brute-force work performed on confirm.
func NewFlowService(
	sessions *SessionService,
	registry *domain.PrincipalRegistry,
	logins domain.LoginStore,
	sender notify.Sender,
	policy *config.Policy,
	baseURL string,
	delay bruteforce.Delayer,
) *FlowService {
	return &FlowService{
		sessions: sessions,
		registry: registry,
		logins:   logins,
		sender:   sender,
		policy:   policy,
		delay:    delay,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// NormalizeIdentifier prepares an identifying value for lookup: emails are
// matched trimmed and case-insensitively.
func NormalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// RequestSignIn resolves the principal behind value and creates a session for
// it. When the value resolves to nothing: with paranoid mode off the caller
// gets ErrPrincipalNotFound; with it on, a session is created for a
// placeholder principal and delivery is suppressed, so the response cannot be
// told apart from a genuine one.
func (f *FlowService) RequestSignIn(ctx context.Context, kind, value string, meta notify.RequestMeta) (*SessionWithToken, error) {
	metrics.SignInRequestedTotal.Inc()

	resolver, err := f.registry.Resolver(kind)
	if err != nil {
		return nil, err
	}

	normalized := NormalizeIdentifier(value)

	placeholder := false
	ref, err := resolver.FindByIdentifyingValue(ctx, normalized)
	switch {
	case errors.Is(err, domain.ErrPrincipalNotFound):
		if !f.policy.Paranoid {
			log.Debug().Str("principal_kind", kind).Msg("Sign-in requested for unknown principal")
			return nil, err
		}
		ref = domain.PrincipalRef{Kind: kind, ID: uuid.NewString()}
		placeholder = true
	case err != nil:
		return nil, fmt.Errorf("resolving principal: %w", err)
	}

	swt, err := f.sessions.Create(ctx, ref, meta)
	if err != nil {
		return nil, err
	}

	if placeholder {
		// The session exists so timing stays comparable, but nothing is sent:
		// there is no real recipient behind it.
		log.Debug().
			Str("principal_kind", kind).
			Str("session_identifier", swt.Session.Identifier).
			Msg("Paranoid mode: delivery suppressed for placeholder principal")
		return swt, nil
	}

	msg := notify.Message{
		Recipient:         normalized,
		PrincipalKind:     kind,
		SessionIdentifier: swt.Session.Identifier,
		Token:             swt.Token,
		ConfirmURL:        f.confirmURL(kind, swt.Session.Identifier, swt.Token),
	}
	if err := f.sender.Send(ctx, msg, meta); err != nil {
		log.Error().Err(err).
			Str("session_identifier", swt.Session.Identifier).
			Msg("Sign-in message delivery failed")
		return nil, fmt.Errorf("delivering sign-in message: %w", err)
	}

	return swt, nil
}

// FindSession looks up a pending session by identifier. A session identifier
// is only meaningful under the kind it was minted for.
func (f *FlowService) FindSession(ctx context.Context, kind, identifier string) (*domain.Session, error) {
	session, err := f.sessions.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if session.PrincipalKind != kind {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Confirm redeems candidate against the session identified by identifier,
// establishes login state and returns the result. Failure modes keep their
// distinct domain errors so the HTTP layer can pick status and message.
func (f *FlowService) Confirm(ctx context.Context, kind, identifier, candidate string) (*ConfirmResult, error) {
	session, err := f.FindSession(ctx, kind, identifier)
	if err != nil {
		return nil, err
	}

	// Deliberately slow, whatever the outcome, so guessing short codes online
	// stays expensive.
	if f.policy.CombatBruteForce {
		f.delay(candidate)
	}

	if session.TimedOut(f.now()) {
		metrics.ConfirmFailureTotal.Inc()
		return nil, domain.ErrSessionTimedOut
	}

	if !f.sessions.Authenticate(session, candidate) {
		metrics.ConfirmFailureTotal.Inc()
		return nil, domain.ErrInvalidToken
	}

	if err := f.sessions.Claim(ctx, session); err != nil {
		metrics.ConfirmFailureTotal.Inc()
		return nil, err
	}

	ref := session.Principal()
	loginID, err := f.logins.CreateLogin(ctx, ref, f.policy.LoginTTL)
	if err != nil {
		return nil, fmt.Errorf("establishing login: %w", err)
	}

	metrics.ConfirmSuccessTotal.Inc()
	metrics.ActiveLoginsGauge.Inc()
	log.Info().
		Str("principal_kind", ref.Kind).
		Str("session_identifier", session.Identifier).
		Msg("Passwordless session confirmed")

	return &ConfirmResult{Session: session, Principal: ref, LoginID: loginID}, nil
}

// SignOut tears down login state and returns the configured redirect target.
// Signing out an already-absent login succeeds.
func (f *FlowService) SignOut(ctx context.Context, loginID string) (string, error) {
	if loginID != "" {
		if err := f.logins.DeleteLogin(ctx, loginID); err != nil {
			return "", fmt.Errorf("clearing login: %w", err)
		}
		metrics.ActiveLoginsGauge.Dec()
	}
	return f.policy.SignOutRedirect(nil), nil
}

// CurrentPrincipal resolves an established login id back to its principal.
func (f *FlowService) CurrentPrincipal(ctx context.Context, loginID string) (domain.PrincipalRef, error) {
	return f.logins.GetLogin(ctx, loginID)
}

// SaveLocation remembers where the client was headed before the challenge.
func (f *FlowService) SaveLocation(ctx context.Context, key, location string) error {
	return f.logins.SaveLocation(ctx, key, location, time.Hour)
}

// TakeSavedLocation returns and clears the saved pre-challenge location.
func (f *FlowService) TakeSavedLocation(ctx context.Context, key string) string {
	location, err := f.logins.TakeLocation(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read saved location")
		return ""
	}
	return location
}

// SuccessRedirect resolves the post-login target: an explicit destination
// wins if it stays on requestHost (foreign hosts fall through, closing the
// open-redirect hole), then the saved pre-challenge location, then the
// configured default.
func (f *FlowService) SuccessRedirect(ref domain.PrincipalRef, requestHost, destination, saved string) string {
	if destination != "" && sameHost(destination, requestHost) {
		return destination
	}
	if f.policy.RedirectBackAfterSignIn && saved != "" {
		return saved
	}
	return f.policy.SuccessRedirect(&ref)
}

// FailureRedirect resolves the target for recoverable confirm failures
// (timed out, already claimed).
func (f *FlowService) FailureRedirect() string {
	return f.policy.FailureRedirect(nil)
}

func (f *FlowService) confirmURL(kind, identifier, plaintext string) string {
	return fmt.Sprintf("%s/%s/sign_in/%s/%s", f.baseURL, kind, identifier, url.PathEscape(plaintext))
}

// sameHost accepts relative paths and absolute http(s) URLs on host. Opaque
// and scheme-only URLs ("javascript:...") never pass.
func sameHost(destination, host string) bool {
	u, err := url.Parse(destination)
	if err != nil {
		return false
	}
	if u.Opaque != "" {
		return false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host == "" || u.Host == host
}
