package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entryway-auth/entryway/config"
	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/internal/bruteforce"
	"github.com/entryway-auth/entryway/internal/token"
	"github.com/entryway-auth/entryway/notify"
	"github.com/entryway-auth/entryway/services"
)

// --- Mock implementations ---

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Insert(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Session, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) FindByTokenDigest(ctx context.Context, kind, digest string) (*domain.Session, error) {
	args := m.Called(ctx, kind, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) MarkClaimed(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockLoginStore struct {
	mock.Mock
}

func (m *MockLoginStore) CreateLogin(ctx context.Context, ref domain.PrincipalRef, ttl time.Duration) (string, error) {
	args := m.Called(ctx, ref, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockLoginStore) GetLogin(ctx context.Context, id string) (domain.PrincipalRef, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.PrincipalRef), args.Error(1)
}

func (m *MockLoginStore) DeleteLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLoginStore) SaveLocation(ctx context.Context, key, location string, ttl time.Duration) error {
	args := m.Called(ctx, key, location, ttl)
	return args.Error(0)
}

func (m *MockLoginStore) TakeLocation(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg notify.Message, meta notify.RequestMeta) error {
	args := m.Called(ctx, msg, meta)
	return args.Error(0)
}

type stubResolver struct {
	byValue map[string]string
	kind    string
}

func (r stubResolver) FindByID(_ context.Context, id string) (domain.PrincipalRef, error) {
	return domain.PrincipalRef{Kind: r.kind, ID: id}, nil
}

func (r stubResolver) FindByIdentifyingValue(_ context.Context, value string) (domain.PrincipalRef, error) {
	id, ok := r.byValue[value]
	if !ok {
		return domain.PrincipalRef{}, domain.ErrPrincipalNotFound
	}
	return domain.PrincipalRef{Kind: r.kind, ID: id}, nil
}

// stubGenerator hands out a fixed sequence of tokens.
type stubGenerator struct {
	tokens []string
	calls  int
}

func (g *stubGenerator) Generate() (string, error) {
	tok := g.tokens[g.calls%len(g.tokens)]
	g.calls++
	return tok, nil
}

// --- Test harness ---

type flowFixture struct {
	flow    *services.FlowService
	repo    *MockSessionRepository
	logins  *MockLoginStore
	sender  *MockSender
	policy  *config.Policy
	codec   *token.Codec
}

func newFlowFixture(t *testing.T, adjust func(*config.Policy)) *flowFixture {
	t.Helper()

	policy := config.DefaultPolicy()
	policy.TokenGenerator = &stubGenerator{tokens: []string{"ABC123"}}
	if adjust != nil {
		adjust(policy)
	}

	codec, err := token.NewCodec("test-secret", policy.DigestAlgorithm)
	require.NoError(t, err)

	repo := new(MockSessionRepository)
	logins := new(MockLoginStore)
	sender := new(MockSender)

	registry := domain.NewPrincipalRegistry()
	registry.Register("users", stubResolver{
		kind:    "users",
		byValue: map[string]string{"a@example.com": "user-1"},
	})

	sessions := services.NewSessionService(repo, codec, policy)
	flow := services.NewFlowService(
		sessions, registry, logins, sender, policy,
		"https://app.example.com", bruteforce.None(),
	)

	return &flowFixture{flow: flow, repo: repo, logins: logins, sender: sender, policy: policy, codec: codec}
}

func (f *flowFixture) storedSession(id string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:            id,
		Identifier:    "ident-1",
		PrincipalKind: "users",
		PrincipalID:   "user-1",
		TokenDigest:   f.codec.Digest("ABC123"),
		ExpiresAt:     now.Add(365 * 24 * time.Hour),
		TimeoutAt:     now.Add(10 * time.Minute),
		CreatedAt:     now,
	}
}

// --- RequestSignIn ---

func TestRequestSignInDeliversMagicLink(t *testing.T) {
	f := newFlowFixture(t, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	swt, err := f.flow.RequestSignIn(context.Background(), "users", "  A@Example.COM ", notify.RequestMeta{RemoteAddr: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, swt)

	assert.Equal(t, "ABC123", swt.Token)
	assert.Equal(t, "users", swt.Session.PrincipalKind)
	assert.Equal(t, "user-1", swt.Session.PrincipalID)
	assert.Equal(t, f.codec.Digest("ABC123"), swt.Session.TokenDigest)
	assert.NotEmpty(t, swt.Session.Identifier)

	f.sender.AssertCalled(t, "Send", mock.Anything, mock.MatchedBy(func(msg notify.Message) bool {
		return msg.Recipient == "a@example.com" &&
			msg.Token == "ABC123" &&
			msg.ConfirmURL == "https://app.example.com/users/sign_in/"+swt.Session.Identifier+"/ABC123"
	}), mock.Anything)
}

func TestRequestSignInUnknownPrincipal(t *testing.T) {
	f := newFlowFixture(t, nil)

	swt, err := f.flow.RequestSignIn(context.Background(), "users", "nobody@example.com", notify.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrPrincipalNotFound)
	assert.Nil(t, swt)

	f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestSignInParanoid(t *testing.T) {
	f := newFlowFixture(t, func(p *config.Policy) { p.Paranoid = true })
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	swt, err := f.flow.RequestSignIn(context.Background(), "users", "nobody@example.com", notify.RequestMeta{})
	require.NoError(t, err, "paranoid mode must look exactly like success")
	require.NotNil(t, swt)

	assert.Equal(t, "users", swt.Session.PrincipalKind)
	assert.NotEmpty(t, swt.Session.PrincipalID, "placeholder principal is synthesized")
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestSignInUnregisteredKind(t *testing.T) {
	f := newFlowFixture(t, nil)

	_, err := f.flow.RequestSignIn(context.Background(), "admins", "a@example.com", notify.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrResolverNotRegistered)
}

func TestRequestSignInDeliveryFailure(t *testing.T) {
	f := newFlowFixture(t, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway down"))

	_, err := f.flow.RequestSignIn(context.Background(), "users", "a@example.com", notify.RequestMeta{})
	assert.ErrorContains(t, err, "delivering sign-in message")
}

// --- Confirm ---

func TestConfirmSuccess(t *testing.T) {
	f := newFlowFixture(t, nil)
	session := f.storedSession("sess-1")
	f.repo.On("FindByIdentifier", mock.Anything, "ident-1").Return(session, nil)
	f.logins.On("CreateLogin", mock.Anything, session.Principal(), f.policy.LoginTTL).Return("login-1", nil)

	res, err := f.flow.Confirm(context.Background(), "users", "ident-1", "ABC123")
	require.NoError(t, err)

	assert.Equal(t, "login-1", res.LoginID)
	assert.Equal(t, "user-1", res.Principal.ID)
	// Reuse restriction is off by default: nothing is claimed.
	f.repo.AssertNotCalled(t, "MarkClaimed", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmWrongToken(t *testing.T) {
	f := newFlowFixture(t, nil)
	session := f.storedSession("sess-1")
	f.repo.On("FindByIdentifier", mock.Anything, "ident-1").Return(session, nil)

	_, err := f.flow.Confirm(context.Background(), "users", "ident-1", "abc123")
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "matching is case-sensitive")

	f.repo.AssertNotCalled(t, "MarkClaimed", mock.Anything, mock.Anything, mock.Anything)
	f.logins.AssertNotCalled(t, "CreateLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmTimedOut(t *testing.T) {
	f := newFlowFixture(t, nil)
	session := f.storedSession("sess-1")
	session.TimeoutAt = time.Now().Add(-time.Hour)
	f.repo.On("FindByIdentifier", mock.Anything, "ident-1").Return(session, nil)

	_, err := f.flow.Confirm(context.Background(), "users", "ident-1", "ABC123")
	assert.ErrorIs(t, err, domain.ErrSessionTimedOut)
	f.logins.AssertNotCalled(t, "CreateLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmUnknownIdentifier(t *testing.T) {
	f := newFlowFixture(t, nil)
	f.repo.On("FindByIdentifier", mock.Anything, "missing").Return(nil, domain.ErrSessionNotFound)

	_, err := f.flow.Confirm(context.Background(), "users", "missing", "ABC123")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestConfirmKindMismatch(t *testing.T) {
	f := newFlowFixture(t, nil)
	session := f.storedSession("sess-1")
	f.repo.On("FindByIdentifier", mock.Anything, "ident-1").Return(session, nil)

	_, err := f.flow.Confirm(context.Background(), "admins", "ident-1", "ABC123")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestConfirmClaimOnce(t *testing.T) {
	f := newFlowFixture(t, func(p *config.Policy) { p.RestrictTokenReuse = true })
	session := f.storedSession("sess-1")
	f.repo.On("FindByIdentifier", mock.Anything, "ident-1").Return(session, nil)
	f.repo.On("MarkClaimed", mock.Anything, "sess-1", mock.Anything).Return(nil).Once()
	f.logins.On("CreateLogin", mock.Anything, mock.Anything, mock.Anything).Return("login-1", nil)

	_, err := f.flow.Confirm(context.Background(), "users", "ident-1", "ABC123")
	require.NoError(t, err)

	_, err = f.flow.Confirm(context.Background(), "users", "ident-1", "ABC123")
	assert.ErrorIs(t, err, domain.ErrTokenAlreadyClaimed)
}

// --- SignOut ---

func TestSignOut(t *testing.T) {
	f := newFlowFixture(t, func(p *config.Policy) {
		p.SignOutRedirect = config.StaticPath("/goodbye")
	})
	f.logins.On("DeleteLogin", mock.Anything, "login-1").Return(nil)

	target, err := f.flow.SignOut(context.Background(), "login-1")
	require.NoError(t, err)
	assert.Equal(t, "/goodbye", target)
	f.logins.AssertCalled(t, "DeleteLogin", mock.Anything, "login-1")
}

func TestSignOutWithoutLogin(t *testing.T) {
	f := newFlowFixture(t, nil)

	target, err := f.flow.SignOut(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/", target)
	f.logins.AssertNotCalled(t, "DeleteLogin", mock.Anything, mock.Anything)
}

// --- Redirect resolution ---

func TestSuccessRedirect(t *testing.T) {
	ref := domain.PrincipalRef{Kind: "users", ID: "user-1"}

	t.Run("destination on same host wins", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		got := f.flow.SuccessRedirect(ref, "app.example.com", "https://app.example.com/next", "/saved")
		assert.Equal(t, "https://app.example.com/next", got)
	})

	t.Run("relative destination wins", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		assert.Equal(t, "/next", f.flow.SuccessRedirect(ref, "app.example.com", "/next", "/saved"))
	})

	t.Run("foreign host falls through to saved location", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		got := f.flow.SuccessRedirect(ref, "app.example.com", "https://evil.example.net/", "/saved")
		assert.Equal(t, "/saved", got)
	})

	t.Run("scheme-relative foreign host falls through", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		got := f.flow.SuccessRedirect(ref, "app.example.com", "//evil.example.net/", "")
		assert.Equal(t, "/", got)
	})

	t.Run("opaque scheme falls through", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		got := f.flow.SuccessRedirect(ref, "app.example.com", "javascript:alert(1)", "")
		assert.Equal(t, "/", got)
	})

	t.Run("saved location ignored when redirect-back disabled", func(t *testing.T) {
		f := newFlowFixture(t, func(p *config.Policy) { p.RedirectBackAfterSignIn = false })
		assert.Equal(t, "/", f.flow.SuccessRedirect(ref, "app.example.com", "", "/saved"))
	})

	t.Run("per-principal default", func(t *testing.T) {
		f := newFlowFixture(t, func(p *config.Policy) {
			p.SuccessRedirect = func(r *domain.PrincipalRef) string { return "/" + r.Kind + "/dashboard" }
		})
		assert.Equal(t, "/users/dashboard", f.flow.SuccessRedirect(ref, "app.example.com", "", ""))
	})
}
