package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/events"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(domain.Identity), args.Error(1)
}

func (m *mockAuth) Verify(ctx context.Context) (domain.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Identity), args.Error(1)
}

func (m *mockAuth) Register(ctx context.Context, r domain.Registration) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

var now = time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "asha@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func asha(token string) domain.Identity {
	return domain.Identity{Token: token, Name: "Asha", Email: "asha@example.com", Role: domain.RoleAdmin, Events: []domain.EventID{"1"}}
}

type fixture struct {
	api    *mockAuth
	tokens *tokenstore.Memory
	events *events.Store
	store  *Store
}

func newFixture() *fixture {
	f := &fixture{api: &mockAuth{}, tokens: tokenstore.NewMemory(), events: events.NewStore(nil)}
	f.store = NewStore(f.api, f.tokens, f.events, WithClock(fakeClock{now: now}))
	return f
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	tok, err := f.tokens.Get(context.Background())
	require.NoError(t, err)
	return tok
}

func TestLogin_Success(t *testing.T) {
	f := newFixture()
	creds := domain.Credentials{Email: "asha@example.com", Password: "secret1"}
	f.api.On("Login", mock.Anything, creds).Return(asha("tok-1"), nil).Once()

	var states []State
	f.store.Subscribe(func() { states = append(states, f.store.State()) })

	require.NoError(t, f.store.Login(context.Background(), creds.Email, creds.Password))

	snap := f.store.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "Asha", snap.Name)
	assert.Equal(t, domain.RoleAdmin, snap.Role)
	assert.Equal(t, []domain.EventID{"1"}, snap.Events)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
	assert.Equal(t, "tok-1", f.token(t))

	assert.Contains(t, states, StateAuthenticating)
	assert.Equal(t, domain.CurrentUser{ID: "asha@example.com", Role: domain.RoleAdmin}, f.events.CurrentUser())
	assert.Equal(t, f.events.CurrentUser(), f.store.CurrentUser())
}

func TestLogin_FailureStaysAnonymous(t *testing.T) {
	f := newFixture()
	f.api.On("Login", mock.Anything, mock.Anything).
		Return(domain.Identity{}, domain.ErrAuth("login_failed", "Invalid email or password", nil)).Once()

	err := f.store.Login(context.Background(), "asha@example.com", "wrong00")
	assert.True(t, domain.IsKind(err, domain.KindAuth))
	assert.True(t, IsAuthError(err))

	snap := f.store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Equal(t, "Invalid email or password", snap.Err)
	assert.Empty(t, snap.Name)
	assert.Empty(t, f.token(t))
	assert.False(t, f.events.CurrentUser().Authenticated())
}

func TestLogin_InvalidInputSendsNothing(t *testing.T) {
	f := newFixture()

	err := f.store.Login(context.Background(), "not-an-email", "123")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.NotEmpty(t, f.store.Err())
	f.api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestVerifySession_NoTokenSendsNothing(t *testing.T) {
	f := newFixture()

	err := f.store.VerifySession(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindAuth))
	assert.Equal(t, "Please login first", f.store.Err())
	f.api.AssertNotCalled(t, "Verify", mock.Anything)
}

func TestVerifySession_ExpiredJWTSendsNothing(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.tokens.Set(context.Background(), mintToken(t, now.Add(-time.Minute))))

	err := f.store.VerifySession(context.Background())
	assert.True(t, domain.Is(err, "session_expired"))
	assert.Empty(t, f.token(t), "an expired token is discarded")
	f.api.AssertNotCalled(t, "Verify", mock.Anything)
}

func TestVerifySession_Success(t *testing.T) {
	f := newFixture()
	old := mintToken(t, now.Add(time.Hour))
	refreshed := mintToken(t, now.Add(2*time.Hour))
	require.NoError(t, f.tokens.Set(context.Background(), old))
	f.api.On("Verify", mock.Anything).Return(asha(refreshed), nil).Once()

	require.NoError(t, f.store.VerifySession(context.Background()))
	assert.Equal(t, StateAuthenticated, f.store.State())
	assert.Equal(t, refreshed, f.token(t), "the verified token is persisted again")

	// a name is present now: no second request
	require.NoError(t, f.store.VerifySession(context.Background()))
	f.api.AssertNumberOfCalls(t, "Verify", 1)
}

func TestVerifySession_OpaqueTokenGoesToServer(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.tokens.Set(context.Background(), "opaque-token"))
	f.api.On("Verify", mock.Anything).Return(domain.Identity{}, domain.ErrAuth("verify_failed", "Failed to verify session", nil)).Once()

	err := f.store.VerifySession(context.Background())
	assert.True(t, IsAuthError(err))
	assert.Equal(t, StateAnonymous, f.store.State())
	assert.Equal(t, "Failed to verify session", f.store.Err())
	f.api.AssertExpectations(t)
}

func TestRegister(t *testing.T) {
	f := newFixture()
	f.api.On("Register", mock.Anything, mock.MatchedBy(func(r domain.Registration) bool {
		return r.Email == "asha@example.com"
	})).Return("Account created", nil).Once()

	msg, err := f.store.Register(context.Background(), "Asha", "asha@example.com", "secret1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Account created", msg)
	assert.Equal(t, StateAnonymous, f.store.State(), "registration does not authenticate")
	assert.Empty(t, f.token(t))
}

func TestRegister_PasswordMismatchSendsNothing(t *testing.T) {
	f := newFixture()

	_, err := f.store.Register(context.Background(), "Asha", "asha@example.com", "secret1", "secret2")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Passwords don't match", f.store.Err())
	f.api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_ServerFailure(t *testing.T) {
	f := newFixture()
	f.api.On("Register", mock.Anything, mock.Anything).Return("", errors.New("email taken")).Once()

	_, err := f.store.Register(context.Background(), "Asha", "asha@example.com", "secret1", "secret1")
	assert.Error(t, err)
	assert.Equal(t, "email taken", f.store.Err())
	assert.Equal(t, StateAnonymous, f.store.State())
}

func TestLogout_ClearsEverythingAndFailsTogglesClosed(t *testing.T) {
	f := newFixture()
	f.api.On("Login", mock.Anything, mock.Anything).Return(asha("tok-1"), nil).Once()
	require.NoError(t, f.store.Login(context.Background(), "asha@example.com", "secret1"))

	require.NoError(t, f.store.Logout(context.Background()))

	snap := f.store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Empty(t, snap.Name)
	assert.Empty(t, snap.Email)
	assert.Equal(t, domain.RoleUser, snap.Role)
	assert.Empty(t, snap.Events)
	assert.Empty(t, f.token(t))

	_, err := f.events.MarkAttendance(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAuth), "toggle after logout is unauthenticated, not a no-op")
}

func TestTrackAndForgetEvent(t *testing.T) {
	f := newFixture()
	f.store.TrackEvent("5")
	f.store.TrackEvent("6")
	f.store.TrackEvent("5")
	assert.Equal(t, []domain.EventID{"5", "6"}, f.store.Snapshot().Events)

	f.store.ForgetEvent("5")
	assert.Equal(t, []domain.EventID{"6"}, f.store.Snapshot().Events)
}

func TestExpired(t *testing.T) {
	s := NewStore(nil, nil, nil, WithClock(fakeClock{now: now}))

	assert.True(t, s.expired(mintToken(t, now)))
	assert.False(t, s.expired(mintToken(t, now.Add(time.Second))))
	assert.False(t, s.expired("not.a.jwt"))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, s.expired(noExp))
}
