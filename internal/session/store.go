// Package session owns the authenticated identity and its lifecycle:
// login, verification of a persisted token at startup, registration and logout.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/downstream"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tokenstore"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/tracing"
	"github.com/golang-jwt/jwt/v5"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error)
	Verify(ctx context.Context) (domain.Identity, error)
	Register(ctx context.Context, r domain.Registration) (string, error)
}

// CurrentUserSink is told who is acting after every login, verify and logout.
type CurrentUserSink interface {
	SetCurrentUser(u domain.CurrentUser)
}

// Snapshot is a copy of the session fields for display.
type Snapshot struct {
	State   State
	Name    string
	Email   string
	Role    domain.Role
	Events  []domain.EventID
	Loading bool
	Err     string
}

type Store struct {
	api    AuthAPI
	tokens tokenstore.Store
	sink   CurrentUserSink
	now    func() time.Time

	mu      sync.RWMutex
	state   State
	name    string
	email   string
	role    domain.Role
	events  []domain.EventID
	pending int
	err     string

	subs   map[int]func()
	nextID int
}

type Option func(*Store)

// WithClock sets the time used for the token expiry pre-check.
func WithClock(c domain.Clock) Option {
	return func(s *Store) { s.now = c.Now }
}

func NewStore(api AuthAPI, tokens tokenstore.Store, sink CurrentUserSink, opts ...Option) *Store {
	s := &Store{
		api:    api,
		tokens: tokens,
		sink:   sink,
		now:    time.Now,
		state:  StateAnonymous,
		role:   domain.RoleUser,
		subs:   make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

// fail stores err, drops back to prev and returns err.
func (s *Store) fail(op string, prev State, err error) error {
	s.update(func() {
		s.err = domain.Message(err)
		s.state = prev
	})
	logger.Log.Warn().Err(err).Str("op", op).Msg("session_operation_failed")
	return err
}

// begin enters Authenticating and returns the state to fall back to.
func (s *Store) begin() State {
	var prev State
	s.update(func() {
		prev = s.state
		if prev == StateAuthenticating {
			prev = StateAnonymous
		}
		s.state = StateAuthenticating
		s.pending++
		s.err = ""
	})
	return prev
}

func (s *Store) done() {
	s.update(func() { s.pending-- })
}

// Login validates the credentials, exchanges them for an identity and
// persists the returned token. On failure the error is stored and the
// session stays where it was.
func (s *Store) Login(ctx context.Context, email, password string) error {
	creds := domain.Credentials{Email: email, Password: password}
	if err := creds.Validate(); err != nil {
		return s.fail("login", s.State(), err)
	}

	ctx, span := tracing.StartSpan(ctx, "session.Login")
	prev := s.begin()
	defer s.done()

	id, err := s.api.Login(ctx, creds)
	tracing.Finish(span, err)
	if err != nil {
		return s.fail("login", prev, err)
	}
	if id.Token != "" {
		if err := s.tokens.Set(ctx, id.Token); err != nil {
			return s.fail("login", prev, err)
		}
	}
	s.populate(id)
	return nil
}

// VerifySession resolves the persisted token into an identity. It is a no-op
// when a name is already held. Without a token no request is sent.
func (s *Store) VerifySession(ctx context.Context) error {
	s.mu.RLock()
	hasName := s.name != ""
	s.mu.RUnlock()
	if hasName {
		return nil
	}

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return s.fail("verify", StateAnonymous, err)
	}
	if token == "" {
		return s.fail("verify", StateAnonymous, domain.ErrNoSession())
	}
	if s.expired(token) {
		_ = s.tokens.Delete(ctx)
		return s.fail("verify", StateAnonymous, domain.ErrSessionExpired())
	}

	ctx, span := tracing.StartSpan(ctx, "session.VerifySession")
	prev := s.begin()
	defer s.done()

	id, err := s.api.Verify(ctx)
	tracing.Finish(span, err)
	if err != nil {
		return s.fail("verify", prev, err)
	}
	if err := s.tokens.Set(ctx, id.Token); err != nil {
		return s.fail("verify", prev, err)
	}
	s.populate(id)
	return nil
}

// expired reports whether token is a JWT whose exp has passed. Opaque tokens
// and tokens without exp are left to the server. The signature is not checked.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}

// Register validates the form and creates the account. It never
// authenticates; the caller continues with Login.
func (s *Store) Register(ctx context.Context, name, email, password, confirmPassword string) (string, error) {
	r := domain.Registration{Name: name, Email: email, Password: password, ConfirmPassword: confirmPassword}
	if err := r.Validate(); err != nil {
		return "", s.fail("register", s.State(), err)
	}

	ctx, span := tracing.StartSpan(ctx, "session.Register")
	prev := s.begin()
	defer s.done()

	msg, err := s.api.Register(ctx, r)
	tracing.Finish(span, err)
	if err != nil {
		return "", s.fail("register", prev, err)
	}
	s.update(func() { s.state = prev })
	return msg, nil
}

// Logout clears the session, deletes the persisted token and resets the
// event store's user to the anonymous placeholder.
func (s *Store) Logout(ctx context.Context) error {
	s.update(func() {
		s.state = StateAnonymous
		s.name = ""
		s.email = ""
		s.role = domain.RoleUser
		s.events = nil
		s.err = ""
	})
	if s.sink != nil {
		s.sink.SetCurrentUser(domain.AnonymousUser())
	}
	if err := s.tokens.Delete(ctx); err != nil {
		return s.fail("logout", StateAnonymous, err)
	}
	return nil
}

func (s *Store) populate(id domain.Identity) {
	role := domain.NormalizeRole(id.Role)
	s.update(func() {
		s.state = StateAuthenticated
		s.name = id.Name
		s.email = id.Email
		s.role = role
		s.events = append([]domain.EventID(nil), id.Events...)
		s.err = ""
	})
	if s.sink != nil {
		s.sink.SetCurrentUser(domain.CurrentUser{ID: id.Email, Role: role})
	}
}

// TrackEvent adds id to the owned-event set.
func (s *Store) TrackEvent(id domain.EventID) {
	s.update(func() {
		for _, v := range s.events {
			if v == id {
				return
			}
		}
		s.events = append(s.events, id)
	})
}

func (s *Store) ForgetEvent(id domain.EventID) {
	s.update(func() {
		out := s.events[:0:0]
		for _, v := range s.events {
			if v != id {
				out = append(out, v)
			}
		}
		s.events = out
	})
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentUser is the identity attendance checks run as.
func (s *Store) CurrentUser() domain.CurrentUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return domain.AnonymousUser()
	}
	return domain.CurrentUser{ID: s.email, Role: s.role}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:   s.state,
		Name:    s.name,
		Email:   s.email,
		Role:    s.role,
		Events:  append([]domain.EventID(nil), s.events...),
		Loading: s.pending > 0,
		Err:     s.err,
	}
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// IsAuthError reports whether err should send the user back to the login prompt.
func IsAuthError(err error) bool {
	return domain.IsKind(err, domain.KindAuth) || downstream.IsUnauthorized(err)
}
