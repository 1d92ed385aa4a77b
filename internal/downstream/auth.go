package downstream

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"
)

const (
	pathLogin    = "/auth/login"
	pathVerify   = "/auth/verify"
	pathRegister = "/auth/register"
)

type AuthClient struct {
	c *Client
}

func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

// Login exchanges credentials for an identity. The backend must answer with
// success=true; anything else is an AuthError.
func (a *AuthClient) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	var env Envelope[domain.Identity]
	if err := a.c.Post(ctx, pathLogin, creds, &env); err != nil {
		return domain.Identity{}, authFailure(err, "login_failed")
	}
	if !env.succeeded() {
		return domain.Identity{}, domain.ErrAuth("login_failed", orDefault(env.Message, "Failed to login"), nil)
	}
	return decodeIdentity(env.Data)
}

// Verify resolves the persisted token into an identity. A payload without a
// token is rejected.
func (a *AuthClient) Verify(ctx context.Context) (domain.Identity, error) {
	var env Envelope[domain.Identity]
	if err := a.c.Get(ctx, pathVerify, &env); err != nil {
		return domain.Identity{}, authFailure(err, "verify_failed")
	}
	if !env.succeeded() {
		return domain.Identity{}, domain.ErrAuth("verify_failed", orDefault(env.Message, "Failed to verify session"), nil)
	}
	if env.Data.Token == "" {
		return domain.Identity{}, domain.ErrAuth("verify_failed", "Failed to verify session", nil)
	}
	return decodeIdentity(env.Data)
}

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns the server's confirmation text.
// The confirmation password never leaves the client.
func (a *AuthClient) Register(ctx context.Context, r domain.Registration) (string, error) {
	var env Envelope[any]
	body := registerBody{Name: r.Name, Email: r.Email, Password: r.Password}
	if err := a.c.Post(ctx, pathRegister, body, &env); err != nil {
		return "", err
	}
	if env.failed() {
		return "", domain.ErrRequest(0, orDefault(env.Message, "Failed to register"), nil)
	}
	return env.Message, nil
}

func decodeIdentity(id domain.Identity) (domain.Identity, error) {
	id.Role = domain.NormalizeRole(id.Role)
	if err := domain.ValidateSchema(id, "identity"); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// authFailure re-labels a credential rejection as an AuthError; other request
// and schema failures pass through unchanged.
func authFailure(err error, code string) error {
	if !IsUnauthorized(err) {
		return err
	}
	var de *domain.Error
	msg := ""
	if errors.As(err, &de) && de.Message != domain.DefaultRequestMessage {
		msg = de.Message
	}
	return domain.ErrAuth(code, orDefault(msg, "Invalid credentials"), err)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
