package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

// AuthSession is the token pair returned by sign-in.
type AuthSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         authUser `json:"user"`
}

type authUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

func (u authUser) model() models.User {
	return models.User{ID: u.ID, Email: u.Email}
}

// Compile-time check: Client satisfies session.Authenticator.
var _ session.Authenticator = (*Client)(nil)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges email and password for a session and keeps its access
// token for later requests.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var s AuthSession
	err := c.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/token",
		query:   url.Values{"grant_type": {"password"}},
		body:    credentials{Email: email, Password: password},
		noToken: true,
	}, &s)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("signing in: %w", session.ErrAuthRequired)
	}
	c.setToken(s.AccessToken)
	c.log.Info("signed in", "user_id", s.User.ID)
	return &s, nil
}

// SignUp registers a new account. When the project requires email
// verification no session exists yet and the returned session is nil.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthSession, models.User, error) {
	// The response is either a session or a bare user, depending on project settings.
	var raw struct {
		AuthSession
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	err := c.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    "/auth/v1/signup",
		body:    credentials{Email: email, Password: password},
		noToken: true,
	}, &raw)
	if err != nil {
		return nil, models.User{}, fmt.Errorf("signing up: %w", err)
	}
	if raw.AccessToken == "" {
		c.log.Info("sign-up pending email verification", "user_id", raw.ID)
		return nil, models.User{ID: raw.ID, Email: raw.Email}, nil
	}
	c.setToken(raw.AccessToken)
	s := raw.AuthSession
	return &s, s.User.model(), nil
}

// SignOut revokes the current session and forgets its token.
func (c *Client) SignOut(ctx context.Context) error {
	_, isUser := c.accessToken(ctx)
	if !isUser {
		return nil
	}
	_, _, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout"})
	c.setToken("")
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// CurrentUser returns the user owning the request's access token.
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	if _, isUser := c.accessToken(ctx); !isUser {
		return models.User{}, session.ErrAuthRequired
	}
	var u authUser
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/auth/v1/user"}, &u); err != nil {
		return models.User{}, fmt.Errorf("fetching current user: %w", err)
	}
	if u.ID == uuid.Nil {
		return models.User{}, session.ErrAuthRequired
	}
	return u.model(), nil
}
