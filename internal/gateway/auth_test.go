package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

// TestSignInKeepsToken verifies that after sign-in the user token is used
// and CurrentUser resolves the user.
func TestSignInKeepsToken(t *testing.T) {
	userID := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /auth/v1/token": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("grant_type"); got != "password" {
				t.Errorf("grant_type = %q, want password", got)
			}
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("sign-in sent Authorization %q", got)
			}
			var creds credentials
			decodeBody(t, r, &creds)
			if creds.Email != "a@example.com" || creds.Password != "pw" {
				t.Errorf("credentials = %+v", creds)
			}
			writeTestJSON(t, w, 200, map[string]any{
				"access_token": "tok", "refresh_token": "ref", "expires_in": 3600,
				"user": map[string]any{"id": userID, "email": "a@example.com"},
			})
		},
		"GET /auth/v1/user": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q, want Bearer tok", got)
			}
			writeTestJSON(t, w, 200, map[string]any{"id": userID, "email": "a@example.com"})
		},
		"POST /auth/v1/logout": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	})
	c := newTestClient(ts)
	ctx := context.Background()

	if _, err := c.CurrentUser(ctx); !errors.Is(err, session.ErrAuthRequired) {
		t.Fatalf("CurrentUser before sign-in: err = %v, want ErrAuthRequired", err)
	}

	s, err := c.SignIn(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if s.User.ID != userID {
		t.Errorf("user id = %s, want %s", s.User.ID, userID)
	}

	u, err := c.CurrentUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "a@example.com" {
		t.Errorf("email = %q", u.Email)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CurrentUser(ctx); !errors.Is(err, session.ErrAuthRequired) {
		t.Errorf("CurrentUser after sign-out: err = %v, want ErrAuthRequired", err)
	}
}

// TestSignUpNeedsVerification verifies that sign-up without a session
// returns the user but no session.
func TestSignUpNeedsVerification(t *testing.T) {
	userID := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /auth/v1/signup": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, 200, map[string]any{"id": userID, "email": "new@example.com"})
		},
	})
	c := newTestClient(ts)

	s, u, err := c.SignUp(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("session = %+v, want nil", s)
	}
	if u.ID != userID {
		t.Errorf("user id = %s, want %s", u.ID, userID)
	}
	if _, isUser := c.accessToken(context.Background()); isUser {
		t.Error("client holds a user token after unverified sign-up")
	}
}

// TestSignInRejected verifies bad credentials surface as an error.
func TestSignInRejected(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /auth/v1/token": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, 400, map[string]string{"error_code": "invalid_credentials", "msg": "Invalid login credentials"})
		},
	})
	_, err := newTestClient(ts).SignIn(context.Background(), "a@example.com", "wrong")
	var ge *Error
	if !errors.As(err, &ge) || ge.Code != "invalid_credentials" {
		t.Fatalf("err = %v, want invalid_credentials", err)
	}
}
