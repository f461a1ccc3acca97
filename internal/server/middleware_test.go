package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestBearerAuthRejects verifies requests without a valid token never reach
// the handler.
func TestBearerAuthRejects(t *testing.T) {
	user := uuid.New().String()
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, []byte("other"), user, time.Hour)},
		{"expired", "Bearer " + signToken(t, testSecret, user, -time.Minute)},
		{"subject not uuid", "Bearer " + signToken(t, testSecret, "service-role", time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := BearerAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Error("handler was called")
			}
		})
	}
}

// TestBearerAuthSetsUser verifies the token subject becomes the request user.
func TestBearerAuthSetsUser(t *testing.T) {
	id := uuid.New()
	var got uuid.UUID
	var email string
	handler := BearerAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFromContext(r)
		if !ok {
			t.Error("no user in context")
		}
		got, email = u.ID, u.Email
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, id.String(), time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got != id {
		t.Errorf("user = %s, want %s", got, id)
	}
	if email != "lifter@example.com" {
		t.Errorf("email = %q", email)
	}
}

// TestUserFromContextDefault verifies a request that skipped auth has no user.
func TestUserFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := userFromContext(req); ok {
		t.Error("userFromContext reported a user without middleware")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("allow headers = %q", got)
	}
}

// TestInstrumentCountsByStatus verifies requests are counted with their
// final status code.
func TestInstrumentCountsByStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodGet, "/api/v1/session", "", nil)
	env.do(t, http.MethodGet, "/api/v1/session", "", nil)

	if got := testutil.ToFloat64(env.metrics.CounterRequests.WithLabelValues(http.MethodGet, "409")); got != 2 {
		t.Errorf("409 count = %v, want 2", got)
	}
}
