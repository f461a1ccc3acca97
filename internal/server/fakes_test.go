package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/session/sessiontest"
)

var testSecret = []byte("test-secret")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCaller answers procedures with canned JSON keyed by name.
type fakeCaller map[string]string

func (f fakeCaller) CallRows(_ context.Context, name string, _ map[string]any, dst any) error {
	body, ok := f[name]
	if !ok {
		return fmt.Errorf("unexpected procedure %s", name)
	}
	return json.Unmarshal([]byte(body), dst)
}

func (f fakeCaller) CallScalar(ctx context.Context, name string, params map[string]any, dst any) error {
	return f.CallRows(ctx, name, params, dst)
}

type testEnv struct {
	srv     *Server
	repo    *sessiontest.Repo
	metrics *metrics.Manager
	user    uuid.UUID
	token   string
}

func newTestEnv(t *testing.T, calls fakeCaller) *testEnv {
	t.Helper()
	repo := sessiontest.NewRepo()
	m, reg := metrics.NewTestManagerAndRegistry()
	log := testLogger()
	srv := New(Deps{
		Workspaces: session.NewWorkspaces(repo, nil, log),
		Sessions:   repo,
		RPC:        rpc.New(calls, nil, 0, log),
		Metrics:    m,
		Gatherer:   reg,
		JWTSecret:  testSecret,
	}, log)
	user := uuid.New()
	return &testEnv{srv: srv, repo: repo, metrics: m, user: user, token: signToken(t, testSecret, user.String(), time.Hour)}
}

// asOtherUser returns a copy of the env that authenticates as a fresh user
// against the same server and repository.
func (e *testEnv) asOtherUser(t *testing.T) *testEnv {
	t.Helper()
	other := *e
	other.user = uuid.New()
	other.token = signToken(t, testSecret, other.user.String(), time.Hour)
	return &other
}

func signToken(t *testing.T, secret []byte, sub string, ttl time.Duration) string {
	t.Helper()
	claims := tokenClaims{
		Email: "lifter@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

// do sends an authenticated request and decodes a JSON response into out
// when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode error: %v", method, path, err)
		}
	}
	return rec.Code
}

func expectStatus(t *testing.T, got, want int, what string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: status = %d, want %d", what, got, want)
	}
}

var _ http.Handler = (*Server)(nil)
