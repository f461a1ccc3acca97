package session_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session/sessiontest"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storedSession returns the session row, failing the test when it is missing.
func storedSession(t *testing.T, repo *sessiontest.Repo, id uuid.UUID) models.WorkoutSession {
	t.Helper()
	s, ok := repo.Session(id)
	if !ok {
		t.Fatalf("session %s not stored", id)
	}
	return s
}

func sessionCount(repo *sessiontest.Repo) int {
	n, _, _ := repo.Counts()
	return n
}

func ptr[T any](v T) *T { return &v }
