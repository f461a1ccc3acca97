package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TestBuildCall verifies named-notation calls have sorted, numbered parameters.
func TestBuildCall(t *testing.T) {
	call, args, err := buildCall("get_activity_feed", map[string]any{"user_id": "u", "limit": 20})
	if err != nil {
		t.Fatal(err)
	}
	if want := "get_activity_feed(limit => $1, user_id => $2)"; call != want {
		t.Errorf("call = %q, want %q", call, want)
	}
	if len(args) != 2 || args[0] != 20 || args[1] != "u" {
		t.Errorf("args = %v", args)
	}
}

// TestBuildCallNoParams verifies procedures without parameters.
func TestBuildCallNoParams(t *testing.T) {
	call, args, err := buildCall("get_streak_leaderboard", nil)
	if err != nil {
		t.Fatal(err)
	}
	if call != "get_streak_leaderboard()" || len(args) != 0 {
		t.Errorf("call = %q args = %v", call, args)
	}
}

// TestBuildCallRejectsInjection verifies names are restricted to identifiers.
func TestBuildCallRejectsInjection(t *testing.T) {
	if _, _, err := buildCall("f(); DROP TABLE sets; --", nil); err == nil {
		t.Error("expected error for bad procedure name")
	}
	if _, _, err := buildCall("f", map[string]any{"a => 1); --": 1}); err == nil {
		t.Error("expected error for bad parameter name")
	}
}

// TestSessionUpdateQuery verifies only provided fields are updated.
func TestSessionUpdateQuery(t *testing.T) {
	id := uuid.New()
	ended := time.Now()
	score := 7.5
	query, args := sessionUpdateQuery(id, models.SessionUpdate{EndedAt: &ended, Sentiment: &score})

	want := "UPDATE workout_sessions SET ended_at = $1, sentiment = $2 WHERE id = $3"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 3 || args[2] != id {
		t.Errorf("args = %v", args)
	}
}

// TestInsertSetsQuery verifies the batch VALUES list and generated ids.
func TestInsertSetsQuery(t *testing.T) {
	weID := uuid.New()
	rpe := 8.0
	query, args, ids := insertSetsQuery([]models.NewSet{
		{WorkoutExerciseID: weID, SetNumber: 1, Reps: 5, Weight: 100},
		{WorkoutExerciseID: weID, SetNumber: 2, Reps: 5, Weight: 100, RPE: &rpe},
	})
	if !strings.Contains(query, "($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12) RETURNING") {
		t.Errorf("query = %q", query)
	}
	if len(args) != 12 {
		t.Fatalf("got %d args, want 12", len(args))
	}
	if len(ids) != 2 || ids[0] == ids[1] || args[0] != ids[0] || args[6] != ids[1] {
		t.Errorf("ids not threaded through args")
	}
}

// TestClassify verifies driver errors match the session taxonomy.
func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{pgx.ErrNoRows, session.ErrNotFound},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), session.ErrValidation},
		{&pgconn.PgError{Code: "42501"}, session.ErrAuthRequired},
	}
	for _, tt := range tests {
		if got := classify(tt.err); !errors.Is(got, tt.want) {
			t.Errorf("classify(%v) = %v, want match for %v", tt.err, got, tt.want)
		}
	}
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
	plain := errors.New("connection refused")
	if got := classify(plain); got != plain {
		t.Errorf("classify(plain) = %v", got)
	}
}

// TestByInputOrder verifies rows are matched back to generated ids.
func TestByInputOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	rows := []models.Set{{ID: b, SetNumber: 2}, {ID: a, SetNumber: 1}}
	out, err := byInputOrder([]uuid.UUID{a, b}, rows, func(s models.Set) uuid.UUID { return s.ID })
	if err != nil {
		t.Fatal(err)
	}
	if out[0].ID != a || out[1].ID != b {
		t.Errorf("order = %v", out)
	}
	if _, err := byInputOrder([]uuid.UUID{uuid.New()}, rows, func(s models.Set) uuid.UUID { return s.ID }); err == nil {
		t.Error("expected error for missing row")
	}
}
