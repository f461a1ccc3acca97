package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/session/sessiontest"
)

var (
	benchID = uuid.MustParse("5d1f7f3e-7c0b-4d0c-9f51-1b0c7f1f0a01")
	squatID = uuid.MustParse("5d1f7f3e-7c0b-4d0c-9f51-1b0c7f1f0a02")
)

type staticSource []models.ExerciseDefinition

func (s staticSource) ListExercises(context.Context) ([]models.ExerciseDefinition, error) {
	return s, nil
}

func (s staticSource) GetExercise(_ context.Context, id uuid.UUID) (*models.ExerciseDefinition, error) {
	for _, d := range s {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, session.ErrNotFound
}

func newTestHandlers(t *testing.T) (*handlers, *sessiontest.Repo) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := sessiontest.NewRepo()
	src := staticSource{
		{ID: benchID, Name: "Bench Press", MuscleGroup: "chest", Equipment: "barbell"},
		{ID: squatID, Name: "Back Squat", MuscleGroup: "legs", Equipment: "barbell"},
	}
	return &handlers{
		workspaces: session.NewWorkspaces(repo, nil, log),
		catalog:    catalog.New(src, freecache.NewCache(512*1024), time.Minute, log),
		user:       models.User{ID: uuid.New(), Email: "lifter@example.com"},
		log:        log,
	}, repo
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

// TestUserFromContext verifies the transport user overrides the default.
func TestUserFromContext(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("UserFromContext(empty) reported a user")
	}
	u := models.User{ID: uuid.New()}
	got, ok := UserFromContext(WithUser(context.Background(), u))
	if !ok || got.ID != u.ID {
		t.Errorf("UserFromContext = %v, %v; want %v", got, ok, u.ID)
	}
}

// TestWorkoutFlow drives a workout through the tools by exercise name.
func TestWorkoutFlow(t *testing.T) {
	h, repo := newTestHandlers(t)

	var started struct {
		SessionID uuid.UUID `json:"session_id"`
	}
	decodeResult(t, call(t, h.startWorkout, nil), &started)

	var added struct {
		ExerciseID uuid.UUID `json:"exercise_id"`
		Name       string    `json:"name"`
	}
	decodeResult(t, call(t, h.addExercise, map[string]any{"exercise": "bench"}), &added)
	if added.ExerciseID != benchID || added.Name != "Bench Press" {
		t.Errorf("added = %+v", added)
	}

	var first, second struct {
		SetNumber int      `json:"set_number"`
		RPE       *float64 `json:"rpe"`
	}
	decodeResult(t, call(t, h.logSet, map[string]any{"exercise": "Bench Press", "weight": 80.0, "reps": 8.0, "rpe": 7.0}), &first)
	decodeResult(t, call(t, h.logSet, map[string]any{"exercise": benchID.String(), "weight": 82.5, "reps": 6.0}), &second)
	if first.SetNumber != 1 || second.SetNumber != 2 {
		t.Errorf("set numbers = %d, %d; want 1, 2", first.SetNumber, second.SetNumber)
	}
	if second.RPE == nil || *second.RPE != 7 {
		t.Errorf("second rpe = %v, want copied 7", second.RPE)
	}

	var finished struct {
		Sentiment string `json:"sentiment"`
		Sets      int    `json:"sets"`
		XP        int    `json:"xp"`
	}
	decodeResult(t, call(t, h.finishWorkout, map[string]any{"sentiment": "amazing"}), &finished)
	if finished.Sentiment != "Amazing" || finished.Sets != 2 || finished.XP != 60 {
		t.Errorf("finished = %+v", finished)
	}
	if s, _ := repo.Session(started.SessionID); s.EndedAt == nil {
		t.Error("session not ended")
	}

	if res := call(t, h.getActiveWorkout, nil); !res.IsError {
		t.Error("expected no active workout after finish")
	}
}

// TestLogSetMissingRPE verifies a set without any RPE source is rejected
// and leaves no draft behind.
func TestLogSetMissingRPE(t *testing.T) {
	h, _ := newTestHandlers(t)
	call(t, h.startWorkout, nil)
	call(t, h.addExercise, map[string]any{"exercise": squatID.String()})

	res := call(t, h.logSet, map[string]any{"exercise": "squat", "weight": 100.0, "reps": 5.0})
	if !res.IsError {
		t.Fatal("expected error for missing rpe")
	}

	ws, _ := h.workspace(context.Background())
	detail, _ := ws.Controller().Active(context.Background())
	ed, err := ws.Sets(context.Background(), detail.Exercises[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(ed.Entries()); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestLogSetUnknownExercise(t *testing.T) {
	h, _ := newTestHandlers(t)
	call(t, h.startWorkout, nil)
	res := call(t, h.logSet, map[string]any{"exercise": "squat", "weight": 100.0, "reps": 5.0, "rpe": 8.0})
	if !res.IsError {
		t.Error("expected error for exercise not in workout")
	}
}

func TestFinishRejectsUnknownSentiment(t *testing.T) {
	h, _ := newTestHandlers(t)
	call(t, h.startWorkout, nil)
	if res := call(t, h.finishWorkout, map[string]any{"sentiment": "meh"}); !res.IsError {
		t.Error("expected error for unknown sentiment")
	}
	if res := call(t, h.finishWorkout, nil); !res.IsError {
		t.Error("expected error for missing sentiment")
	}
}

// TestStartFromTemplate verifies template exercises and sets are created.
func TestStartFromTemplate(t *testing.T) {
	h, repo := newTestHandlers(t)
	reps := 5
	tmplID := uuid.New()
	repo.AddTemplate(models.TemplateDetail{
		WorkoutTemplate: models.WorkoutTemplate{ID: tmplID, Name: "5x5"},
		Exercises: []models.TemplateExercise{
			{ExerciseID: squatID, OrderIndex: 0, TargetSets: 5, TargetReps: &reps},
			{ExerciseID: benchID, OrderIndex: 1, TargetSets: 5, TargetReps: &reps},
		},
	})

	var out struct {
		Template    string `json:"template"`
		Exercises   int    `json:"exercises"`
		SetsCreated int    `json:"sets_created"`
	}
	decodeResult(t, call(t, h.startFromTemplate, map[string]any{"template_id": tmplID.String()}), &out)
	if out.Template != "5x5" || out.Exercises != 2 || out.SetsCreated != 10 {
		t.Errorf("out = %+v", out)
	}

	if res := call(t, h.startFromTemplate, map[string]any{"template_id": "nope"}); !res.IsError {
		t.Error("expected error for invalid template id")
	}
}

func TestDiscardWorkout(t *testing.T) {
	h, _ := newTestHandlers(t)
	call(t, h.startWorkout, nil)
	if res := call(t, h.discardWorkout, nil); res.IsError {
		t.Fatalf("discard failed: %s", resultText(t, res))
	}
	if res := call(t, h.discardWorkout, nil); !res.IsError {
		t.Error("second discard should fail")
	}
}

func TestLeaderboardUnavailable(t *testing.T) {
	h, _ := newTestHandlers(t)
	if res := call(t, h.getLeaderboard, nil); !res.IsError {
		t.Error("expected error without rpc client")
	}
}
