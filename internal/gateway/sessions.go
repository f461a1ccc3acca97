package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

// SessionRepo implements session.Repository on the backend's tables.
// Row ids are generated client-side so bulk inserts can be matched back to
// their input order.
type SessionRepo struct {
	c *Client
}

// Compile-time check: SessionRepo satisfies session.Repository.
var _ session.Repository = (*SessionRepo)(nil)

// NewSessionRepo creates a SessionRepo.
func NewSessionRepo(c *Client) *SessionRepo {
	return &SessionRepo{c: c}
}

type sessionRow struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

func (r *SessionRepo) CreateSession(ctx context.Context, s models.NewSession) (uuid.UUID, error) {
	row := sessionRow{ID: uuid.New(), UserID: s.UserID, Title: s.Title, Notes: s.Notes, StartedAt: s.StartedAt}
	if err := r.c.From("workout_sessions").Insert(ctx, row, nil); err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

type exerciseTree struct {
	models.WorkoutExercise
	Sets []models.Set `json:"sets"`
}

type sessionTree struct {
	models.WorkoutSession
	Exercises []exerciseTree `json:"workout_exercises"`
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	var tree sessionTree
	err := r.c.From("workout_sessions").
		Select("*,workout_exercises(*,sets(*))").
		Eq("id", id).
		Single().
		Get(ctx, &tree)
	if err != nil {
		return nil, err
	}

	d := &models.SessionDetail{WorkoutSession: tree.WorkoutSession}
	for _, ex := range tree.Exercises {
		d.Exercises = append(d.Exercises, models.ExerciseDetail{WorkoutExercise: ex.WorkoutExercise, Sets: ex.Sets})
	}
	d.Sort()
	return d, nil
}

func (r *SessionRepo) UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error {
	if u.Empty() {
		return nil
	}
	patch := map[string]any{}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Notes != nil {
		patch["notes"] = *u.Notes
	}
	if u.EndedAt != nil {
		patch["ended_at"] = u.EndedAt.UTC()
	}
	if u.Sentiment != nil {
		patch["sentiment"] = *u.Sentiment
	}
	return r.c.From("workout_sessions").Eq("id", id).Update(ctx, patch, nil)
}

// DeleteSession removes sets, then exercises, then the session row.
func (r *SessionRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	var exercises []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := r.c.From("workout_exercises").Select("id").Eq("session_id", id).Get(ctx, &exercises); err != nil {
		return err
	}
	if len(exercises) > 0 {
		ids := make([]string, len(exercises))
		for i, e := range exercises {
			ids[i] = e.ID.String()
		}
		if err := r.c.From("sets").In("workout_exercise_id", ids...).Delete(ctx); err != nil {
			return err
		}
		if err := r.c.From("workout_exercises").Eq("session_id", id).Delete(ctx); err != nil {
			return err
		}
	}
	return r.c.From("workout_sessions").Eq("id", id).Delete(ctx)
}

type exerciseRow struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	Notes      string    `json:"notes,omitempty"`
}

func (r *SessionRepo) AddExercises(ctx context.Context, in []models.NewWorkoutExercise) ([]models.WorkoutExercise, error) {
	if len(in) == 0 {
		return nil, nil
	}
	rows := make([]exerciseRow, len(in))
	ids := make([]uuid.UUID, len(in))
	for i, e := range in {
		ids[i] = uuid.New()
		rows[i] = exerciseRow{ID: ids[i], SessionID: e.SessionID, ExerciseID: e.ExerciseID, OrderIndex: e.OrderIndex, Notes: e.Notes}
	}

	var created []models.WorkoutExercise
	if err := r.c.From("workout_exercises").Insert(ctx, rows, &created); err != nil {
		return nil, err
	}
	return inInputOrder(ids, created, func(e models.WorkoutExercise) uuid.UUID { return e.ID })
}

// DeleteExercise removes the exercise's sets first, then the exercise.
func (r *SessionRepo) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	if err := r.c.From("sets").Eq("workout_exercise_id", id).Delete(ctx); err != nil {
		return err
	}
	return r.c.From("workout_exercises").Eq("id", id).Delete(ctx)
}

type ownerRow struct {
	Session struct {
		UserID uuid.UUID `json:"user_id"`
	} `json:"workout_sessions"`
}

// ExerciseOwner reads the owning user through the embedded session.
func (r *SessionRepo) ExerciseOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var row ownerRow
	err := r.c.From("workout_exercises").
		Select("workout_sessions(user_id)").
		Eq("id", id).
		Single().
		Get(ctx, &row)
	if err != nil {
		return uuid.Nil, err
	}
	return row.Session.UserID, nil
}

type setRow struct {
	ID                uuid.UUID `json:"id"`
	WorkoutExerciseID uuid.UUID `json:"workout_exercise_id"`
	SetNumber         int       `json:"set_number"`
	Reps              int       `json:"reps"`
	Weight            float64   `json:"weight"`
	RPE               *float64  `json:"rpe"`
}

// InsertSets bulk-inserts sets. A zero SetNumber takes the next number after
// the exercise's highest existing set.
func (r *SessionRepo) InsertSets(ctx context.Context, in []models.NewSet) ([]models.Set, error) {
	if len(in) == 0 {
		return nil, nil
	}

	next := map[uuid.UUID]int{}
	rows := make([]setRow, len(in))
	ids := make([]uuid.UUID, len(in))
	for i, s := range in {
		n := s.SetNumber
		if n == 0 {
			last, ok := next[s.WorkoutExerciseID]
			if !ok {
				var err error
				if last, err = r.maxSetNumber(ctx, s.WorkoutExerciseID); err != nil {
					return nil, err
				}
			}
			n = last + 1
			next[s.WorkoutExerciseID] = n
		}
		ids[i] = uuid.New()
		rows[i] = setRow{ID: ids[i], WorkoutExerciseID: s.WorkoutExerciseID, SetNumber: n, Reps: s.Reps, Weight: s.Weight, RPE: s.RPE}
	}

	var created []models.Set
	if err := r.c.From("sets").Insert(ctx, rows, &created); err != nil {
		return nil, err
	}
	return inInputOrder(ids, created, func(s models.Set) uuid.UUID { return s.ID })
}

func (r *SessionRepo) maxSetNumber(ctx context.Context, workoutExerciseID uuid.UUID) (int, error) {
	var rows []struct {
		SetNumber int `json:"set_number"`
	}
	err := r.c.From("sets").
		Select("set_number").
		Eq("workout_exercise_id", workoutExerciseID).
		Order("set_number", false).
		Limit(1).
		Get(ctx, &rows)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].SetNumber, nil
}

func (r *SessionRepo) DeleteSet(ctx context.Context, id uuid.UUID) error {
	return r.c.From("sets").Eq("id", id).Delete(ctx)
}

// PreviousSets finds the user's latest completed session containing the
// exercise, then loads that exercise's sets.
func (r *SessionRepo) PreviousSets(ctx context.Context, userID, exerciseID, excludeSession uuid.UUID) ([]models.Set, error) {
	var sessions []struct {
		ID        uuid.UUID `json:"id"`
		Exercises []struct {
			ID         uuid.UUID `json:"id"`
			OrderIndex int       `json:"order_index"`
		} `json:"workout_exercises"`
	}
	err := r.c.From("workout_sessions").
		Select("id,ended_at,workout_exercises!inner(id,order_index)").
		Eq("user_id", userID).
		NotNull("ended_at").
		Neq("id", excludeSession).
		Eq("workout_exercises.exercise_id", exerciseID).
		Order("ended_at", false).
		Limit(1).
		Get(ctx, &sessions)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 || len(sessions[0].Exercises) == 0 {
		return nil, nil
	}

	first := sessions[0].Exercises[0]
	for _, e := range sessions[0].Exercises[1:] {
		if e.OrderIndex < first.OrderIndex {
			first = e
		}
	}

	var sets []models.Set
	err = r.c.From("sets").
		Eq("workout_exercise_id", first.ID).
		Order("set_number", true).
		Get(ctx, &sets)
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *SessionRepo) GetTemplate(ctx context.Context, id uuid.UUID) (*models.TemplateDetail, error) {
	var t models.TemplateDetail
	err := r.c.From("workout_templates").
		Select("*,template_exercises(*)").
		Eq("id", id).
		Single().
		Get(ctx, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// inInputOrder reorders created rows to match the generated ids.
func inInputOrder[T any](ids []uuid.UUID, rows []T, id func(T) uuid.UUID) ([]T, error) {
	byID := make(map[uuid.UUID]T, len(rows))
	for _, row := range rows {
		byID[id(row)] = row
	}
	out := make([]T, 0, len(ids))
	for _, want := range ids {
		row, ok := byID[want]
		if !ok {
			return nil, fmt.Errorf("inserted row %s missing from response", want)
		}
		out = append(out, row)
	}
	return out, nil
}
