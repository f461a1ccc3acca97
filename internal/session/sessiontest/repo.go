// Package sessiontest provides an in-memory session.Repository for tests of
// the session lifecycle and the packages built on top of it.
package sessiontest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
)

// Repo is a goroutine-safe in-memory session.Repository. The exported hook
// fields inject failures; set them before the repo is shared.
type Repo struct {
	// BeforeInsertSets runs outside the lock before every InsertSets call.
	BeforeInsertSets func(sets []models.NewSet) error
	AddExercisesErr  error
	DeleteSetErr     error
	PreviousErr      error

	mu            sync.Mutex
	sessions      map[uuid.UUID]*models.WorkoutSession
	exercises     map[uuid.UUID]*models.WorkoutExercise
	sets          map[uuid.UUID]*models.Set
	templates     map[uuid.UUID]*models.TemplateDetail
	previousCalls int
}

var _ session.Repository = (*Repo)(nil)

func NewRepo() *Repo {
	return &Repo{
		sessions:  map[uuid.UUID]*models.WorkoutSession{},
		exercises: map[uuid.UUID]*models.WorkoutExercise{},
		sets:      map[uuid.UUID]*models.Set{},
		templates: map[uuid.UUID]*models.TemplateDetail{},
	}
}

// Session returns a copy of the stored session row.
func (r *Repo) Session(id uuid.UUID) (models.WorkoutSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return models.WorkoutSession{}, false
	}
	return *s, true
}

// Exercise returns a copy of the stored workout exercise row.
func (r *Repo) Exercise(id uuid.UUID) (models.WorkoutExercise, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exercises[id]
	if !ok {
		return models.WorkoutExercise{}, false
	}
	return *ex, true
}

// Set returns a copy of the stored set row.
func (r *Repo) Set(id uuid.UUID) (models.Set, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sets[id]
	if !ok {
		return models.Set{}, false
	}
	return *st, true
}

// Counts reports how many sessions, workout exercises and sets are stored.
func (r *Repo) Counts() (sessions, exercises, sets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.exercises), len(r.sets)
}

// SetCount reports how many sets belong to one workout exercise.
func (r *Repo) SetCount(workoutExerciseID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, st := range r.sets {
		if st.WorkoutExerciseID == workoutExerciseID {
			n++
		}
	}
	return n
}

// PreviousCalls reports how often PreviousSets was called.
func (r *Repo) PreviousCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previousCalls
}

// AddTemplate stores a template for GetTemplate.
func (r *Repo) AddTemplate(t models.TemplateDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = &t
}

// Template returns the stored template, or nil.
func (r *Repo) Template(id uuid.UUID) *models.TemplateDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// SeedCompleted stores a finished session of exerciseID for userID holding
// the given sets, numbered in order.
func (r *Repo) SeedCompleted(userID, exerciseID uuid.UUID, endedAt time.Time, sets ...models.NewSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, exID := uuid.New(), uuid.New()
	r.sessions[sid] = &models.WorkoutSession{
		ID: sid, UserID: userID, Title: "Past", StartedAt: endedAt.Add(-time.Hour), EndedAt: &endedAt,
	}
	r.exercises[exID] = &models.WorkoutExercise{ID: exID, SessionID: sid, ExerciseID: exerciseID}
	for i, s := range sets {
		id := uuid.New()
		r.sets[id] = &models.Set{
			ID: id, WorkoutExerciseID: exID, SetNumber: i + 1, Reps: s.Reps, Weight: s.Weight, RPE: s.RPE,
		}
	}
}

func (r *Repo) CreateSession(_ context.Context, s models.NewSession) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.sessions[id] = &models.WorkoutSession{ID: id, UserID: s.UserID, Title: s.Title, Notes: s.Notes, StartedAt: s.StartedAt}
	return id, nil
}

func (r *Repo) GetSession(_ context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	d := &models.SessionDetail{WorkoutSession: *s, Exercises: []models.ExerciseDetail{}}
	for _, ex := range r.exercises {
		if ex.SessionID != id {
			continue
		}
		ed := models.ExerciseDetail{WorkoutExercise: *ex, Sets: []models.Set{}}
		for _, st := range r.sets {
			if st.WorkoutExerciseID == ex.ID {
				ed.Sets = append(ed.Sets, *st)
			}
		}
		d.Exercises = append(d.Exercises, ed)
	}
	d.Sort()
	return d, nil
}

func (r *Repo) UpdateSession(_ context.Context, id uuid.UUID, u models.SessionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Notes != nil {
		s.Notes = *u.Notes
	}
	if u.EndedAt != nil {
		t := *u.EndedAt
		s.EndedAt = &t
	}
	if u.Sentiment != nil {
		v := *u.Sentiment
		s.Sentiment = &v
	}
	return nil
}

func (r *Repo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for exID, ex := range r.exercises {
		if ex.SessionID == id {
			r.deleteSetsOf(exID)
			delete(r.exercises, exID)
		}
	}
	delete(r.sessions, id)
	return nil
}

func (r *Repo) deleteSetsOf(exID uuid.UUID) {
	for id, st := range r.sets {
		if st.WorkoutExerciseID == exID {
			delete(r.sets, id)
		}
	}
}

func (r *Repo) AddExercises(_ context.Context, in []models.NewWorkoutExercise) ([]models.WorkoutExercise, error) {
	if r.AddExercisesErr != nil {
		return nil, r.AddExercisesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WorkoutExercise, 0, len(in))
	for _, e := range in {
		ex := models.WorkoutExercise{ID: uuid.New(), SessionID: e.SessionID, ExerciseID: e.ExerciseID, OrderIndex: e.OrderIndex, Notes: e.Notes}
		r.exercises[ex.ID] = &ex
		out = append(out, ex)
	}
	return out, nil
}

func (r *Repo) DeleteExercise(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteSetsOf(id)
	delete(r.exercises, id)
	return nil
}

func (r *Repo) ExerciseOwner(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.exercises[id]
	if !ok {
		return uuid.Nil, session.ErrNotFound
	}
	s, ok := r.sessions[ex.SessionID]
	if !ok {
		return uuid.Nil, session.ErrNotFound
	}
	return s.UserID, nil
}

// InsertSets assigns the next free set number when SetNumber is zero.
func (r *Repo) InsertSets(_ context.Context, in []models.NewSet) ([]models.Set, error) {
	if r.BeforeInsertSets != nil {
		if err := r.BeforeInsertSets(in); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Set, 0, len(in))
	for _, n := range in {
		num := n.SetNumber
		if num == 0 {
			num = r.maxSetNumber(n.WorkoutExerciseID) + 1
		}
		st := models.Set{
			ID:                uuid.New(),
			WorkoutExerciseID: n.WorkoutExerciseID,
			SetNumber:         num,
			Reps:              n.Reps,
			Weight:            n.Weight,
			RPE:               n.RPE,
			CreatedAt:         time.Now().UTC(),
		}
		r.sets[st.ID] = &st
		out = append(out, st)
	}
	return out, nil
}

func (r *Repo) maxSetNumber(exID uuid.UUID) int {
	max := 0
	for _, st := range r.sets {
		if st.WorkoutExerciseID == exID && st.SetNumber > max {
			max = st.SetNumber
		}
	}
	return max
}

func (r *Repo) DeleteSet(_ context.Context, id uuid.UUID) error {
	if r.DeleteSetErr != nil {
		return r.DeleteSetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[id]; !ok {
		return session.ErrNotFound
	}
	delete(r.sets, id)
	return nil
}

// PreviousSets finds the user's latest completed session holding
// exerciseID, skipping exclude.
func (r *Repo) PreviousSets(_ context.Context, userID, exerciseID, exclude uuid.UUID) ([]models.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previousCalls++
	if r.PreviousErr != nil {
		return nil, r.PreviousErr
	}

	var latest *models.WorkoutSession
	var latestEx uuid.UUID
	for _, ex := range r.exercises {
		if ex.ExerciseID != exerciseID || ex.SessionID == exclude {
			continue
		}
		s, ok := r.sessions[ex.SessionID]
		if !ok || s.UserID != userID || s.EndedAt == nil {
			continue
		}
		if latest == nil || s.EndedAt.After(*latest.EndedAt) {
			latest, latestEx = s, ex.ID
		}
	}
	if latest == nil {
		return nil, nil
	}
	var out []models.Set
	for _, st := range r.sets {
		if st.WorkoutExerciseID == latestEx {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetNumber < out[j].SetNumber })
	return out, nil
}

func (r *Repo) GetTemplate(_ context.Context, id uuid.UUID) (*models.TemplateDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *t
	return &cp, nil
}
