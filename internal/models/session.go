package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// WorkoutSession is a row of the workout_sessions table.
// EndedAt is nil while the session is in progress.
type WorkoutSession struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Notes     string     `json:"notes"`
	Sentiment *float64   `json:"sentiment"`
}

// InProgress reports whether the session has not been ended yet.
func (s WorkoutSession) InProgress() bool {
	return s.EndedAt == nil
}

// Duration returns the elapsed time between start and end, or until now
// for a session that is still running.
func (s WorkoutSession) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// WorkoutExercise is a row of the workout_exercises table.
type WorkoutExercise struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	Notes      string    `json:"notes"`
}

// Set is a row of the sets table. A persisted set is a completed set.
type Set struct {
	ID                uuid.UUID `json:"id"`
	WorkoutExerciseID uuid.UUID `json:"workout_exercise_id"`
	SetNumber         int       `json:"set_number"`
	Reps              int       `json:"reps"`
	Weight            float64   `json:"weight"`
	RPE               *float64  `json:"rpe"`
	CreatedAt         time.Time `json:"created_at"`
}

// ExerciseDetail is a workout exercise with its sets ordered by set number.
type ExerciseDetail struct {
	WorkoutExercise
	Sets []Set `json:"sets"`
}

// SessionDetail is a session with its exercises ordered by order index.
type SessionDetail struct {
	WorkoutSession
	Exercises []ExerciseDetail `json:"exercises"`
}

// SetCount returns the number of persisted sets across all exercises.
func (d *SessionDetail) SetCount() int {
	n := 0
	for _, ex := range d.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// Sort orders exercises by order index and each exercise's sets by set number.
func (d *SessionDetail) Sort() {
	sort.SliceStable(d.Exercises, func(i, j int) bool {
		return d.Exercises[i].OrderIndex < d.Exercises[j].OrderIndex
	})
	for i := range d.Exercises {
		sets := d.Exercises[i].Sets
		sort.SliceStable(sets, func(a, b int) bool {
			return sets[a].SetNumber < sets[b].SetNumber
		})
	}
}

// NewSession holds the fields needed to create a session.
type NewSession struct {
	UserID    uuid.UUID
	Title     string
	Notes     string
	StartedAt time.Time
}

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	Title     *string
	Notes     *string
	EndedAt   *time.Time
	Sentiment *float64
}

// Empty reports whether the update carries no fields.
func (u SessionUpdate) Empty() bool {
	return u.Title == nil && u.Notes == nil && u.EndedAt == nil && u.Sentiment == nil
}

// NewWorkoutExercise holds the fields needed to add an exercise to a session.
type NewWorkoutExercise struct {
	SessionID  uuid.UUID
	ExerciseID uuid.UUID
	OrderIndex int
	Notes      string
}

// NewSet holds the fields needed to persist a set.
type NewSet struct {
	WorkoutExerciseID uuid.UUID
	SetNumber         int
	Reps              int
	Weight            float64
	RPE               *float64
}
