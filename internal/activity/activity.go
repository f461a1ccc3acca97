// Package activity records social feed entries for completed workouts.
//
// Recording is best-effort: a primary procedure is tried first and a generic
// fallback second, and the caller receives a typed Result instead of an error
// so that a feed failure never blocks the workout flow.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Outcome describes how an activity was recorded.
type Outcome int

const (
	Succeeded Outcome = iota
	FellBack
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case FellBack:
		return "fell_back"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of a recording attempt. Err is set for FellBack
// (the primary error) and Failed (both errors joined).
type Result struct {
	Outcome Outcome
	Err     error
}

// TypeWorkoutCompleted is the activity type used by the generic fallback.
const TypeWorkoutCompleted = "workout_completed"

const (
	baseXP   = 50
	xpPerSet = 5
)

// WorkoutXP returns the XP earned for a completed workout with the given
// number of logged sets.
func WorkoutXP(sets int) int {
	if sets < 0 {
		sets = 0
	}
	return baseXP + xpPerSet*sets
}

// WorkoutCompleted is the payload of a "workout completed" activity.
type WorkoutCompleted struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	XP        int
	Title     string
	Duration  time.Duration
}

// Backend is the remote surface the recorder writes through.
type Backend interface {
	CreateWorkoutActivity(ctx context.Context, userID, sessionID uuid.UUID, xp int, title string, duration time.Duration) error
	CreateUserActivity(ctx context.Context, userID uuid.UUID, activityType string, data map[string]any) error
}

// Attempt is one tier of the recording strategy.
type Attempt func(ctx context.Context, w WorkoutCompleted) error

// Recorder tries a primary attempt and falls back to a secondary one.
type Recorder struct {
	primary  Attempt
	fallback Attempt
	log      *slog.Logger
}

// NewRecorder wires the primary create_workout_activity procedure with the
// generic create_user_activity procedure as fallback.
func NewRecorder(b Backend, log *slog.Logger) *Recorder {
	primary := func(ctx context.Context, w WorkoutCompleted) error {
		return b.CreateWorkoutActivity(ctx, w.UserID, w.SessionID, w.XP, w.Title, w.Duration)
	}
	fallback := func(ctx context.Context, w WorkoutCompleted) error {
		return b.CreateUserActivity(ctx, w.UserID, TypeWorkoutCompleted, map[string]any{
			"session_id":       w.SessionID.String(),
			"xp_earned":        w.XP,
			"workout_title":    w.Title,
			"duration_minutes": int(w.Duration.Round(time.Minute) / time.Minute),
		})
	}
	return NewRecorderWith(primary, fallback, log)
}

// NewRecorderWith builds a Recorder from explicit attempts. A nil fallback
// means the primary failure is final.
func NewRecorderWith(primary, fallback Attempt, log *slog.Logger) *Recorder {
	return &Recorder{primary: primary, fallback: fallback, log: log}
}

// RecordWorkoutCompleted records the activity and reports how it went.
func (r *Recorder) RecordWorkoutCompleted(ctx context.Context, w WorkoutCompleted) Result {
	if r == nil || r.primary == nil {
		return Result{Outcome: Skipped}
	}

	primaryErr := r.primary(ctx, w)
	if primaryErr == nil {
		return Result{Outcome: Succeeded}
	}
	r.log.Warn("workout activity failed, trying fallback",
		"session_id", w.SessionID, "error", primaryErr)

	if r.fallback == nil {
		return Result{Outcome: Failed, Err: primaryErr}
	}
	if err := r.fallback(ctx, w); err != nil {
		r.log.Error("fallback activity failed", "session_id", w.SessionID, "error", err)
		return Result{Outcome: Failed, Err: fmt.Errorf("primary: %w; fallback: %w", primaryErr, err)}
	}
	return Result{Outcome: FellBack, Err: primaryErr}
}
