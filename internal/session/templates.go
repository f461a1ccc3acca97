package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ErrIncomplete is returned by CheckComplete when a session does not contain
// everything its template asked for.
var ErrIncomplete = errors.New("session does not match template")

// Instantiation describes what a template run created.
type Instantiation struct {
	SessionID   uuid.UUID
	Template    *models.TemplateDetail
	Exercises   []models.WorkoutExercise
	SetsCreated int
}

// Instantiator copies a workout template into a new session.
type Instantiator struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewInstantiator creates an Instantiator.
func NewInstantiator(repo Repository, log *slog.Logger) *Instantiator {
	return &Instantiator{repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Instantiate creates a session titled after the template, adds the
// template's exercises in order_index order and pre-creates target_sets set
// rows per exercise (reps = target reps, weight 0, no RPE).
//
// Failures after the session row exists are not rolled back: the returned
// Instantiation describes what was created and the error is a
// *PartialFailureError.
func (in *Instantiator) Instantiate(ctx context.Context, userID, templateID uuid.UUID) (*Instantiation, error) {
	tmpl, err := in.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, remote("fetching template", err)
	}
	if len(tmpl.Exercises) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTemplateEmpty, templateID)
	}

	sessionID, err := in.repo.CreateSession(ctx, models.NewSession{
		UserID:    userID,
		Title:     tmpl.Name,
		StartedAt: in.now(),
	})
	if err != nil {
		return nil, remote("creating session", err)
	}

	inst := &Instantiation{SessionID: sessionID, Template: tmpl}
	ordered := tmpl.Ordered()

	newExercises := make([]models.NewWorkoutExercise, 0, len(ordered))
	for _, te := range ordered {
		newExercises = append(newExercises, models.NewWorkoutExercise{
			SessionID:  sessionID,
			ExerciseID: te.ExerciseID,
			OrderIndex: te.OrderIndex,
			Notes:      te.Notes,
		})
	}

	created, err := in.repo.AddExercises(ctx, newExercises)
	if err != nil {
		in.log.Error("template exercises failed", "session_id", sessionID, "template_id", templateID, "error", err)
		return inst, &PartialFailureError{SessionID: sessionID, Err: remote("adding template exercises", err)}
	}
	inst.Exercises = created

	var errs error
	if len(created) != len(ordered) {
		errs = multierr.Append(errs, fmt.Errorf("created %d of %d exercises", len(created), len(ordered)))
	}

	for i, we := range created {
		if i >= len(ordered) {
			break
		}
		te := ordered[i]
		if te.TargetSets <= 0 {
			continue
		}

		sets := make([]models.NewSet, te.TargetSets)
		for n := range sets {
			sets[n] = models.NewSet{
				WorkoutExerciseID: we.ID,
				SetNumber:         n + 1,
				Reps:              te.Reps(),
				Weight:            0,
			}
		}

		rows, err := in.repo.InsertSets(ctx, sets)
		if err != nil {
			in.log.Error("template sets failed",
				"session_id", sessionID, "workout_exercise_id", we.ID, "order_index", te.OrderIndex, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("sets for exercise %d: %w", te.OrderIndex, err))
			continue
		}
		inst.SetsCreated += len(rows)
	}

	if errs != nil {
		return inst, &PartialFailureError{SessionID: sessionID, Err: errs}
	}
	return inst, nil
}

// CheckComplete compares a re-fetched session against its template and
// returns an error matching ErrIncomplete when exercises or sets are missing.
func CheckComplete(detail *models.SessionDetail, tmpl *models.TemplateDetail) error {
	if got, want := len(detail.Exercises), len(tmpl.Exercises); got != want {
		return fmt.Errorf("%w: %d of %d exercises", ErrIncomplete, got, want)
	}
	if got, want := detail.SetCount(), tmpl.ExpectedSets(); got < want {
		return fmt.Errorf("%w: %d of %d sets", ErrIncomplete, got, want)
	}
	return nil
}
