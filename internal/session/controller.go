// Package session implements the workout-session lifecycle: the controller
// that owns the active session, template instantiation, the draft/confirmed
// set state machine and the completion recap.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// DefaultTitle is used for sessions started without a template.
const DefaultTitle = "Workout"

// Controller owns the identifier of the in-progress workout. It is the only
// writer of that pointer; every other component reads it through
// ActiveSessionID. Network calls never run while the lock is held.
type Controller struct {
	repo  Repository
	auth  Authenticator
	tmpl  *Instantiator
	recap *Recap
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	active uuid.UUID
}

// NewController creates a controller with an empty active-session pointer.
func NewController(repo Repository, auth Authenticator, recorder ActivityRecorder, log *slog.Logger) *Controller {
	c := &Controller{
		repo: repo,
		auth: auth,
		log:  log,
		now:  time.Now,
	}
	c.tmpl = &Instantiator{repo: repo, log: log, now: c.clock}
	c.recap = &Recap{store: repo, recorder: recorder, log: log, now: c.clock}
	return c
}

func (c *Controller) clock() time.Time {
	return c.now().UTC()
}

// ActiveSessionID returns the active session id, if any.
func (c *Controller) ActiveSessionID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != uuid.Nil
}

func (c *Controller) setActive(id uuid.UUID) {
	c.mu.Lock()
	prev := c.active
	c.active = id
	c.mu.Unlock()

	if prev != uuid.Nil && prev != id {
		// The previous session keeps ended_at = null and is no longer reachable here.
		c.log.Warn("active session replaced", "previous", prev, "session_id", id)
	}
}

// clearActive resets the pointer only if it still refers to id.
func (c *Controller) clearActive(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == id {
		c.active = uuid.Nil
	}
}

func (c *Controller) requireActive() (uuid.UUID, error) {
	id, ok := c.ActiveSessionID()
	if !ok {
		return uuid.Nil, ErrNoActiveSession
	}
	return id, nil
}

func (c *Controller) currentUser(ctx context.Context) (models.User, error) {
	u, err := c.auth.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			return models.User{}, err
		}
		return models.User{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	return u, nil
}

// StartSession creates a new session for the signed-in user and makes it the
// active one. A session that was already active is not closed.
func (c *Controller) StartSession(ctx context.Context, notes string) (uuid.UUID, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := c.repo.CreateSession(ctx, models.NewSession{
		UserID:    user.ID,
		Title:     DefaultTitle,
		Notes:     notes,
		StartedAt: c.clock(),
	})
	if err != nil {
		return uuid.Nil, remote("creating session", err)
	}

	c.setActive(id)
	c.log.Info("session started", "session_id", id, "user_id", user.ID)
	return id, nil
}

// StartFromTemplate instantiates a template into a new session and makes it
// active. When the session row was created but some inserts failed, the
// session still becomes active and a *PartialFailureError is returned.
func (c *Controller) StartFromTemplate(ctx context.Context, templateID uuid.UUID) (*Instantiation, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	inst, err := c.tmpl.Instantiate(ctx, user.ID, templateID)
	if inst != nil && inst.SessionID != uuid.Nil {
		c.setActive(inst.SessionID)
		c.log.Info("session started from template",
			"session_id", inst.SessionID, "template_id", templateID, "sets", inst.SetsCreated)
	}
	return inst, err
}

// Active returns the active session tree.
func (c *Controller) Active(ctx context.Context) (*models.SessionDetail, error) {
	id, err := c.requireActive()
	if err != nil {
		return nil, err
	}
	detail, err := c.repo.GetSession(ctx, id)
	if err != nil {
		return nil, remote("fetching active session", err)
	}
	return detail, nil
}

// AddExercise appends an exercise to the active session.
func (c *Controller) AddExercise(ctx context.Context, exerciseID uuid.UUID, orderIndex int) (uuid.UUID, error) {
	id, err := c.requireActive()
	if err != nil {
		return uuid.Nil, err
	}

	created, err := c.repo.AddExercises(ctx, []models.NewWorkoutExercise{{
		SessionID:  id,
		ExerciseID: exerciseID,
		OrderIndex: orderIndex,
	}})
	if err != nil {
		return uuid.Nil, remote("adding exercise", err)
	}
	if len(created) != 1 {
		return uuid.Nil, remote("adding exercise", fmt.Errorf("expected 1 row, got %d", len(created)))
	}
	return created[0].ID, nil
}

// RemoveExercise deletes a workout exercise and its sets.
func (c *Controller) RemoveExercise(ctx context.Context, workoutExerciseID uuid.UUID) error {
	if err := c.repo.DeleteExercise(ctx, workoutExerciseID); err != nil {
		return remote("removing exercise", err)
	}
	return nil
}

// AddSet persists a set directly. It does not need an active session and
// may target any workout exercise; the set takes the next free set number.
func (c *Controller) AddSet(ctx context.Context, workoutExerciseID uuid.UUID, reps int, weight float64, rpe *float64) (*models.Set, error) {
	rows, err := c.repo.InsertSets(ctx, []models.NewSet{{
		WorkoutExerciseID: workoutExerciseID,
		Reps:              reps,
		Weight:            weight,
		RPE:               rpe,
	}})
	if err != nil {
		return nil, remote("adding set", err)
	}
	if len(rows) != 1 {
		return nil, remote("adding set", fmt.Errorf("expected 1 row, got %d", len(rows)))
	}
	return &rows[0], nil
}

// Rename changes the active session's title.
func (c *Controller) Rename(ctx context.Context, title string) error {
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	return c.update(ctx, "renaming session", models.SessionUpdate{Title: &title})
}

// UpdateNotes replaces the active session's notes.
func (c *Controller) UpdateNotes(ctx context.Context, notes string) error {
	return c.update(ctx, "updating notes", models.SessionUpdate{Notes: &notes})
}

func (c *Controller) update(ctx context.Context, op string, u models.SessionUpdate) error {
	id, err := c.requireActive()
	if err != nil {
		return err
	}
	if err := c.repo.UpdateSession(ctx, id, u); err != nil {
		return remote(op, err)
	}
	return nil
}

// EndSession stamps ended_at on the active session and clears the pointer.
func (c *Controller) EndSession(ctx context.Context) error {
	id, err := c.requireActive()
	if err != nil {
		return err
	}

	ended := c.clock()
	if err := c.repo.UpdateSession(ctx, id, models.SessionUpdate{EndedAt: &ended}); err != nil {
		return remote("ending session", err)
	}

	c.clearActive(id)
	c.log.Info("session ended", "session_id", id)
	return nil
}

// Finish runs the recap flow on the active session and clears the pointer.
// A nil sentiment is rejected before anything is written.
func (c *Controller) Finish(ctx context.Context, sentiment *Sentiment) (*Completion, error) {
	id, err := c.requireActive()
	if err != nil {
		return nil, err
	}

	done, err := c.recap.Complete(ctx, id, sentiment)
	if err != nil {
		return nil, err
	}

	c.clearActive(id)
	return done, nil
}

// DiscardSession deletes the active session entirely and clears the pointer.
func (c *Controller) DiscardSession(ctx context.Context) error {
	id, err := c.requireActive()
	if err != nil {
		return err
	}

	if err := c.repo.DeleteSession(ctx, id); err != nil {
		return remote("discarding session", err)
	}

	c.clearActive(id)
	c.log.Info("session discarded", "session_id", id)
	return nil
}
