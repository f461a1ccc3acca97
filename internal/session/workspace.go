package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// Workspace is one user's handle on the session lifecycle: the controller
// plus the set editors of the active session. Editors are dropped whenever
// the active session changes.
type Workspace struct {
	ctrl *Controller
	repo Repository
	user models.User
	log  *slog.Logger

	mu      sync.Mutex
	session uuid.UUID
	editors map[uuid.UUID]*ExerciseSets
}

// NewWorkspace creates a workspace for an already authenticated user.
func NewWorkspace(repo Repository, user models.User, recorder ActivityRecorder, log *slog.Logger) *Workspace {
	log = log.With("user_id", user.ID)
	return &Workspace{
		ctrl:    NewController(repo, StaticUser(user), recorder, log),
		repo:    repo,
		user:    user,
		log:     log,
		editors: make(map[uuid.UUID]*ExerciseSets),
	}
}

// Controller returns the workspace's session controller.
func (w *Workspace) Controller() *Controller {
	return w.ctrl
}

// User returns the workspace owner.
func (w *Workspace) User() models.User {
	return w.user
}

// Sets returns the set editor of a workout exercise in the active session,
// creating it from the persisted rows on first use.
func (w *Workspace) Sets(ctx context.Context, workoutExerciseID uuid.UUID) (*ExerciseSets, error) {
	active, ok := w.ctrl.ActiveSessionID()
	if !ok {
		w.reset(uuid.Nil)
		return nil, ErrNoActiveSession
	}

	w.mu.Lock()
	if w.session != active {
		w.session = active
		w.editors = make(map[uuid.UUID]*ExerciseSets)
	}
	if ed, ok := w.editors[workoutExerciseID]; ok {
		w.mu.Unlock()
		return ed, nil
	}
	w.mu.Unlock()

	detail, err := w.repo.GetSession(ctx, active)
	if err != nil {
		return nil, remote("fetching active session", err)
	}
	var ex *models.ExerciseDetail
	for i := range detail.Exercises {
		if detail.Exercises[i].ID == workoutExerciseID {
			ex = &detail.Exercises[i]
			break
		}
	}
	if ex == nil {
		return nil, fmt.Errorf("workout exercise %s: %w", workoutExerciseID, ErrNotFound)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != active {
		return nil, ErrNoActiveSession
	}
	// A concurrent caller may have built the editor while we were fetching.
	if ed, ok := w.editors[workoutExerciseID]; ok {
		return ed, nil
	}
	ed := NewExerciseSets(w.repo, w.user.ID, *ex, w.log)
	w.editors[workoutExerciseID] = ed
	return ed, nil
}

// RemoveExercise deletes a workout exercise of the active session together
// with its sets and drops its editor. Ids outside the active session are
// reported as not found.
func (w *Workspace) RemoveExercise(ctx context.Context, workoutExerciseID uuid.UUID) error {
	detail, err := w.ctrl.Active(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, ex := range detail.Exercises {
		if ex.ID == workoutExerciseID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("workout exercise %s: %w", workoutExerciseID, ErrNotFound)
	}

	if err := w.ctrl.RemoveExercise(ctx, workoutExerciseID); err != nil {
		return err
	}
	w.Forget(workoutExerciseID)
	return nil
}

// AddSet logs a completed set on one of the user's workout exercises,
// active session or not. An open editor of that exercise receives the new
// row and keeps its drafts.
func (w *Workspace) AddSet(ctx context.Context, workoutExerciseID uuid.UUID, reps int, weight float64, rpe *float64) (*models.Set, error) {
	owner, err := w.repo.ExerciseOwner(ctx, workoutExerciseID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("workout exercise %s: %w", workoutExerciseID, ErrNotFound)
	case err != nil:
		return nil, remote("checking workout exercise", err)
	case owner != w.user.ID:
		return nil, fmt.Errorf("workout exercise %s: %w", workoutExerciseID, ErrNotFound)
	}

	set, err := w.ctrl.AddSet(ctx, workoutExerciseID, reps, weight, rpe)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	ed := w.editors[workoutExerciseID]
	w.mu.Unlock()
	if ed != nil {
		ed.Append(*set)
	}
	return set, nil
}

// Forget drops the editor of a workout exercise, e.g. after it was removed.
func (w *Workspace) Forget(workoutExerciseID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.editors, workoutExerciseID)
}

func (w *Workspace) reset(session uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = session
	w.editors = make(map[uuid.UUID]*ExerciseSets)
}

// Workspaces hands out one Workspace per user.
type Workspaces struct {
	repo     Repository
	recorder ActivityRecorder
	log      *slog.Logger

	mu     sync.Mutex
	byUser map[uuid.UUID]*Workspace
}

// NewWorkspaces creates an empty workspace registry.
func NewWorkspaces(repo Repository, recorder ActivityRecorder, log *slog.Logger) *Workspaces {
	return &Workspaces{
		repo:     repo,
		recorder: recorder,
		log:      log,
		byUser:   make(map[uuid.UUID]*Workspace),
	}
}

// For returns the user's workspace, creating it on first use.
func (ws *Workspaces) For(user models.User) (*Workspace, error) {
	if user.ID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.byUser[user.ID]
	if !ok {
		w = NewWorkspace(ws.repo, user, ws.recorder, ws.log)
		ws.byUser[user.ID] = w
	}
	return w, nil
}
