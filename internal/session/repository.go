package session

import (
	"context"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// SessionStore persists workout sessions and their exercises.
type SessionStore interface {
	CreateSession(ctx context.Context, s models.NewSession) (uuid.UUID, error)
	// GetSession returns the session tree ordered by order index then set
	// number, or an error matching ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error)
	UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error
	// DeleteSession removes the session together with its exercises and sets.
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// AddExercises bulk-inserts exercises and returns them in input order.
	AddExercises(ctx context.Context, exercises []models.NewWorkoutExercise) ([]models.WorkoutExercise, error)
	// DeleteExercise removes the exercise's sets first, then the exercise.
	DeleteExercise(ctx context.Context, id uuid.UUID) error
	// ExerciseOwner returns the user owning the session of a workout
	// exercise, or an error matching ErrNotFound.
	ExerciseOwner(ctx context.Context, workoutExerciseID uuid.UUID) (uuid.UUID, error)
}

// SetStore persists individual sets.
type SetStore interface {
	// InsertSets bulk-inserts sets and returns them in input order.
	InsertSets(ctx context.Context, sets []models.NewSet) ([]models.Set, error)
	DeleteSet(ctx context.Context, id uuid.UUID) error
	// PreviousSets returns the sets logged for exerciseID in the user's most
	// recent completed session other than excludeSession, ordered by set number.
	PreviousSets(ctx context.Context, userID, exerciseID, excludeSession uuid.UUID) ([]models.Set, error)
}

// TemplateStore reads workout templates.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.TemplateDetail, error)
}

// Repository is the full persistence contract of the session lifecycle.
// Implementations propagate backend errors unchanged and never retry.
type Repository interface {
	SessionStore
	SetStore
	TemplateStore
}

// Authenticator reports the signed-in user, or an error matching ErrAuthRequired.
type Authenticator interface {
	CurrentUser(ctx context.Context) (models.User, error)
}

// StaticUser is an Authenticator for an identity that was verified elsewhere,
// such as a bearer token checked by HTTP middleware.
type StaticUser models.User

func (u StaticUser) CurrentUser(context.Context) (models.User, error) {
	if u.ID == uuid.Nil {
		return models.User{}, ErrAuthRequired
	}
	return models.User(u), nil
}
