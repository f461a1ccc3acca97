// Package profile validates and applies edits to a user's profile and body
// weight log.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
)

const (
	maxNameLength = 50
	maxGoalLength = 200
	minWeightKg   = 20
	maxWeightKg   = 400
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// Store is implemented by gateway.ProfileRepo and storage.DB.
type Store interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error)
	UpsertProfile(ctx context.Context, p models.Profile) error
	LogWeight(ctx context.Context, w models.WeightLog) error
	WeightLogs(ctx context.Context, userID uuid.UUID, limit int) ([]models.WeightLog, error)
	Progress(ctx context.Context, userID uuid.UUID) (*models.UserMiscData, error)
}

// Edit is a partial profile change. Nil fields are left untouched.
type Edit struct {
	Username *string `json:"username,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Goal     *string `json:"goal,omitempty"`
}

// Overview is the profile screen: the row, recent weights and progression.
type Overview struct {
	Profile  models.Profile      `json:"profile"`
	Weights  []models.WeightLog  `json:"weights"`
	Progress models.UserMiscData `json:"progress"`
}

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// ValidateUsername normalises and checks a username.
func ValidateUsername(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: username must be 3-20 characters of a-z, 0-9 or _", session.ErrValidation)
	}
	return name, nil
}

func validateText(field, v string, limit int) (string, error) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > limit {
		return "", fmt.Errorf("%w: %s is longer than %d characters", session.ErrValidation, field, limit)
	}
	return v, nil
}

// Get returns the profile overview. A user without a profile row gets an
// empty one carrying only the id.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, weights int) (*Overview, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("getting profile: %w", err)
		}
		p = &models.Profile{ID: userID}
	}
	logs, err := s.store.WeightLogs(ctx, userID, weights)
	if err != nil {
		return nil, fmt.Errorf("getting weight logs: %w", err)
	}
	prog, err := s.store.Progress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	if logs == nil {
		logs = []models.WeightLog{}
	}
	return &Overview{Profile: *p, Weights: logs, Progress: *prog}, nil
}

// Update applies e after validating every field. The username is checked
// for uniqueness against other users.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, e Edit) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("getting profile: %w", err)
		}
		p = &models.Profile{ID: userID}
	}

	if e.FullName != nil {
		if p.FullName, err = validateText("name", *e.FullName, maxNameLength); err != nil {
			return nil, err
		}
	}
	if e.Goal != nil {
		if p.Goal, err = validateText("goal", *e.Goal, maxGoalLength); err != nil {
			return nil, err
		}
	}
	if e.Username != nil {
		name, err := ValidateUsername(*e.Username)
		if err != nil {
			return nil, err
		}
		if name != p.Username {
			taken, err := s.store.UsernameTaken(ctx, name, userID)
			if err != nil {
				return nil, fmt.Errorf("checking username: %w", err)
			}
			if taken {
				return nil, fmt.Errorf("%w: username %q is taken", session.ErrValidation, name)
			}
		}
		p.Username = name
	}

	if err := s.store.UpsertProfile(ctx, *p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	s.log.Info("profile updated", "user", userID)
	return p, nil
}

// LogWeight records a body weight in kilograms.
func (s *Service) LogWeight(ctx context.Context, userID uuid.UUID, kg float64) (*models.WeightLog, error) {
	if kg < minWeightKg || kg > maxWeightKg {
		return nil, fmt.Errorf("%w: weight must be between %d and %d kg", session.ErrValidation, minWeightKg, maxWeightKg)
	}
	w := models.WeightLog{
		ID:       uuid.New(),
		UserID:   userID,
		Weight:   kg,
		LoggedAt: s.now().UTC(),
	}
	if err := s.store.LogWeight(ctx, w); err != nil {
		return nil, fmt.Errorf("logging weight: %w", err)
	}
	return &w, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, session.ErrNotFound)
}
