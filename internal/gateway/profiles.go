package gateway

import (
	"context"
	"errors"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

// ProfileRepo reads and writes profiles, weight logs and progression rows.
type ProfileRepo struct {
	c *Client
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(c *Client) *ProfileRepo {
	return &ProfileRepo{c: c}
}

func (r *ProfileRepo) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := r.c.From("profiles").Eq("id", id).Single().Get(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UsernameTaken reports whether another profile already uses username.
func (r *ProfileRepo) UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	var rows []struct {
		ID uuid.UUID `json:"id"`
	}
	err := r.c.From("profiles").Select("id").Eq("username", username).Neq("id", exclude).Limit(1).Get(ctx, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *ProfileRepo) UpsertProfile(ctx context.Context, p models.Profile) error {
	return r.c.From("profiles").Upsert(ctx, p, "id", nil)
}

func (r *ProfileRepo) LogWeight(ctx context.Context, w models.WeightLog) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return r.c.From("weight_logs").Insert(ctx, w, nil)
}

func (r *ProfileRepo) WeightLogs(ctx context.Context, userID uuid.UUID, limit int) ([]models.WeightLog, error) {
	var logs []models.WeightLog
	q := r.c.From("weight_logs").Eq("user_id", userID).Order("logged_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Get(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Progress returns the user's XP and level; a user without a row is at zero.
func (r *ProfileRepo) Progress(ctx context.Context, userID uuid.UUID) (*models.UserMiscData, error) {
	var row models.UserMiscData
	err := r.c.From("user_misc_data").Eq("user_id", userID).Single().Get(ctx, &row)
	if errors.Is(err, session.ErrNotFound) {
		return &models.UserMiscData{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
