package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/google/uuid"
)

func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := db.Pool.QueryRow(ctx,
		`SELECT id, COALESCE(username, ''), COALESCE(full_name, ''), COALESCE(avatar_url, ''), COALESCE(goal, '')
		 FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarPath, &p.Goal)
	if err != nil {
		return nil, fmt.Errorf("querying profile %s: %w", id, classify(err))
	}
	return &p, nil
}

// UsernameTaken reports whether another profile already uses username.
func (db *DB) UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE username = $1 AND id <> $2)`,
		username, exclude).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return taken, nil
}

func (db *DB) UpsertProfile(ctx context.Context, p models.Profile) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO profiles (id, username, full_name, avatar_url, goal)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username, full_name = EXCLUDED.full_name,
			avatar_url = EXCLUDED.avatar_url, goal = EXCLUDED.goal
	`, p.ID, p.Username, p.FullName, p.AvatarPath, p.Goal)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", classify(err))
	}
	return nil
}

func (db *DB) LogWeight(ctx context.Context, w models.WeightLog) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO weight_logs (id, user_id, weight, logged_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.UserID, w.Weight, w.LoggedAt)
	if err != nil {
		return fmt.Errorf("inserting weight log: %w", classify(err))
	}
	return nil
}

func (db *DB) WeightLogs(ctx context.Context, userID uuid.UUID, limit int) ([]models.WeightLog, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, weight, logged_at FROM weight_logs
		 WHERE user_id = $1 ORDER BY logged_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying weight logs: %w", err)
	}
	defer rows.Close()

	var result []models.WeightLog
	for rows.Next() {
		var w models.WeightLog
		if err := rows.Scan(&w.ID, &w.UserID, &w.Weight, &w.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning weight log: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// Progress returns the user's XP and level; a user without a row is at zero.
func (db *DB) Progress(ctx context.Context, userID uuid.UUID) (*models.UserMiscData, error) {
	row := models.UserMiscData{UserID: userID}
	err := db.Pool.QueryRow(ctx,
		`SELECT xp, level, updated_at FROM user_misc_data WHERE user_id = $1`, userID).
		Scan(&row.XP, &row.Level, &row.UpdatedAt)
	err = classify(err)
	if errors.Is(err, session.ErrNotFound) {
		return &row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	return &row, nil
}
