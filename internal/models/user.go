package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated identity reported by the backend.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Profile is a row of the profiles table.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	AvatarPath string    `json:"avatar_url"`
	Goal       string    `json:"goal"`
}

// WeightLog is a row of the weight_logs table.
type WeightLog struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Weight   float64   `json:"weight"`
	LoggedAt time.Time `json:"logged_at"`
}

// UserMiscData is a row of the user_misc_data table carrying progression state.
type UserMiscData struct {
	UserID    uuid.UUID `json:"user_id"`
	XP        int       `json:"xp"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}
