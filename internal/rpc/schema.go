package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidResponse is returned when a procedure's result does not match
// its expected shape.
var ErrInvalidResponse = errors.New("invalid rpc response")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}

// FeedItem is a row of get_activity_feed.
type FeedItem struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Username  string          `json:"username"`
	AvatarURL string          `json:"avatar_url"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

func (f FeedItem) Validate() error {
	if f.ID == uuid.Nil || f.UserID == uuid.Nil {
		return invalid("feed item without id")
	}
	if f.Type == "" {
		return invalid("feed item %s without type", f.ID)
	}
	if f.CreatedAt.IsZero() {
		return invalid("feed item %s without created_at", f.ID)
	}
	return nil
}

// UserSummary is a row of get_user_following and get_user_followers.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
}

func (u UserSummary) Validate() error {
	if u.ID == uuid.Nil {
		return invalid("user row without id")
	}
	return nil
}

// UserRelationship is a row of get_all_users_with_relationship.
type UserRelationship struct {
	UserSummary
	IsFollowing bool `json:"is_following"`
	IsFollower  bool `json:"is_follower"`
}

// FriendSuggestion is a row of get_friend_suggestions.
type FriendSuggestion struct {
	UserSummary
	MutualCount int `json:"mutual_count"`
}

func (f FriendSuggestion) Validate() error {
	if err := f.UserSummary.Validate(); err != nil {
		return err
	}
	if f.MutualCount < 0 {
		return invalid("negative mutual_count for %s", f.ID)
	}
	return nil
}

// StreakEntry is a row of get_streak_leaderboard.
type StreakEntry struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	AvatarURL     string    `json:"avatar_url"`
	CurrentStreak int       `json:"current_streak"`
	Rank          int       `json:"rank"`
}

func (s StreakEntry) Validate() error {
	if s.UserID == uuid.Nil {
		return invalid("leaderboard row without user_id")
	}
	if s.CurrentStreak < 0 || s.Rank < 0 {
		return invalid("leaderboard row for %s has negative values", s.UserID)
	}
	return nil
}

// WorkoutStats is the single row of get_user_workout_stats.
type WorkoutStats struct {
	TotalWorkouts        int     `json:"total_workouts"`
	TotalSets            int     `json:"total_sets"`
	TotalReps            int     `json:"total_reps"`
	TotalVolume          float64 `json:"total_volume"`
	TotalDurationMinutes int     `json:"total_duration_minutes"`
}

func (w WorkoutStats) Validate() error {
	if w.TotalWorkouts < 0 || w.TotalSets < 0 || w.TotalReps < 0 || w.TotalVolume < 0 || w.TotalDurationMinutes < 0 {
		return invalid("workout stats contain negative totals")
	}
	return nil
}

// VolumePoint is a row of get_volume_over_time.
type VolumePoint struct {
	Period time.Time `json:"period"`
	Volume float64   `json:"volume"`
}

func (v VolumePoint) Validate() error {
	if v.Period.IsZero() {
		return invalid("volume point without period")
	}
	return nil
}

// FrequencyPoint is a row of get_workout_frequency.
type FrequencyPoint struct {
	Period   time.Time `json:"period"`
	Workouts int       `json:"workouts"`
}

func (f FrequencyPoint) Validate() error {
	if f.Period.IsZero() || f.Workouts < 0 {
		return invalid("bad frequency point")
	}
	return nil
}

// MuscleGroupVolume is a row of get_volume_by_muscle_group.
type MuscleGroupVolume struct {
	MuscleGroup string  `json:"muscle_group"`
	Volume      float64 `json:"volume"`
}

func (m MuscleGroupVolume) Validate() error {
	if m.MuscleGroup == "" {
		return invalid("muscle group volume without muscle_group")
	}
	return nil
}

// ExerciseStats is the single row of exercise_stats_rpc.
type ExerciseStats struct {
	MaxWeight      float64    `json:"max_weight"`
	MaxReps        int        `json:"max_reps"`
	TotalSets      int        `json:"total_sets"`
	TotalVolume    float64    `json:"total_volume"`
	EstimatedOneRM *float64   `json:"estimated_one_rm"`
	LastPerformed  *time.Time `json:"last_performed"`
}

func (e ExerciseStats) Validate() error {
	if e.TotalSets < 0 || e.MaxReps < 0 || e.MaxWeight < 0 {
		return invalid("exercise stats contain negative values")
	}
	return nil
}

// WeightPoint is a row of get_weight_progress.
type WeightPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

func (w WeightPoint) Validate() error {
	if w.Date.IsZero() || w.Weight <= 0 {
		return invalid("bad weight point")
	}
	return nil
}
