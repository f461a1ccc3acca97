// Package rpc wraps the backend's stored procedures with typed, validated
// results. Procedure bodies live in the backend.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/claude/ironlog/internal/activity"
	"github.com/claude/ironlog/internal/session"
	"github.com/coocood/freecache"
	"github.com/google/uuid"
)

// Caller invokes a named procedure with named parameters and decodes the
// JSON result into dst.
type Caller interface {
	CallRows(ctx context.Context, name string, params map[string]any, dst any) error
	CallScalar(ctx context.Context, name string, params map[string]any, dst any) error
}

// Period selects the bucket range of the progress procedures.
type Period string

const (
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
	All   Period = "all"
)

// ParsePeriod validates a period name; an empty string means Month.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return Month, nil
	case Week, Month, Year, All:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

type validator interface {
	Validate() error
}

// Client is the typed procedure surface.
type Client struct {
	caller         Caller
	cache          *freecache.Cache
	leaderboardTTL time.Duration
	log            *slog.Logger
}

// Compile-time check: Client satisfies activity.Backend.
var _ activity.Backend = (*Client)(nil)

// New creates a Client. cache may be nil to disable leaderboard caching.
func New(caller Caller, cache *freecache.Cache, leaderboardTTL time.Duration, log *slog.Logger) *Client {
	return &Client{caller: caller, cache: cache, leaderboardTTL: leaderboardTTL, log: log}
}

func rows[T validator](ctx context.Context, c Caller, name string, params map[string]any) ([]T, error) {
	var out []T
	if err := c.CallRows(ctx, name, params, &out); err != nil {
		return nil, err
	}
	for i, row := range out {
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i, err)
		}
	}
	return out, nil
}

func one[T validator](ctx context.Context, c Caller, name string, params map[string]any) (*T, error) {
	out, err := rows[T](ctx, c, name, params)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: %w: expected 1 row, got %d", name, ErrInvalidResponse, len(out))
	}
	return &out[0], nil
}

func (c *Client) ActivityFeed(ctx context.Context, userID uuid.UUID, limit int) ([]FeedItem, error) {
	return rows[FeedItem](ctx, c.caller, "get_activity_feed", map[string]any{"user_id": userID, "limit": limit})
}

func (c *Client) UsersWithRelationship(ctx context.Context, currentUserID uuid.UUID) ([]UserRelationship, error) {
	return rows[UserRelationship](ctx, c.caller, "get_all_users_with_relationship", map[string]any{"current_user_id": currentUserID})
}

func (c *Client) Following(ctx context.Context, userID uuid.UUID) ([]UserSummary, error) {
	return rows[UserSummary](ctx, c.caller, "get_user_following", map[string]any{"user_id": userID})
}

func (c *Client) Followers(ctx context.Context, userID uuid.UUID) ([]UserSummary, error) {
	return rows[UserSummary](ctx, c.caller, "get_user_followers", map[string]any{"user_id": userID})
}

func (c *Client) FriendSuggestions(ctx context.Context, userID uuid.UUID) ([]FriendSuggestion, error) {
	return rows[FriendSuggestion](ctx, c.caller, "get_friend_suggestions", map[string]any{"user_id": userID})
}

func (c *Client) Follow(ctx context.Context, followerID, followingID uuid.UUID) error {
	if followerID == followingID {
		return fmt.Errorf("cannot follow yourself: %w", session.ErrValidation)
	}
	return c.caller.CallScalar(ctx, "follow_user", map[string]any{"follower_id": followerID, "following_id": followingID}, nil)
}

func (c *Client) Unfollow(ctx context.Context, followerID, followingID uuid.UUID) error {
	return c.caller.CallScalar(ctx, "unfollow_user", map[string]any{"follower_id": followerID, "following_id": followingID}, nil)
}

// StreakLeaderboard returns the top streaks, served from cache for the
// configured TTL.
func (c *Client) StreakLeaderboard(ctx context.Context, limit int) ([]StreakEntry, error) {
	key := []byte("leaderboard::" + strconv.Itoa(limit))
	if c.cache != nil {
		if data, err := c.cache.Get(key); err == nil {
			var cached []StreakEntry
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			c.log.Warn("dropping undecodable leaderboard cache entry", "limit", limit)
		}
	}

	out, err := rows[StreakEntry](ctx, c.caller, "get_streak_leaderboard", map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.leaderboardTTL > 0 {
		data, err := json.Marshal(out)
		if err == nil {
			err = c.cache.Set(key, data, int(c.leaderboardTTL/time.Second))
		}
		if err != nil {
			c.log.Warn("caching leaderboard failed", "error", err)
		}
	}
	return out, nil
}

func (c *Client) CurrentStreak(ctx context.Context, userID uuid.UUID) (int, error) {
	var streak *int
	if err := c.caller.CallScalar(ctx, "calculate_user_current_streak", map[string]any{"user_id": userID}, &streak); err != nil {
		return 0, err
	}
	if streak == nil {
		return 0, nil
	}
	if *streak < 0 {
		return 0, fmt.Errorf("calculate_user_current_streak: %w: negative streak %d", ErrInvalidResponse, *streak)
	}
	return *streak, nil
}

func (c *Client) WorkoutStats(ctx context.Context, userID uuid.UUID) (*WorkoutStats, error) {
	return one[WorkoutStats](ctx, c.caller, "get_user_workout_stats", map[string]any{"uid": userID})
}

func (c *Client) VolumeOverTime(ctx context.Context, userID uuid.UUID, period Period) ([]VolumePoint, error) {
	return rows[VolumePoint](ctx, c.caller, "get_volume_over_time", map[string]any{"user_id": userID, "period": string(period)})
}

func (c *Client) WorkoutFrequency(ctx context.Context, userID uuid.UUID, period Period) ([]FrequencyPoint, error) {
	return rows[FrequencyPoint](ctx, c.caller, "get_workout_frequency", map[string]any{"user_id": userID, "period": string(period)})
}

func (c *Client) VolumeByMuscleGroup(ctx context.Context, userID uuid.UUID, period Period) ([]MuscleGroupVolume, error) {
	return rows[MuscleGroupVolume](ctx, c.caller, "get_volume_by_muscle_group", map[string]any{"user_id": userID, "period": string(period)})
}

func (c *Client) ExerciseStats(ctx context.Context, userID, exerciseID uuid.UUID) (*ExerciseStats, error) {
	return one[ExerciseStats](ctx, c.caller, "exercise_stats_rpc", map[string]any{"user_id": userID, "exercise_id": exerciseID})
}

func (c *Client) WeightProgress(ctx context.Context, userID uuid.UUID, days int) ([]WeightPoint, error) {
	return rows[WeightPoint](ctx, c.caller, "get_weight_progress", map[string]any{"user_uuid": userID, "days": days})
}

// CreateWorkoutActivity records a completed workout. Duration is sent in
// whole minutes.
func (c *Client) CreateWorkoutActivity(ctx context.Context, userID, sessionID uuid.UUID, xp int, title string, duration time.Duration) error {
	return c.caller.CallScalar(ctx, "create_workout_activity", map[string]any{
		"user_id":    userID,
		"session_id": sessionID,
		"xp":         xp,
		"title":      title,
		"duration":   int(duration.Round(time.Minute) / time.Minute),
	}, nil)
}

func (c *Client) CreateUserActivity(ctx context.Context, userID uuid.UUID, activityType string, data map[string]any) error {
	return c.caller.CallScalar(ctx, "create_user_activity", map[string]any{
		"user_id": userID,
		"type":    activityType,
		"data":    data,
	}, nil)
}
