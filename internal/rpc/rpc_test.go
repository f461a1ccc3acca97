package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/session"
	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	params map[string]any
}

// fakeCaller answers procedures with canned JSON documents.
type fakeCaller struct {
	responses map[string]string
	err       error
	calls     []call
}

func (f *fakeCaller) CallRows(ctx context.Context, name string, params map[string]any, dst any) error {
	return f.CallScalar(ctx, name, params, dst)
}

func (f *fakeCaller) CallScalar(_ context.Context, name string, params map[string]any, dst any) error {
	f.calls = append(f.calls, call{name, params})
	if f.err != nil {
		return f.err
	}
	body, ok := f.responses[name]
	if !ok || dst == nil {
		return nil
	}
	return json.Unmarshal([]byte(body), dst)
}

func newTestClient(f *fakeCaller, cache *freecache.Cache) *Client {
	return New(f, cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestActivityFeed(t *testing.T) {
	userID := uuid.New()
	f := &fakeCaller{responses: map[string]string{
		"get_activity_feed": `[{"id":"` + uuid.NewString() + `","user_id":"` + userID.String() + `",
			"username":"ana","type":"workout_completed","data":{"xp_earned":65},"created_at":"2026-05-01T08:00:00Z"}]`,
	}}

	items, err := newTestClient(f, nil).ActivityFeed(context.Background(), userID, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "workout_completed", items[0].Type)
	assert.JSONEq(t, `{"xp_earned":65}`, string(items[0].Data))

	require.Len(t, f.calls, 1)
	assert.Equal(t, userID, f.calls[0].params["user_id"])
	assert.Equal(t, 20, f.calls[0].params["limit"])
}

// TestInvalidRowsRejected verifies rows failing their schema never reach callers.
func TestInvalidRowsRejected(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{
		"get_activity_feed":      `[{"id":"` + uuid.NewString() + `","user_id":"` + uuid.NewString() + `","type":""}]`,
		"get_streak_leaderboard": `[{"user_id":"00000000-0000-0000-0000-000000000000","current_streak":3}]`,
		"get_user_workout_stats": `[]`,
		"get_weight_progress":    `[{"date":"2026-01-01T00:00:00Z","weight":0}]`,
	}}
	c := newTestClient(f, nil)
	ctx := context.Background()

	_, err := c.ActivityFeed(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = c.StreakLeaderboard(ctx, 10)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = c.WorkoutStats(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = c.WeightProgress(ctx, uuid.New(), 30)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// TestWrongShapeFailsDecode verifies an object where rows are expected is an error.
func TestWrongShapeFailsDecode(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"get_user_followers": `{"id":"x"}`}}
	_, err := newTestClient(f, nil).Followers(context.Background(), uuid.New())
	assert.Error(t, err)
}

// TestLeaderboardCached verifies the second read is served from freecache.
func TestLeaderboardCached(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{
		"get_streak_leaderboard": `[{"user_id":"` + uuid.NewString() + `","username":"ana","current_streak":12,"rank":1}]`,
	}}
	c := newTestClient(f, freecache.NewCache(512*1024))
	ctx := context.Background()

	first, err := c.StreakLeaderboard(ctx, 10)
	require.NoError(t, err)
	second, err := c.StreakLeaderboard(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.calls, 1)

	_, err = c.StreakLeaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, f.calls, 2, "different limits are cached separately")
}

func TestCurrentStreak(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"calculate_user_current_streak": `7`}}
	streak, err := newTestClient(f, nil).CurrentStreak(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 7, streak)

	f.responses["calculate_user_current_streak"] = `null`
	streak, err = newTestClient(f, nil).CurrentStreak(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, streak)

	f.responses["calculate_user_current_streak"] = `-1`
	_, err = newTestClient(f, nil).CurrentStreak(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// TestCreateWorkoutActivityParams verifies duration is sent as whole minutes.
func TestCreateWorkoutActivityParams(t *testing.T) {
	f := &fakeCaller{}
	userID, sessionID := uuid.New(), uuid.New()
	err := newTestClient(f, nil).CreateWorkoutActivity(context.Background(), userID, sessionID, 65, "Push", 52*time.Minute+40*time.Second)
	require.NoError(t, err)

	require.Len(t, f.calls, 1)
	p := f.calls[0].params
	assert.Equal(t, "create_workout_activity", f.calls[0].name)
	assert.Equal(t, 53, p["duration"])
	assert.Equal(t, 65, p["xp"])
	assert.Equal(t, sessionID, p["session_id"])
}

// TestFollowSelf verifies following yourself fails validation without a call.
func TestFollowSelf(t *testing.T) {
	f := &fakeCaller{}
	id := uuid.New()
	assert.ErrorIs(t, newTestClient(f, nil).Follow(context.Background(), id, id), session.ErrValidation)
	assert.Empty(t, f.calls)
}

func TestCallerErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeCaller{err: boom}
	_, err := newTestClient(f, nil).FriendSuggestions(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Month, p)
	p, err = ParsePeriod("year")
	require.NoError(t, err)
	assert.Equal(t, Year, p)
	_, err = ParsePeriod("decade")
	assert.Error(t, err)
}
