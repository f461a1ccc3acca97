package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
)

type memStore struct {
	profiles map[uuid.UUID]models.Profile
	weights  []models.WeightLog
	upserts  int
	failGet  error
}

func newMemStore() *memStore {
	return &memStore{profiles: map[uuid.UUID]models.Profile{}}
}

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) UsernameTaken(_ context.Context, username string, exclude uuid.UUID) (bool, error) {
	for id, p := range m.profiles {
		if id != exclude && p.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpsertProfile(_ context.Context, p models.Profile) error {
	m.upserts++
	m.profiles[p.ID] = p
	return nil
}

func (m *memStore) LogWeight(_ context.Context, w models.WeightLog) error {
	m.weights = append(m.weights, w)
	return nil
}

func (m *memStore) WeightLogs(_ context.Context, userID uuid.UUID, limit int) ([]models.WeightLog, error) {
	var out []models.WeightLog
	for _, w := range m.weights {
		if w.UserID == userID && len(out) < limit {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) Progress(_ context.Context, userID uuid.UUID) (*models.UserMiscData, error) {
	return &models.UserMiscData{UserID: userID, XP: 120, Level: 2}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strp(s string) *string { return &s }

// TestValidateUsername checks normalisation and the allowed character set.
func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"  Lifter_01 ", "lifter_01", true},
		{"ab", "", false},
		{"has space", "", false},
		{"way_too_long_username_here", "", false},
		{"dash-name", "", false},
	}
	for _, tt := range tests {
		got, err := ValidateUsername(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, session.ErrValidation, tt.in)
		}
	}
}

// TestUpdateCreatesMissingProfile verifies an edit on a user without a row
// upserts a fresh profile.
func TestUpdateCreatesMissingProfile(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testLogger())
	id := uuid.New()

	p, err := svc.Update(context.Background(), id, Edit{Username: strp("Squatter"), FullName: strp(" Sam ")})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "squatter", p.Username)
	assert.Equal(t, "Sam", p.FullName)
	assert.Equal(t, 1, store.upserts)
}

// TestUpdateRejectsTakenUsername verifies uniqueness is checked against
// other users but not against the user's own name.
func TestUpdateRejectsTakenUsername(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testLogger())
	me, other := uuid.New(), uuid.New()
	store.profiles[me] = models.Profile{ID: me, Username: "mine"}
	store.profiles[other] = models.Profile{ID: other, Username: "taken"}

	_, err := svc.Update(context.Background(), me, Edit{Username: strp("taken")})
	assert.ErrorIs(t, err, session.ErrValidation)
	assert.Equal(t, 0, store.upserts)

	_, err = svc.Update(context.Background(), me, Edit{Username: strp("mine"), Goal: strp("bench 100")})
	require.NoError(t, err)
	assert.Equal(t, "bench 100", store.profiles[me].Goal)
}

func TestUpdateRejectsLongGoal(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	long := make([]rune, maxGoalLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := svc.Update(context.Background(), uuid.New(), Edit{Goal: strp(string(long))})
	assert.ErrorIs(t, err, session.ErrValidation)
}

func TestUpdatePropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("boom")
	svc := NewService(store, testLogger())
	_, err := svc.Update(context.Background(), uuid.New(), Edit{})
	assert.ErrorContains(t, err, "getting profile")
}

// TestLogWeight verifies bounds and that the entry is stamped with the clock.
func TestLogWeight(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testLogger())
	fixed := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	id := uuid.New()

	_, err := svc.LogWeight(context.Background(), id, 5)
	assert.ErrorIs(t, err, session.ErrValidation)

	w, err := svc.LogWeight(context.Background(), id, 82.5)
	require.NoError(t, err)
	assert.Equal(t, fixed, w.LoggedAt)
	require.Len(t, store.weights, 1)
	assert.Equal(t, 82.5, store.weights[0].Weight)
}

func TestGetOverview(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testLogger())
	id := uuid.New()

	ov, err := svc.Get(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Equal(t, id, ov.Profile.ID)
	assert.NotNil(t, ov.Weights)
	assert.Equal(t, 2, ov.Progress.Level)
}
