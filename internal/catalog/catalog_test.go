package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	defs  []models.ExerciseDefinition
	lists int
	gets  int
}

func (s *countingSource) ListExercises(context.Context) ([]models.ExerciseDefinition, error) {
	s.lists++
	return s.defs, nil
}

func (s *countingSource) GetExercise(_ context.Context, id uuid.UUID) (*models.ExerciseDefinition, error) {
	s.gets++
	for _, d := range s.defs {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, session.ErrNotFound
}

func newTestCatalog() (*Catalog, *countingSource) {
	src := &countingSource{defs: []models.ExerciseDefinition{
		{ID: uuid.New(), Name: "Bench Press", MuscleGroup: "Chest"},
		{ID: uuid.New(), Name: "Incline Bench Press", MuscleGroup: "Chest"},
		{ID: uuid.New(), Name: "Squat", MuscleGroup: "Legs"},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(src, freecache.NewCache(512*1024), time.Hour, log), src
}

// TestListCached verifies the backend is hit once until invalidation.
func TestListCached(t *testing.T) {
	c, src := newTestCatalog()
	ctx := context.Background()

	for range 3 {
		defs, err := c.List(ctx)
		require.NoError(t, err)
		assert.Len(t, defs, 3)
	}
	assert.Equal(t, 1, src.lists)

	c.Invalidate()
	_, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.lists)
}

// TestGetCached verifies single definitions are cached by id.
func TestGetCached(t *testing.T) {
	c, src := newTestCatalog()
	ctx := context.Background()
	id := src.defs[2].ID

	for range 2 {
		def, err := c.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Squat", def.Name)
	}
	assert.Equal(t, 1, src.gets)

	_, err := c.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

// TestResolve covers id lookup, exact names, unique partials and ambiguity.
func TestResolve(t *testing.T) {
	c, src := newTestCatalog()
	ctx := context.Background()

	def, err := c.Resolve(ctx, src.defs[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Bench Press", def.Name)

	def, err = c.Resolve(ctx, "bench press")
	require.NoError(t, err)
	assert.Equal(t, src.defs[0].ID, def.ID, "exact match wins over the incline variant")

	def, err = c.Resolve(ctx, "squ")
	require.NoError(t, err)
	assert.Equal(t, "Squat", def.Name)

	_, err = c.Resolve(ctx, "chest")
	assert.ErrorIs(t, err, session.ErrValidation)

	_, err = c.Resolve(ctx, "deadlift")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
