// Package catalog serves the read-only exercise catalog from a freecache
// in front of the backend.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/coocood/freecache"
	"github.com/google/uuid"
)

// Source reads exercise definitions from the backend.
type Source interface {
	ListExercises(ctx context.Context) ([]models.ExerciseDefinition, error)
	GetExercise(ctx context.Context, id uuid.UUID) (*models.ExerciseDefinition, error)
}

// Catalog caches exercise definitions.
type Catalog struct {
	src   Source
	cache *freecache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// New creates a Catalog. The cache may be shared with other components;
// keys are prefixed.
func New(src Source, cache *freecache.Cache, ttl time.Duration, log *slog.Logger) *Catalog {
	return &Catalog{src: src, cache: cache, ttl: ttl, log: log}
}

var listKey = []byte("exercises::all")

func exerciseKey(id uuid.UUID) []byte {
	return []byte("exercise::" + id.String())
}

func (c *Catalog) load(key []byte, dst any) bool {
	data, err := c.cache.Get(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("dropping undecodable catalog cache entry", "key", string(key), "error", err)
		c.cache.Del(key)
		return false
	}
	return true
}

func (c *Catalog) store(key []byte, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.cache.Set(key, data, int(c.ttl/time.Second))
	}
	if err != nil {
		c.log.Warn("catalog cache write failed", "key", string(key), "error", err)
	}
}

// List returns all exercise definitions ordered by name.
func (c *Catalog) List(ctx context.Context) ([]models.ExerciseDefinition, error) {
	var defs []models.ExerciseDefinition
	if c.load(listKey, &defs) {
		return defs, nil
	}
	defs, err := c.src.ListExercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	c.store(listKey, defs)
	return defs, nil
}

// Get returns one exercise definition.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*models.ExerciseDefinition, error) {
	var def models.ExerciseDefinition
	if c.load(exerciseKey(id), &def) {
		return &def, nil
	}
	got, err := c.src.GetExercise(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching exercise %s: %w", id, err)
	}
	c.store(exerciseKey(id), got)
	return got, nil
}

// Search returns exercises whose name or muscle group contains query,
// case-insensitively.
func (c *Catalog) Search(ctx context.Context, query string) ([]models.ExerciseDefinition, error) {
	defs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return defs, nil
	}
	var out []models.ExerciseDefinition
	for _, d := range defs {
		if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.MuscleGroup), q) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Resolve finds an exercise by id or by name. An exact name match wins;
// otherwise the query must match exactly one exercise.
func (c *Catalog) Resolve(ctx context.Context, nameOrID string) (*models.ExerciseDefinition, error) {
	if id, err := uuid.Parse(nameOrID); err == nil {
		return c.Get(ctx, id)
	}
	matches, err := c.Search(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if strings.EqualFold(matches[i].Name, strings.TrimSpace(nameOrID)) {
			return &matches[i], nil
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("exercise %q: %w", nameOrID, session.ErrNotFound)
	case 1:
		return &matches[0], nil
	}
	names := make([]string, 0, 5)
	for i := 0; i < len(matches) && i < 5; i++ {
		names = append(names, matches[i].Name)
	}
	return nil, fmt.Errorf("%w: %q matches %d exercises (%s)", session.ErrValidation, nameOrID, len(matches), strings.Join(names, ", "))
}

// Invalidate drops the cached list, e.g. after an import.
func (c *Catalog) Invalidate() {
	c.cache.Del(listKey)
}
