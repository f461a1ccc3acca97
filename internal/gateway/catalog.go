package gateway

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// CatalogRepo reads the exercise catalog and workout templates.
type CatalogRepo struct {
	c *Client
}

// NewCatalogRepo creates a CatalogRepo.
func NewCatalogRepo(c *Client) *CatalogRepo {
	return &CatalogRepo{c: c}
}

func (r *CatalogRepo) ListExercises(ctx context.Context) ([]models.ExerciseDefinition, error) {
	var defs []models.ExerciseDefinition
	if err := r.c.From("exercises").Order("name", true).Get(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *CatalogRepo) GetExercise(ctx context.Context, id uuid.UUID) (*models.ExerciseDefinition, error) {
	var def models.ExerciseDefinition
	if err := r.c.From("exercises").Eq("id", id).Single().Get(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpsertExercises inserts or updates catalog rows by id.
func (r *CatalogRepo) UpsertExercises(ctx context.Context, defs []models.ExerciseDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return r.c.From("exercises").Upsert(ctx, defs, "id", nil)
}

// ListTemplates returns public templates and those owned by userID.
func (r *CatalogRepo) ListTemplates(ctx context.Context, userID uuid.UUID) ([]models.WorkoutTemplate, error) {
	var out []models.WorkoutTemplate
	err := r.c.From("workout_templates").
		Or(fmt.Sprintf("is_public.eq.true,user_id.eq.%s", userID)).
		Order("name", true).
		Get(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTemplate stores a template and its exercises. Ids left nil are generated.
func (r *CatalogRepo) CreateTemplate(ctx context.Context, t models.TemplateDetail) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := r.c.From("workout_templates").Insert(ctx, t.WorkoutTemplate, nil); err != nil {
		return uuid.Nil, err
	}
	if len(t.Exercises) == 0 {
		return t.ID, nil
	}
	for i := range t.Exercises {
		t.Exercises[i].TemplateID = t.ID
		if t.Exercises[i].ID == uuid.Nil {
			t.Exercises[i].ID = uuid.New()
		}
	}
	if err := r.c.From("template_exercises").Insert(ctx, t.Exercises, nil); err != nil {
		return t.ID, fmt.Errorf("template %s created without exercises: %w", t.ID, err)
	}
	return t.ID, nil
}
