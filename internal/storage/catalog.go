package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const exerciseColumns = `id, name, COALESCE(category, ''), COALESCE(muscle_group, ''),
	COALESCE(equipment, ''), COALESCE(instructions, '')`

func scanExercise(row pgx.CollectableRow) (models.ExerciseDefinition, error) {
	var e models.ExerciseDefinition
	err := row.Scan(&e.ID, &e.Name, &e.Category, &e.MuscleGroup, &e.Equipment, &e.Instructions)
	return e, err
}

func (db *DB) ListExercises(ctx context.Context) ([]models.ExerciseDefinition, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defs, err := pgx.CollectRows(rows, scanExercise)
	if err != nil {
		return nil, fmt.Errorf("scanning exercises: %w", err)
	}
	return defs, nil
}

func (db *DB) GetExercise(ctx context.Context, id uuid.UUID) (*models.ExerciseDefinition, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying exercise: %w", err)
	}
	def, err := pgx.CollectExactlyOneRow(rows, scanExercise)
	if err != nil {
		return nil, fmt.Errorf("querying exercise %s: %w", id, classify(err))
	}
	return &def, nil
}

// UpsertExercises batch-upserts catalog rows by id.
func (db *DB) UpsertExercises(ctx context.Context, defs []models.ExerciseDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	query := `INSERT INTO exercises (id, name, category, muscle_group, equipment, instructions) VALUES `
	args := make([]any, 0, len(defs)*6)
	valueStrings := make([]string, 0, len(defs))

	for i, d := range defs {
		base := i * 6
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, d.ID, d.Name, d.Category, d.MuscleGroup, d.Equipment, d.Instructions)
	}

	query += strings.Join(valueStrings, ",") + ` ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, category = EXCLUDED.category, muscle_group = EXCLUDED.muscle_group,
		equipment = EXCLUDED.equipment, instructions = EXCLUDED.instructions`

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting exercises: %w", classify(err))
	}
	return nil
}

// ListTemplates returns public templates and those owned by userID.
func (db *DB) ListTemplates(ctx context.Context, userID uuid.UUID) ([]models.WorkoutTemplate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, COALESCE(description, ''), COALESCE(category, ''), is_public, user_id
		 FROM workout_templates WHERE is_public OR user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkoutTemplate, error) {
		var t models.WorkoutTemplate
		err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.IsPublic, &t.UserID)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning templates: %w", err)
	}
	return out, nil
}

// CreateTemplate stores a template and its exercises in one transaction.
func (db *DB) CreateTemplate(ctx context.Context, t models.TemplateDetail) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workout_templates (id, name, description, category, is_public, user_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.Name, t.Description, t.Category, t.IsPublic, t.UserID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, te := range t.Exercises {
			id := te.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			batch.Queue(
				`INSERT INTO template_exercises (id, template_id, exercise_id, order_index, target_sets, target_reps, notes)
				 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
				id, t.ID, te.ExerciseID, te.OrderIndex, te.TargetSets, te.TargetReps, te.Notes)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating template %q: %w", t.Name, classify(err))
	}
	return t.ID, nil
}
