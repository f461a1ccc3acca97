package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (db *DB) CreateSession(ctx context.Context, s models.NewSession) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, title, notes, started_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		id, s.UserID, s.Title, s.Notes, s.StartedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting session: %w", classify(err))
	}
	return id, nil
}

// GetSession loads the session tree ordered by order index then set number.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	d := &models.SessionDetail{}
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, title, started_at, ended_at, COALESCE(notes, ''), sentiment
		 FROM workout_sessions WHERE id = $1`, id).
		Scan(&d.ID, &d.UserID, &d.Title, &d.StartedAt, &d.EndedAt, &d.Notes, &d.Sentiment)
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, classify(err))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, session_id, exercise_id, order_index, COALESCE(notes, '')
		 FROM workout_exercises WHERE session_id = $1
		 ORDER BY order_index, id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var ex models.ExerciseDetail
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.ExerciseID, &ex.OrderIndex, &ex.Notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		index[ex.ID] = len(d.Exercises)
		d.Exercises = append(d.Exercises, ex)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT s.id, s.workout_exercise_id, s.set_number, s.reps, s.weight, s.rpe, s.created_at
		 FROM sets s JOIN workout_exercises we ON we.id = s.workout_exercise_id
		 WHERE we.session_id = $1
		 ORDER BY s.set_number, s.created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("querying session sets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s models.Set
		if err := rows.Scan(&s.ID, &s.WorkoutExerciseID, &s.SetNumber, &s.Reps, &s.Weight, &s.RPE, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		if i, ok := index[s.WorkoutExerciseID]; ok {
			d.Exercises[i].Sets = append(d.Exercises[i].Sets, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying session sets: %w", err)
	}
	return d, nil
}

// sessionUpdateQuery builds the UPDATE for the non-nil fields of u.
func sessionUpdateQuery(id uuid.UUID, u models.SessionUpdate) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Notes != nil {
		add("notes", *u.Notes)
	}
	if u.EndedAt != nil {
		add("ended_at", *u.EndedAt)
	}
	if u.Sentiment != nil {
		add("sentiment", *u.Sentiment)
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE workout_sessions SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args
}

func (db *DB) UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error {
	if u.Empty() {
		return nil
	}
	query, args := sessionUpdateQuery(id, u)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating session: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating session %s: %w", id, classify(pgx.ErrNoRows))
	}
	return nil
}

// DeleteSession removes sets, exercises and the session in one transaction.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM sets WHERE workout_exercise_id IN
			 (SELECT id FROM workout_exercises WHERE session_id = $1)`, id); err != nil {
			return fmt.Errorf("deleting sets: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workout_exercises WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("deleting exercises: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workout_sessions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting session row: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, classify(err))
	}
	return nil
}

func (db *DB) AddExercises(ctx context.Context, in []models.NewWorkoutExercise) ([]models.WorkoutExercise, error) {
	if len(in) == 0 {
		return nil, nil
	}

	query := `INSERT INTO workout_exercises (id, session_id, exercise_id, order_index, notes) VALUES `
	args := make([]any, 0, len(in)*5)
	valueStrings := make([]string, 0, len(in))
	out := make([]models.WorkoutExercise, len(in))

	for i, e := range in {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,NULLIF($%d, ''))",
			base+1, base+2, base+3, base+4, base+5,
		))
		out[i] = models.WorkoutExercise{
			ID:         uuid.New(),
			SessionID:  e.SessionID,
			ExerciseID: e.ExerciseID,
			OrderIndex: e.OrderIndex,
			Notes:      e.Notes,
		}
		args = append(args, out[i].ID, e.SessionID, e.ExerciseID, e.OrderIndex, e.Notes)
	}

	query += strings.Join(valueStrings, ",")
	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting workout exercises: %w", classify(err))
	}
	return out, nil
}

// DeleteExercise removes the exercise's sets first, then the exercise.
func (db *DB) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sets WHERE workout_exercise_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM workout_exercises WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting workout exercise %s: %w", id, classify(err))
	}
	return nil
}

func (db *DB) ExerciseOwner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := db.Pool.QueryRow(ctx,
		`SELECT s.user_id FROM workout_exercises we
		 JOIN workout_sessions s ON s.id = we.session_id
		 WHERE we.id = $1`, id).Scan(&owner)
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying owner of workout exercise %s: %w", id, classify(err))
	}
	return owner, nil
}

// InsertSets batch-inserts sets. A zero SetNumber takes the next number after
// the exercise's highest existing set.
func (db *DB) InsertSets(ctx context.Context, in []models.NewSet) ([]models.Set, error) {
	if len(in) == 0 {
		return nil, nil
	}

	var out []models.Set
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		next := map[uuid.UUID]int{}
		sets := make([]models.NewSet, len(in))
		copy(sets, in)
		for i, s := range sets {
			if s.SetNumber != 0 {
				continue
			}
			last, ok := next[s.WorkoutExerciseID]
			if !ok {
				if err := tx.QueryRow(ctx,
					`SELECT COALESCE(MAX(set_number), 0) FROM sets WHERE workout_exercise_id = $1`,
					s.WorkoutExerciseID).Scan(&last); err != nil {
					return fmt.Errorf("reading last set number: %w", err)
				}
			}
			sets[i].SetNumber = last + 1
			next[s.WorkoutExerciseID] = last + 1
		}

		query, args, ids := insertSetsQuery(sets)
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		created, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Set, error) {
			var s models.Set
			err := row.Scan(&s.ID, &s.WorkoutExerciseID, &s.SetNumber, &s.Reps, &s.Weight, &s.RPE, &s.CreatedAt)
			return s, err
		})
		if err != nil {
			return err
		}
		out, err = byInputOrder(ids, created, func(s models.Set) uuid.UUID { return s.ID })
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting sets: %w", classify(err))
	}
	return out, nil
}

func insertSetsQuery(sets []models.NewSet) (string, []any, []uuid.UUID) {
	query := `INSERT INTO sets (id, workout_exercise_id, set_number, reps, weight, rpe) VALUES `
	args := make([]any, 0, len(sets)*6)
	valueStrings := make([]string, 0, len(sets))
	ids := make([]uuid.UUID, len(sets))

	for i, s := range sets {
		base := i * 6
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		ids[i] = uuid.New()
		args = append(args, ids[i], s.WorkoutExerciseID, s.SetNumber, s.Reps, s.Weight, s.RPE)
	}

	query += strings.Join(valueStrings, ",") +
		" RETURNING id, workout_exercise_id, set_number, reps, weight, rpe, created_at"
	return query, args, ids
}

func (db *DB) DeleteSet(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM sets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting set %s: %w", id, classify(err))
	}
	return nil
}

// PreviousSets returns the sets of exerciseID from the user's latest
// completed session other than excludeSession.
func (db *DB) PreviousSets(ctx context.Context, userID, exerciseID, excludeSession uuid.UUID) ([]models.Set, error) {
	rows, err := db.Pool.Query(ctx,
		`WITH prev AS (
			SELECT we.id FROM workout_exercises we
			JOIN workout_sessions ws ON ws.id = we.session_id
			WHERE ws.user_id = $1 AND we.exercise_id = $2 AND ws.id <> $3
			  AND ws.ended_at IS NOT NULL
			ORDER BY ws.ended_at DESC, we.order_index ASC
			LIMIT 1
		)
		SELECT s.id, s.workout_exercise_id, s.set_number, s.reps, s.weight, s.rpe, s.created_at
		FROM sets s JOIN prev ON prev.id = s.workout_exercise_id
		ORDER BY s.set_number`, userID, exerciseID, excludeSession)
	if err != nil {
		return nil, fmt.Errorf("querying previous sets: %w", err)
	}
	defer rows.Close()

	var result []models.Set
	for rows.Next() {
		var s models.Set
		if err := rows.Scan(&s.ID, &s.WorkoutExerciseID, &s.SetNumber, &s.Reps, &s.Weight, &s.RPE, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning previous set: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID) (*models.TemplateDetail, error) {
	t := &models.TemplateDetail{}
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, ''), COALESCE(category, ''), is_public, user_id
		 FROM workout_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.IsPublic, &t.UserID)
	if err != nil {
		return nil, fmt.Errorf("querying template %s: %w", id, classify(err))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, template_id, exercise_id, order_index, target_sets, target_reps, COALESCE(notes, '')
		 FROM template_exercises WHERE template_id = $1 ORDER BY order_index`, id)
	if err != nil {
		return nil, fmt.Errorf("querying template exercises: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var te models.TemplateExercise
		if err := rows.Scan(&te.ID, &te.TemplateID, &te.ExerciseID, &te.OrderIndex, &te.TargetSets, &te.TargetReps, &te.Notes); err != nil {
			return nil, fmt.Errorf("scanning template exercise: %w", err)
		}
		t.Exercises = append(t.Exercises, te)
	}
	return t, rows.Err()
}

func byInputOrder[T any](ids []uuid.UUID, rows []T, id func(T) uuid.UUID) ([]T, error) {
	byID := make(map[uuid.UUID]T, len(rows))
	for _, row := range rows {
		byID[id(row)] = row
	}
	out := make([]T, 0, len(ids))
	for _, want := range ids {
		row, ok := byID[want]
		if !ok {
			return nil, fmt.Errorf("inserted row %s not returned", want)
		}
		out = append(out, row)
	}
	return out, nil
}
