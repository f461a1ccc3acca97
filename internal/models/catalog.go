package models

import (
	"sort"

	"github.com/google/uuid"
)

// ExerciseDefinition is a read-only row of the exercises catalog.
type ExerciseDefinition struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Category     string    `json:"category" yaml:"category"`
	MuscleGroup  string    `json:"muscle_group" yaml:"muscle_group"`
	Equipment    string    `json:"equipment" yaml:"equipment"`
	Instructions string    `json:"instructions" yaml:"instructions"`
}

// WorkoutTemplate is a row of the workout_templates table.
// UserID is nil for public templates.
type WorkoutTemplate struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	IsPublic    bool       `json:"is_public"`
	UserID      *uuid.UUID `json:"user_id"`
}

// TemplateExercise is a row of the template_exercises table.
type TemplateExercise struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"template_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	TargetSets int       `json:"target_sets"`
	TargetReps *int      `json:"target_reps"`
	Notes      string    `json:"notes"`
}

// Reps returns the target reps, defaulting to 0 when unset.
func (te TemplateExercise) Reps() int {
	if te.TargetReps == nil {
		return 0
	}
	return *te.TargetReps
}

// TemplateDetail is a template with its exercises.
type TemplateDetail struct {
	WorkoutTemplate
	Exercises []TemplateExercise `json:"template_exercises"`
}

// Ordered returns a copy of the template exercises sorted by order index.
func (t *TemplateDetail) Ordered() []TemplateExercise {
	out := make([]TemplateExercise, len(t.Exercises))
	copy(out, t.Exercises)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

// ExpectedSets returns the number of set rows instantiation creates.
func (t *TemplateDetail) ExpectedSets() int {
	n := 0
	for _, te := range t.Exercises {
		if te.TargetSets > 0 {
			n += te.TargetSets
		}
	}
	return n
}
