package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/claude/ironlog/internal/models"
)

// exerciseNamespace seeds deterministic ids for exercises that have none, so
// re-importing the same catalog updates rows instead of duplicating them.
var exerciseNamespace = uuid.MustParse("6f1c2b1e-3a4d-4e0b-9d55-0f6a7c2e9b10")

// ExerciseID returns the stable id for an exercise name.
func ExerciseID(name string) uuid.UUID {
	return uuid.NewSHA1(exerciseNamespace, []byte(strings.ToLower(strings.TrimSpace(name))))
}

type catalogFile struct {
	Exercises []catalogEntry `yaml:"exercises"`
}

type catalogEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	MuscleGroup  string `yaml:"muscle_group"`
	Equipment    string `yaml:"equipment"`
	Instructions string `yaml:"instructions"`
}

// ParseCatalog reads an exercise catalog in YAML or JSON.
func ParseCatalog(r io.Reader) ([]models.ExerciseDefinition, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := map[uuid.UUID]string{}
	defs := make([]models.ExerciseDefinition, 0, len(f.Exercises))
	for i, e := range f.Exercises {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("exercise %d: name is required", i+1)
		}
		id := ExerciseID(name)
		if e.ID != "" {
			parsed, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("exercise %q: invalid id: %w", name, err)
			}
			id = parsed
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("exercise %q: duplicate id %s (also used by %q)", name, id, prev)
		}
		seen[id] = name

		defs = append(defs, models.ExerciseDefinition{
			ID:           id,
			Name:         name,
			Category:     strings.TrimSpace(e.Category),
			MuscleGroup:  strings.TrimSpace(e.MuscleGroup),
			Equipment:    strings.TrimSpace(e.Equipment),
			Instructions: strings.TrimSpace(e.Instructions),
		})
	}
	return defs, nil
}

// LoadCatalog reads an exercise catalog file.
func LoadCatalog(path string) ([]models.ExerciseDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}
