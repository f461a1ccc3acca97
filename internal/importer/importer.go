// Package importer loads the exercise catalog and workout templates from
// files into the backend.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/models"
)

const (
	kindCatalog   = "catalog"
	kindTemplates = "alpha_csv"
)

// Store is the write side of the catalog. gateway.CatalogRepo and
// storage.DB both satisfy it.
type Store interface {
	ListExercises(ctx context.Context) ([]models.ExerciseDefinition, error)
	UpsertExercises(ctx context.Context, defs []models.ExerciseDefinition) error
	CreateTemplate(ctx context.Context, t models.TemplateDetail) (uuid.UUID, error)
}

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	ExercisesUpserted int
	ExercisesCreated  int
	TemplatesCreated  int
}

// Importer writes catalog and template files to a Store.
type Importer struct {
	store  Store
	ledger *Ledger
	owner  *uuid.UUID
	log    *slog.Logger
	dryRun bool
	stats  Stats

	known  map[string]models.ExerciseDefinition
	loaded bool
}

// New creates an Importer. ledger may be nil to import every file; owner
// nil makes imported templates public.
func New(store Store, ledger *Ledger, owner *uuid.UUID, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{
		store:  store,
		ledger: ledger,
		owner:  owner,
		log:    log,
		dryRun: dryRun,
		known:  map[string]models.ExerciseDefinition{},
	}
}

// Stats returns the counters so far.
func (imp *Importer) Stats() Stats {
	return imp.stats
}

type fileState struct {
	key  string
	size int64
	hash string
}

// check reports whether path is already in the ledger.
func (imp *Importer) check(path string) (fileState, bool, error) {
	if imp.ledger == nil {
		return fileState{}, false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, false, err
	}
	hash, err := HashFile(path)
	if err != nil {
		return fileState{}, false, fmt.Errorf("hashing %s: %w", path, err)
	}
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	st := fileState{key: key, size: info.Size(), hash: hash}
	done, err := imp.ledger.IsImported(st.key, st.size, st.hash)
	if err != nil {
		return fileState{}, false, fmt.Errorf("checking ledger: %w", err)
	}
	return st, done, nil
}

func (imp *Importer) record(st fileState, kind string) {
	if imp.ledger == nil || imp.dryRun {
		return
	}
	if err := imp.ledger.MarkImported(st.key, kind, st.size, st.hash); err != nil {
		imp.log.Warn("recording import failed", "file", st.key, "error", err)
	}
}

func (imp *Importer) remember(defs []models.ExerciseDefinition) {
	for _, d := range defs {
		imp.known[strings.ToLower(d.Name)] = d
	}
}

func (imp *Importer) loadKnown(ctx context.Context) error {
	if imp.loaded {
		return nil
	}
	defs, err := imp.store.ListExercises(ctx)
	if err != nil {
		return fmt.Errorf("listing exercises: %w", err)
	}
	imp.remember(defs)
	imp.loaded = true
	return nil
}

// ImportCatalog upserts the exercise definitions of a YAML or JSON file.
func (imp *Importer) ImportCatalog(ctx context.Context, path string) error {
	st, done, err := imp.check(path)
	if err != nil {
		return err
	}
	if done {
		imp.log.Info("skipping catalog (already imported)", "file", path)
		imp.stats.FilesSkipped++
		return nil
	}

	defs, err := LoadCatalog(path)
	if err != nil {
		imp.stats.FilesErrored++
		return err
	}
	imp.remember(defs)
	imp.stats.FilesProcessed++

	if imp.dryRun {
		imp.log.Info("dry run: would upsert exercises", "count", len(defs))
		imp.stats.ExercisesUpserted += len(defs)
		return nil
	}
	if err := imp.store.UpsertExercises(ctx, defs); err != nil {
		imp.stats.FilesErrored++
		return fmt.Errorf("upserting catalog: %w", err)
	}
	imp.stats.ExercisesUpserted += len(defs)
	imp.record(st, kindCatalog)
	imp.log.Info("catalog imported", "file", path, "exercises", len(defs))
	return nil
}

// ImportTemplates creates a template per distinct session name found in the
// Alpha Progression CSV exports under dir. Exercises missing from the
// catalog are added to it.
func (imp *Importer) ImportTemplates(ctx context.Context, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	if err := imp.loadKnown(ctx); err != nil {
		return err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := imp.importTemplateFile(ctx, f); err != nil {
			imp.log.Warn("template import failed", "file", f, "error", err)
			imp.stats.FilesErrored++
		}
	}
	return nil
}

func (imp *Importer) importTemplateFile(ctx context.Context, path string) error {
	st, done, err := imp.check(path)
	if err != nil {
		return err
	}
	if done {
		imp.log.Info("skipping file (already imported)", "file", path)
		imp.stats.FilesSkipped++
		return nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	sessions, err := parseAlpha(fh)
	fh.Close()
	if err != nil {
		return fmt.Errorf("parsing CSV: %w", err)
	}

	var created []models.ExerciseDefinition
	resolve := func(name, equipment string) uuid.UUID {
		if d, ok := imp.known[strings.ToLower(name)]; ok {
			return d.ID
		}
		d := models.ExerciseDefinition{
			ID:        ExerciseID(name),
			Name:      name,
			Category:  "strength",
			Equipment: strings.ToLower(equipment),
		}
		imp.known[strings.ToLower(name)] = d
		created = append(created, d)
		return d.ID
	}
	templates := templatesFrom(sessions, imp.owner, resolve)
	imp.stats.FilesProcessed++

	if imp.dryRun {
		imp.log.Info("dry run: would create templates", "file", path, "templates", len(templates), "new_exercises", len(created))
		imp.stats.TemplatesCreated += len(templates)
		imp.stats.ExercisesCreated += len(created)
		return nil
	}

	if len(created) > 0 {
		if err := imp.store.UpsertExercises(ctx, created); err != nil {
			for _, d := range created {
				delete(imp.known, strings.ToLower(d.Name))
			}
			return fmt.Errorf("adding exercises: %w", err)
		}
		imp.stats.ExercisesCreated += len(created)
	}

	for _, t := range templates {
		id, err := imp.store.CreateTemplate(ctx, t)
		if err != nil {
			return fmt.Errorf("creating template %q: %w", t.Name, err)
		}
		imp.stats.TemplatesCreated++
		imp.log.Info("template created", "id", id, "name", t.Name, "exercises", len(t.Exercises))
	}

	imp.record(st, kindTemplates)
	return nil
}
