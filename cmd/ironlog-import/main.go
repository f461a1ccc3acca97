package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/gateway"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	catalogPath := flag.String("catalog", "", "exercise catalog file (YAML or JSON)")
	templatesDir := flag.String("templates", "", "directory of Alpha Progression CSV exports")
	stateDir := flag.String("state", ".ironlog-import", "directory for the import ledger")
	ownerFlag := flag.String("owner", "", "user id owning imported templates (default: public)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the backend")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *catalogPath == "" && *templatesDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-import -config config.yaml [-catalog exercises.yaml] [-templates dir] [-owner uuid] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var owner *uuid.UUID
	if *ownerFlag != "" {
		id, err := uuid.Parse(*ownerFlag)
		if err != nil {
			log.Error("invalid -owner", "error", err)
			os.Exit(1)
		}
		owner = &id
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode, nothing will be written to the backend")
	}

	var store importer.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db

	default:
		gw := gateway.New(gateway.Options{
			URL:     cfg.Gateway.URL,
			AnonKey: cfg.Gateway.AnonKey,
			Timeout: cfg.Gateway.Timeout,
		}, log)
		// Catalog writes need an authenticated role.
		if cfg.MCP.Email != "" {
			if _, err := gw.SignIn(ctx, cfg.MCP.Email, cfg.MCP.Password); err != nil {
				log.Error("sign in failed", "error", err)
				os.Exit(1)
			}
		}
		store = gateway.NewCatalogRepo(gw)
	}

	ledger, err := importer.OpenLedger(*stateDir)
	if err != nil {
		log.Error("failed to open ledger", "dir", *stateDir, "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	imp := importer.New(store, ledger, owner, log, *dryRun)

	failed := false
	if *catalogPath != "" {
		if err := imp.ImportCatalog(ctx, *catalogPath); err != nil {
			log.Error("catalog import failed", "path", *catalogPath, "error", err)
			failed = true
		}
	}
	if *templatesDir != "" && !failed {
		if err := imp.ImportTemplates(ctx, *templatesDir); err != nil {
			log.Error("template import failed", "dir", *templatesDir, "error", err)
			failed = true
		}
	}

	printStats(log, imp.Stats())
	if failed {
		os.Exit(1)
	}
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"exercises_upserted", stats.ExercisesUpserted,
		"exercises_created", stats.ExercisesCreated,
		"templates_created", stats.TemplatesCreated,
	)
}
