package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coocood/freecache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"

	"github.com/claude/ironlog/internal/activity"
	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/gateway"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/profile"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/server"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/storage"
)

// backend is everything the API needs from either the hosted gateway or a
// direct database connection.
type backend struct {
	repo     session.Repository
	caller   rpc.Caller
	catalog  catalog.Source
	profiles profile.Store
	progress server.ProgressWatcher
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")

		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected")
		return &backend{repo: db, caller: db, catalog: db, profiles: db, close: db.Close}, nil

	default:
		gw := gateway.New(gateway.Options{
			URL:     cfg.Gateway.URL,
			AnonKey: cfg.Gateway.AnonKey,
			Timeout: cfg.Gateway.Timeout,
		}, log)
		log.Info("using gateway backend", "url", cfg.Gateway.URL)
		return &backend{
			repo:     gateway.NewSessionRepo(gw),
			caller:   gw,
			catalog:  gateway.NewCatalogRepo(gw),
			profiles: gateway.NewProfileRepo(gw),
			progress: gw,
			close:    func() {},
		}, nil
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *migrateOnly {
		if cfg.Backend != config.BackendPostgres {
			log.Error("-migrate-only requires the postgres backend", "backend", cfg.Backend)
			os.Exit(1)
		}
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		return
	}

	ctx := context.Background()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer be.close()

	cache := freecache.NewCache(cfg.Cache.SizeMB * 1024 * 1024)
	rpcClient := rpc.New(be.caller, cache, cfg.Cache.LeaderboardTTL, log)
	recorder := activity.NewRecorder(rpcClient, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("ironlog", "server", reg)

	srv := server.New(server.Deps{
		Workspaces: session.NewWorkspaces(be.repo, recorder, log),
		Sessions:   be.repo,
		RPC:        rpcClient,
		Catalog:    catalog.New(be.catalog, cache, cfg.Cache.CatalogTTL, log),
		Profiles:   profile.NewService(be.profiles, log),
		Progress:   be.progress,
		Metrics:    m,
		Gatherer:   reg,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
	}, log)

	var ln net.Listener
	if cfg.Tailscale.Enabled {
		ts := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		defer ts.Close()

		ln, err = ts.Listen("tcp", ":80")
		if err != nil {
			log.Error("failed to listen on tailscale", "error", err)
			os.Exit(1)
		}
		log.Info("listening on tailscale", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("failed to listen", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("listening", "addr", addr)
	}

	httpServer := &http.Server{Handler: srv}

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
