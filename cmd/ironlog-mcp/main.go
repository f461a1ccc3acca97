package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/ironlog/internal/activity"
	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/gateway"
	"github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/storage"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var (
		repo   session.Repository
		caller rpc.Caller
		src    catalog.Source
		user   models.User
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		id, err := uuid.Parse(cfg.MCP.UserID)
		if err != nil {
			log.Error("mcp.user_id must be a uuid for the postgres backend", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo, caller, src = db, db, db
		user = models.User{ID: id}

	default:
		gw := gateway.New(gateway.Options{
			URL:     cfg.Gateway.URL,
			AnonKey: cfg.Gateway.AnonKey,
			Timeout: cfg.Gateway.Timeout,
		}, log)
		user, err = signIn(ctx, gw, cfg.MCP)
		if err != nil {
			log.Error("sign in failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gw.SignOut(context.Background()); err != nil {
				log.Warn("sign out failed", "error", err)
			}
		}()
		repo, caller, src = gateway.NewSessionRepo(gw), gw, gateway.NewCatalogRepo(gw)
	}
	log.Info("acting as user", "user_id", user.ID, "backend", cfg.Backend)

	cache := freecache.NewCache(cfg.Cache.SizeMB * 1024 * 1024)
	rpcClient := rpc.New(caller, cache, cfg.Cache.LeaderboardTTL, log)

	s := mcp.New(mcp.Deps{
		Workspaces: session.NewWorkspaces(repo, activity.NewRecorder(rpcClient, log), log),
		Catalog:    catalog.New(src, cache, cfg.Cache.CatalogTTL, log),
		RPC:        rpcClient,
		User:       user,
	}, version, log)

	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

func signIn(ctx context.Context, gw *gateway.Client, c config.MCPConfig) (models.User, error) {
	if c.Email == "" || c.Password == "" {
		return models.User{}, fmt.Errorf("mcp.email and mcp.password are required for the gateway backend")
	}
	if _, err := gw.SignIn(ctx, c.Email, c.Password); err != nil {
		return models.User{}, err
	}
	return gw.CurrentUser(ctx)
}
