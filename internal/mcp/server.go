package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/session"
)

type contextKey int

const userKey contextKey = iota

// UserFromContext extracts the user injected by the transport layer.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Deps are the components the tools drive. Catalog and RPC may be nil.
type Deps struct {
	Workspaces *session.Workspaces
	Catalog    *catalog.Catalog
	RPC        *rpc.Client
	// User is the identity for requests whose context carries none, which
	// is the case for the stdio transport.
	User models.User
}

// New creates an MCP server with all tools and resources registered.
func New(d Deps, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("ironlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("ironlog workout logger. Start a workout, add exercises, log sets and finish with how the session felt. One workout is active at a time per user."),
	)

	h := &handlers{
		workspaces: d.Workspaces,
		catalog:    d.Catalog,
		rpc:        d.RPC,
		user:       d.User,
		log:        log,
	}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolStartWorkout, Handler: h.startWorkout},
		server.ServerTool{Tool: toolStartFromTemplate, Handler: h.startFromTemplate},
		server.ServerTool{Tool: toolAddExercise, Handler: h.addExercise},
		server.ServerTool{Tool: toolLogSet, Handler: h.logSet},
		server.ServerTool{Tool: toolGetActiveWorkout, Handler: h.getActiveWorkout},
		server.ServerTool{Tool: toolFinishWorkout, Handler: h.finishWorkout},
		server.ServerTool{Tool: toolDiscardWorkout, Handler: h.discardWorkout},
		server.ServerTool{Tool: toolGetLeaderboard, Handler: h.getLeaderboard},
		server.ServerTool{Tool: toolSearchExercises, Handler: h.searchExercises},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resActiveWorkout, Handler: h.activeWorkout},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	workspaces *session.Workspaces
	catalog    *catalog.Catalog
	rpc        *rpc.Client
	user       models.User
	log        *slog.Logger
}

func (h *handlers) workspace(ctx context.Context) (*session.Workspace, error) {
	u, ok := UserFromContext(ctx)
	if !ok {
		u = h.user
	}
	return h.workspaces.For(u)
}

// --- Resource definitions ---

var resActiveWorkout = mcp.NewResource(
	"ironlog://active_workout",
	"Active Workout",
	mcp.WithResourceDescription("The workout in progress with its exercises and logged sets"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"ironlog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All exercise definitions with muscle group and equipment"),
	mcp.WithMIMEType("application/json"),
)
