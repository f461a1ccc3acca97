package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/profile"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/session"
)

// ProgressWatcher streams XP and level changes for one user until ctx ends.
type ProgressWatcher interface {
	WatchProgress(ctx context.Context, userID uuid.UUID, fn func(models.UserMiscData)) error
}

// Deps are the components behind the HTTP API. Catalog, Profiles, Progress
// and Metrics may be nil; their routes then answer 404 or are skipped.
type Deps struct {
	Workspaces *session.Workspaces
	Sessions   session.SessionStore
	RPC        *rpc.Client
	Catalog    *catalog.Catalog
	Profiles   *profile.Service
	Progress   ProgressWatcher
	Metrics    *metrics.Manager
	Gatherer   prometheus.Gatherer
	JWTSecret  []byte
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	workspaces *session.Workspaces
	sessions   session.SessionStore
	rpc        *rpc.Client
	catalog    *catalog.Catalog
	profiles   *profile.Service
	progress   ProgressWatcher
	metrics    *metrics.Manager
	gatherer   prometheus.Gatherer
	secret     []byte
	log        *slog.Logger
	router     chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps, log *slog.Logger) *Server {
	s := &Server{
		workspaces: d.Workspaces,
		sessions:   d.Sessions,
		rpc:        d.RPC,
		catalog:    d.Catalog,
		profiles:   d.Profiles,
		progress:   d.Progress,
		metrics:    d.Metrics,
		gatherer:   d.Gatherer,
		secret:     d.JWTSecret,
		log:        log,
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	if s.metrics != nil {
		s.router.Use(Instrument(s.metrics))
	}

	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.secret))

		r.Get("/me", s.handleMe)
		r.Patch("/me", s.handleUpdateProfile)
		r.Post("/me/weight", s.handleLogWeight)

		// Active session
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleActiveSession)
			r.Post("/", s.handleStartSession)
			r.Delete("/", s.handleDiscardSession)
			r.Post("/template/{id}", s.handleStartFromTemplate)
			r.Post("/end", s.handleEndSession)
			r.Post("/finish", s.handleFinishSession)
			r.Patch("/", s.handleUpdateSession)

			r.Post("/exercises", s.handleAddExercise)
			r.Delete("/exercises/{id}", s.handleRemoveExercise)

			r.Get("/exercises/{id}/sets", s.handleListSets)
			r.Post("/exercises/{id}/sets", s.handleAddDraft)
			r.Patch("/exercises/{id}/sets/{index}", s.handleEditDraft)
			r.Delete("/exercises/{id}/sets/{index}", s.handleRemoveDraft)
			r.Post("/exercises/{id}/sets/{index}/confirm", s.handleConfirmSet)
			r.Post("/exercises/{id}/sets/{index}/unconfirm", s.handleUnconfirmSet)
		})
		r.Post("/sets", s.handleAddSet)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{id}", s.handleGetExercise)

		// Backend procedures
		r.Get("/feed", s.handleFeed)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/streak", s.handleStreak)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/volume", s.handleVolume)
		r.Get("/stats/frequency", s.handleFrequency)
		r.Get("/stats/muscle-groups", s.handleMuscleGroups)
		r.Get("/stats/exercises/{id}", s.handleExerciseStats)
		r.Get("/stats/weight", s.handleWeightProgress)
		r.Get("/users", s.handleUsers)
		r.Get("/following", s.handleFollowing)
		r.Get("/followers", s.handleFollowers)
		r.Get("/suggestions", s.handleSuggestions)
		r.Post("/follow/{id}", s.handleFollow)
		r.Delete("/follow/{id}", s.handleUnfollow)

		r.Get("/progress/events", s.handleProgressEvents)
	})
}
