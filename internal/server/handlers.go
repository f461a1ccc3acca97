package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/gateway"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/profile"
	"github.com/claude/ironlog/internal/rpc"
	"github.com/claude/ironlog/internal/session"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	if s.profiles == nil {
		writeJSON(w, http.StatusOK, user)
		return
	}
	ov, err := s.profiles.Get(r.Context(), user.ID, 30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"profile":  ov.Profile,
		"weights":  ov.Weights,
		"progress": ov.Progress,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok || !s.requireProfiles(w) {
		return
	}
	var edit profile.Edit
	if !decodeBody(w, r, &edit) {
		return
	}
	p, err := s.profiles.Update(r.Context(), user.ID, edit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLogWeight(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok || !s.requireProfiles(w) {
		return
	}
	var body struct {
		Weight float64 `json:"weight"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	entry, err := s.profiles.LogWeight(r.Context(), user.ID, body.Weight)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) requireProfiles(w http.ResponseWriter) bool {
	if s.profiles == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profiles are not available"})
		return false
	}
	return true
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "exercise catalog is not available"})
		return
	}
	var (
		defs []models.ExerciseDefinition
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		defs, err = s.catalog.Search(r.Context(), q)
	} else {
		defs, err = s.catalog.List(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "exercise catalog is not available"})
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	def, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	items, err := s.rpc.ActivityFeed(r.Context(), user.ID, queryInt(r, "limit", 20))
	respond(s, w, items, err)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.rpc.StreakLeaderboard(r.Context(), queryInt(r, "limit", 10))
	respond(s, w, entries, err)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	streak, err := s.rpc.CurrentStreak(r.Context(), user.ID)
	respond(s, w, map[string]int{"streak": streak}, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	stats, err := s.rpc.WorkoutStats(r.Context(), user.ID)
	respond(s, w, stats, err)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	user, period, ok := userAndPeriod(w, r)
	if !ok {
		return
	}
	points, err := s.rpc.VolumeOverTime(r.Context(), user.ID, period)
	respond(s, w, points, err)
}

func (s *Server) handleFrequency(w http.ResponseWriter, r *http.Request) {
	user, period, ok := userAndPeriod(w, r)
	if !ok {
		return
	}
	points, err := s.rpc.WorkoutFrequency(r.Context(), user.ID, period)
	respond(s, w, points, err)
}

func (s *Server) handleMuscleGroups(w http.ResponseWriter, r *http.Request) {
	user, period, ok := userAndPeriod(w, r)
	if !ok {
		return
	}
	groups, err := s.rpc.VolumeByMuscleGroup(r.Context(), user.ID, period)
	respond(s, w, groups, err)
}

func (s *Server) handleExerciseStats(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	exerciseID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	stats, err := s.rpc.ExerciseStats(r.Context(), user.ID, exerciseID)
	respond(s, w, stats, err)
}

func (s *Server) handleWeightProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	points, err := s.rpc.WeightProgress(r.Context(), user.ID, queryInt(r, "days", 90))
	respond(s, w, points, err)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	users, err := s.rpc.UsersWithRelationship(r.Context(), user.ID)
	respond(s, w, users, err)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	users, err := s.rpc.Following(r.Context(), user.ID)
	respond(s, w, users, err)
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	users, err := s.rpc.Followers(r.Context(), user.ID)
	respond(s, w, users, err)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	users, err := s.rpc.FriendSuggestions(r.Context(), user.ID)
	respond(s, w, users, err)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	target, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.rpc.Follow(r.Context(), user.ID, target); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	target, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.rpc.Unfollow(r.Context(), user.ID, target); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respond(s *Server, w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		remoteErr  *session.RemoteError
		gatewayErr *gateway.Error
	)
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, session.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrValidation), errors.Is(err, session.ErrTemplateEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rpc.ErrInvalidResponse), errors.As(err, &remoteErr), errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "error", err)
	}
	body := map[string]any{"error": err.Error()}
	var missing *session.MissingFieldsError
	if errors.As(err, &missing) {
		body["missing"] = missing.Fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst as is.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func mustUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := userFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": session.ErrAuthRequired.Error()})
	}
	return user, ok
}

func userAndPeriod(w http.ResponseWriter, r *http.Request) (models.User, rpc.Period, bool) {
	user, ok := mustUser(w, r)
	if !ok {
		return models.User{}, "", false
	}
	period, err := rpc.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return models.User{}, "", false
	}
	return user, period, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
