package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/session"
)

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*session.Workspace, bool) {
	user, ok := mustUser(w, r)
	if !ok {
		return nil, false
	}
	ws, err := s.workspaces.For(user)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return ws, true
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, err := ws.Controller().StartSession(r.Context(), body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SessionEvent("started")
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

func (s *Server) handleStartFromTemplate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	templateID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	inst, err := ws.Controller().StartFromTemplate(r.Context(), templateID)
	var partial *session.PartialFailureError
	switch {
	case errors.As(err, &partial):
		s.metrics.PartialFailure()
		s.log.Warn("template started with failures", "template_id", templateID, "error", err)
	case err != nil:
		s.writeError(w, err)
		return
	}
	if inst == nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SessionEvent("started_from_template")

	resp := map[string]any{
		"session_id":   inst.SessionID,
		"exercises":    inst.Exercises,
		"sets_created": inst.SetsCreated,
	}
	if partial != nil {
		resp["warning"] = partial.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	detail, err := ws.Controller().Active(r.Context())
	respond(s, w, detail, err)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Title *string `json:"title"`
		Notes *string `json:"notes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ctrl := ws.Controller()
	if body.Title != nil {
		if err := ctrl.Rename(r.Context(), *body.Title); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if body.Notes != nil {
		if err := ctrl.UpdateNotes(r.Context(), *body.Notes); err != nil {
			s.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Controller().DiscardSession(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SessionEvent("discarded")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Controller().EndSession(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SessionEvent("ended")
	w.WriteHeader(http.StatusNoContent)
}

// handleFinishSession accepts either a sentiment label or a numeric score.
func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Sentiment *string  `json:"sentiment"`
		Score     *float64 `json:"score"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	var sentiment *session.Sentiment
	switch {
	case body.Sentiment != nil:
		v, err := session.ParseSentiment(*body.Sentiment)
		if err != nil {
			s.writeError(w, err)
			return
		}
		sentiment = &v
	case body.Score != nil:
		v := session.Sentiment(*body.Score)
		sentiment = &v
	}

	done, err := ws.Controller().Finish(r.Context(), sentiment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SessionEvent("finished")
	s.metrics.ActivityOutcome(done.Activity.Outcome.String())

	writeJSON(w, http.StatusOK, struct {
		*session.Completion
		Label    string `json:"label"`
		Activity string `json:"activity"`
	}{done, done.Sentiment.Label(), done.Activity.Outcome.String()})
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Exercise   string `json:"exercise"`
		OrderIndex *int   `json:"order_index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	exerciseID, err := uuid.Parse(body.Exercise)
	if err != nil {
		if s.catalog == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exercise id"})
			return
		}
		def, err := s.catalog.Resolve(r.Context(), body.Exercise)
		if err != nil {
			s.writeError(w, err)
			return
		}
		exerciseID = def.ID
	}

	ctrl := ws.Controller()
	order := 0
	if body.OrderIndex != nil {
		order = *body.OrderIndex
	} else {
		detail, err := ctrl.Active(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		order = len(detail.Exercises)
	}

	id, err := ctrl.AddExercise(r.Context(), exerciseID, order)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"workout_exercise_id": id,
		"exercise_id":         exerciseID,
		"order_index":         order,
	})
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.RemoveExercise(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editor resolves the set editor for the {id} path parameter.
func (s *Server) editor(w http.ResponseWriter, r *http.Request) (*session.ExerciseSets, bool) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	ed, err := ws.Sets(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return ed, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid set index"})
		return 0, false
	}
	return index, true
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ed.Entries())
}

func (s *Server) handleAddDraft(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, ed.Add())
}

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var fields session.SetFields
	if !decodeBody(w, r, &fields) {
		return
	}
	entry, err := ed.Edit(index, fields)
	respond(s, w, entry, err)
}

func (s *Server) handleRemoveDraft(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := ed.Remove(index); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmSet(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	entry, err := ed.Confirm(r.Context(), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SetTransition("confirm")
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUnconfirmSet(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.editor(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	entry, err := ed.Unconfirm(r.Context(), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SetTransition("unconfirm")
	writeJSON(w, http.StatusOK, entry)
}

// handleAddSet logs a completed set directly, without the draft editor.
// Exercises of other users answer 404.
func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var body struct {
		WorkoutExerciseID uuid.UUID `json:"workout_exercise_id"`
		Reps              int       `json:"reps"`
		Weight            float64   `json:"weight"`
		RPE               *float64  `json:"rpe"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.WorkoutExerciseID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workout_exercise_id is required"})
		return
	}
	set, err := ws.AddSet(r.Context(), body.WorkoutExerciseID, body.Reps, body.Weight, body.RPE)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// handleGetSession returns any of the caller's sessions; other users'
// sessions are reported as not found.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	detail, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if detail.UserID != user.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
