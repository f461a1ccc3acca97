package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/claude/ironlog/internal/models"
)

// handleProgressEvents relays XP and level changes from the realtime feed
// as server-sent events until the client disconnects.
func (s *Server) handleProgressEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	if s.progress == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "progress stream is not available"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if s.metrics != nil {
		s.metrics.GaugeStreamClients.Inc()
		defer s.metrics.GaugeStreamClients.Dec()
	}

	ctx := r.Context()
	updates := make(chan models.UserMiscData, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.progress.WatchProgress(ctx, user.ID, func(p models.UserMiscData) {
			select {
			case updates <- p:
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case err := <-done:
			if err != nil {
				s.log.Warn("progress stream ended", "user_id", user.ID, "error", err)
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", mustJSON(map[string]string{"error": err.Error()}))
				flusher.Flush()
			}
			return
		case p := <-updates:
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", mustJSON(p))
			flusher.Flush()
		}
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
