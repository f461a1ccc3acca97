package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/activity"
	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// Sentiment is the 0-10 score a user gives a finished workout.
type Sentiment float64

const (
	Terrible Sentiment = 0
	Poor     Sentiment = 3.5
	Okay     Sentiment = 5
	Good     Sentiment = 7.5
	Amazing  Sentiment = 10
)

var sentimentLabels = []struct {
	value Sentiment
	label string
}{
	{Terrible, "Terrible"},
	{Poor, "Poor"},
	{Okay, "Okay"},
	{Good, "Good"},
	{Amazing, "Amazing"},
}

// Sentiments lists the selectable scores, worst first.
func Sentiments() []Sentiment {
	out := make([]Sentiment, len(sentimentLabels))
	for i, s := range sentimentLabels {
		out[i] = s.value
	}
	return out
}

// Label returns the display name, or "" for a value outside the scale.
func (s Sentiment) Label() string {
	for _, l := range sentimentLabels {
		if l.value == s {
			return l.label
		}
	}
	return ""
}

// Valid reports whether s is one of the five scale values.
func (s Sentiment) Valid() bool {
	return s.Label() != ""
}

// ParseSentiment accepts a label, case-insensitive.
func ParseSentiment(label string) (Sentiment, error) {
	for _, l := range sentimentLabels {
		if strings.EqualFold(l.label, strings.TrimSpace(label)) {
			return l.value, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSentiment, label)
}

// ActivityRecorder records the feed entry for a finished workout.
type ActivityRecorder interface {
	RecordWorkoutCompleted(ctx context.Context, w activity.WorkoutCompleted) activity.Result
}

// Completion is the result of a finished recap.
type Completion struct {
	SessionID uuid.UUID       `json:"session_id"`
	Title     string          `json:"title"`
	Sentiment Sentiment       `json:"sentiment"`
	EndedAt   time.Time       `json:"ended_at"`
	Duration  time.Duration   `json:"duration"`
	Sets      int             `json:"sets"`
	XP        int             `json:"xp"`
	Activity  activity.Result `json:"-"`
}

// Recap completes a session: it stamps end time and sentiment, then records
// the completion activity. Activity failures never fail the completion.
type Recap struct {
	store    SessionStore
	recorder ActivityRecorder
	log      *slog.Logger
	now      func() time.Time
}

// NewRecap creates a recap flow. recorder may be nil, in which case no
// activity is recorded.
func NewRecap(store SessionStore, recorder ActivityRecorder, log *slog.Logger) *Recap {
	return &Recap{store: store, recorder: recorder, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Complete finishes the session with the given sentiment.
func (r *Recap) Complete(ctx context.Context, sessionID uuid.UUID, sentiment *Sentiment) (*Completion, error) {
	if sentiment == nil {
		return nil, ErrSentimentRequired
	}
	if !sentiment.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSentiment, float64(*sentiment))
	}

	detail, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, remote("fetching session", err)
	}

	ended := r.now()
	score := float64(*sentiment)
	if err := r.store.UpdateSession(ctx, sessionID, models.SessionUpdate{EndedAt: &ended, Sentiment: &score}); err != nil {
		return nil, remote("completing session", err)
	}

	done := &Completion{
		SessionID: sessionID,
		Title:     detail.Title,
		Sentiment: *sentiment,
		EndedAt:   ended,
		Duration:  ended.Sub(detail.StartedAt),
		Sets:      detail.SetCount(),
	}
	done.XP = activity.WorkoutXP(done.Sets)

	if r.recorder != nil {
		done.Activity = r.recorder.RecordWorkoutCompleted(ctx, activity.WorkoutCompleted{
			UserID:    detail.UserID,
			SessionID: sessionID,
			XP:        done.XP,
			Title:     detail.Title,
			Duration:  done.Duration,
		})
	} else {
		done.Activity = activity.Result{Outcome: activity.Skipped}
	}

	if done.Activity.Outcome != activity.Succeeded && done.Activity.Outcome != activity.Skipped {
		r.log.Warn("workout activity not recorded by primary path",
			"session_id", sessionID, "outcome", done.Activity.Outcome, "error", done.Activity.Err)
	}
	r.log.Info("session completed",
		"session_id", sessionID, "sentiment", sentiment.Label(), "sets", done.Sets, "xp", done.XP)
	return done, nil
}
