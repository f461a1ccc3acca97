package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/ironlog/internal/session"
)

func sentimentLabels() []string {
	var out []string
	for _, s := range session.Sentiments() {
		out = append(out, s.Label())
	}
	return out
}

// --- Tool definitions ---

var toolStartWorkout = mcp.NewTool("start_workout",
	mcp.WithDescription("Start a new empty workout and make it the active one. A workout that was already active is left as it is."),
	mcp.WithString("notes", mcp.Description("Optional notes for the workout")),
)

var toolStartFromTemplate = mcp.NewTool("start_workout_from_template",
	mcp.WithDescription("Start a workout from a saved template. Exercises are added in template order and each gets its target number of sets pre-created."),
	mcp.WithString("template_id", mcp.Required(), mcp.Description("Template UUID")),
)

var toolAddExercise = mcp.NewTool("add_exercise",
	mcp.WithDescription("Add an exercise to the active workout. The exercise may be given by catalog UUID or by name (exact or unique partial match)."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise UUID or name, e.g. 'Bench Press'")),
	mcp.WithNumber("order_index", mcp.Description("Position in the workout. Defaults to after the last exercise.")),
)

var toolLogSet = mcp.NewTool("log_set",
	mcp.WithDescription("Log a completed set for an exercise of the active workout. Missing RPE is taken from the previous set or from the same set of the last completed workout."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Workout exercise UUID, catalog exercise UUID or exercise name")),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Weight in kg")),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Repetitions")),
	mcp.WithNumber("rpe", mcp.Description("Rate of perceived exertion, 1-10")),
)

var toolGetActiveWorkout = mcp.NewTool("get_active_workout",
	mcp.WithDescription("Return the active workout with its exercises and logged sets."),
)

var toolFinishWorkout = mcp.NewTool("finish_workout",
	mcp.WithDescription("Finish the active workout with how it felt. Records end time, score and a feed activity."),
	mcp.WithString("sentiment", mcp.Required(), mcp.Description("How the workout felt"), mcp.Enum(sentimentLabels()...)),
)

var toolDiscardWorkout = mcp.NewTool("discard_workout",
	mcp.WithDescription("Delete the active workout with all its exercises and sets."),
)

var toolGetLeaderboard = mcp.NewTool("get_leaderboard",
	mcp.WithDescription("Top users by current workout streak."),
	mcp.WithNumber("limit", mcp.Description("Number of entries. Defaults to 10.")),
)

var toolSearchExercises = mcp.NewTool("search_exercises",
	mcp.WithDescription("Search the exercise catalog by name, muscle group or equipment."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
)

// --- Tool handlers ---

func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(op + ": " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) startWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("start_workout", err), nil
	}
	id, err := ws.Controller().StartSession(ctx, req.GetString("notes", ""))
	if err != nil {
		h.log.Error("mcp start_workout", "error", err)
		return toolError("start_workout", err), nil
	}
	return jsonResult(map[string]any{"session_id": id})
}

func (h *handlers) startFromTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError("template_id parameter is required"), nil
	}
	templateID, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("template_id must be a UUID"), nil
	}
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("start_workout_from_template", err), nil
	}

	inst, err := ws.Controller().StartFromTemplate(ctx, templateID)
	var partial *session.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		return toolError("start_workout_from_template", err), nil
	}
	out := map[string]any{
		"session_id":   inst.SessionID,
		"template":     inst.Template.Name,
		"exercises":    len(inst.Exercises),
		"sets_created": inst.SetsCreated,
	}
	if partial != nil {
		h.log.Warn("mcp start_workout_from_template partial", "error", err)
		out["warning"] = partial.Error()
	}
	return jsonResult(out)
}

func (h *handlers) addExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("add_exercise", err), nil
	}
	ctrl := ws.Controller()

	detail, err := ctrl.Active(ctx)
	if err != nil {
		return toolError("add_exercise", err), nil
	}

	exerciseID, name, err := h.resolveExercise(ctx, ref)
	if err != nil {
		return toolError("add_exercise", err), nil
	}

	order := req.GetInt("order_index", len(detail.Exercises))
	id, err := ctrl.AddExercise(ctx, exerciseID, order)
	if err != nil {
		h.log.Error("mcp add_exercise", "error", err)
		return toolError("add_exercise", err), nil
	}
	return jsonResult(map[string]any{
		"workout_exercise_id": id,
		"exercise_id":         exerciseID,
		"name":                name,
		"order_index":         order,
	})
}

// resolveExercise maps a UUID or name to a catalog exercise. Without a
// catalog only UUIDs are accepted.
func (h *handlers) resolveExercise(ctx context.Context, ref string) (uuid.UUID, string, error) {
	if h.catalog == nil {
		id, err := uuid.Parse(ref)
		if err != nil {
			return uuid.Nil, "", fmt.Errorf("%w: exercise must be a UUID", session.ErrValidation)
		}
		return id, "", nil
	}
	def, err := h.catalog.Resolve(ctx, ref)
	if err != nil {
		return uuid.Nil, "", err
	}
	return def.ID, def.Name, nil
}

// workoutExercise finds the active workout's exercise matching ref. The last
// matching exercise wins when the same definition was added twice.
func (h *handlers) workoutExercise(ctx context.Context, ws *session.Workspace, ref string) (uuid.UUID, error) {
	detail, err := ws.Controller().Active(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var exerciseID uuid.UUID
	if id, err := uuid.Parse(ref); err == nil {
		for _, ex := range detail.Exercises {
			if ex.ID == id {
				return ex.ID, nil
			}
		}
		exerciseID = id
	} else if h.catalog != nil {
		def, err := h.catalog.Resolve(ctx, ref)
		if err != nil {
			return uuid.Nil, err
		}
		exerciseID = def.ID
	}

	for i := len(detail.Exercises) - 1; i >= 0; i-- {
		if detail.Exercises[i].ExerciseID == exerciseID {
			return detail.Exercises[i].ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: %q is not part of the active workout", session.ErrNotFound, ref)
}

func (h *handlers) logSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError("weight parameter is required"), nil
	}
	reps, err := req.RequireInt("reps")
	if err != nil {
		return mcp.NewToolResultError("reps parameter is required"), nil
	}

	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("log_set", err), nil
	}
	weID, err := h.workoutExercise(ctx, ws, ref)
	if err != nil {
		return toolError("log_set", err), nil
	}
	ed, err := ws.Sets(ctx, weID)
	if err != nil {
		return toolError("log_set", err), nil
	}

	draft := ed.Add()
	index := len(ed.Entries()) - 1
	fields := session.SetFields{Weight: &weight, Reps: &reps, RPE: draft.RPE}
	if args := req.GetArguments(); args["rpe"] != nil {
		rpe := req.GetFloat("rpe", 0)
		fields.RPE = &rpe
	}
	if _, err := ed.Edit(index, fields); err != nil {
		return toolError("log_set", err), nil
	}

	entry, err := ed.Confirm(ctx, index)
	if err != nil {
		if rmErr := ed.Remove(index); rmErr != nil {
			h.log.Warn("mcp log_set: dropping draft failed", "error", rmErr)
		}
		return toolError("log_set", err), nil
	}
	return jsonResult(map[string]any{
		"set_id":     entry.ID,
		"set_number": index + 1,
		"weight":     entry.Weight,
		"reps":       entry.Reps,
		"rpe":        entry.RPE,
	})
}

func (h *handlers) getActiveWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("get_active_workout", err), nil
	}
	detail, err := ws.Controller().Active(ctx)
	if err != nil {
		return toolError("get_active_workout", err), nil
	}
	return jsonResult(detail)
}

func (h *handlers) finishWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label, err := req.RequireString("sentiment")
	if err != nil {
		return mcp.NewToolResultError("sentiment is required: " + strings.Join(sentimentLabels(), ", ")), nil
	}
	sentiment, err := session.ParseSentiment(label)
	if err != nil {
		return toolError("finish_workout", err), nil
	}
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("finish_workout", err), nil
	}
	done, err := ws.Controller().Finish(ctx, &sentiment)
	if err != nil {
		h.log.Error("mcp finish_workout", "error", err)
		return toolError("finish_workout", err), nil
	}
	return jsonResult(map[string]any{
		"session_id": done.SessionID,
		"title":      done.Title,
		"sentiment":  done.Sentiment.Label(),
		"duration":   done.Duration.Round(1e9).String(),
		"sets":       done.Sets,
		"xp":         done.XP,
		"activity":   done.Activity.Outcome.String(),
	})
}

func (h *handlers) discardWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := h.workspace(ctx)
	if err != nil {
		return toolError("discard_workout", err), nil
	}
	if err := ws.Controller().DiscardSession(ctx); err != nil {
		return toolError("discard_workout", err), nil
	}
	return mcp.NewToolResultText("workout discarded"), nil
}

func (h *handlers) getLeaderboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.rpc == nil {
		return mcp.NewToolResultError("leaderboard is not available"), nil
	}
	entries, err := h.rpc.StreakLeaderboard(ctx, req.GetInt("limit", 10))
	if err != nil {
		h.log.Error("mcp get_leaderboard", "error", err)
		return toolError("get_leaderboard", err), nil
	}
	return jsonResult(entries)
}

func (h *handlers) searchExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	if h.catalog == nil {
		return mcp.NewToolResultError("exercise catalog is not available"), nil
	}
	defs, err := h.catalog.Search(ctx, query)
	if err != nil {
		return toolError("search_exercises", err), nil
	}
	return jsonResult(defs)
}
