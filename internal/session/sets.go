package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// SetState is the editing state of a set entry.
type SetState int

const (
	// Draft entries live only in memory and are editable.
	Draft SetState = iota
	// Confirmed entries are persisted rows and read-only.
	Confirmed
)

func (s SetState) String() string {
	if s == Confirmed {
		return "confirmed"
	}
	return "draft"
}

func (s SetState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const tempPrefix = "temp-"

// SetEntry is one row of the set editor.
type SetEntry struct {
	ID     string   `json:"id"`
	State  SetState `json:"state"`
	Weight *float64 `json:"weight"`
	Reps   *int     `json:"reps"`
	RPE    *float64 `json:"rpe"`
}

// Temporary reports whether the entry has a local-only identifier.
func (e SetEntry) Temporary() bool {
	return strings.HasPrefix(e.ID, tempPrefix)
}

// SetFields are the editable values of a draft. Nil means empty.
type SetFields struct {
	Weight *float64 `json:"weight"`
	Reps   *int     `json:"reps"`
	RPE    *float64 `json:"rpe"`
}

func (f SetFields) missing() []string {
	var out []string
	if f.Weight == nil {
		out = append(out, "weight")
	}
	if f.Reps == nil {
		out = append(out, "reps")
	}
	if f.RPE == nil {
		out = append(out, "rpe")
	}
	return out
}

// fillFrom copies values from prev into empty fields.
func (f SetFields) fillFrom(prev models.Set) SetFields {
	if f.Weight == nil {
		w := prev.Weight
		f.Weight = &w
	}
	if f.Reps == nil {
		r := prev.Reps
		f.Reps = &r
	}
	if f.RPE == nil && prev.RPE != nil {
		rpe := *prev.RPE
		f.RPE = &rpe
	}
	return f
}

func (e SetEntry) fields() SetFields {
	return SetFields{Weight: clonePtr(e.Weight), Reps: clonePtr(e.Reps), RPE: clonePtr(e.RPE)}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func entryFromSet(s models.Set) SetEntry {
	w, r := s.Weight, s.Reps
	return SetEntry{
		ID:     s.ID.String(),
		State:  Confirmed,
		Weight: &w,
		Reps:   &r,
		RPE:    clonePtr(s.RPE),
	}
}

// ExerciseSets is the set editor of one workout exercise. Entries move
// between Draft and Confirmed; only confirmed entries exist in the backend.
//
// Confirm does not de-duplicate: two concurrent confirms of the same draft
// both insert a row.
type ExerciseSets struct {
	store    SetStore
	userID   uuid.UUID
	exercise models.WorkoutExercise
	log      *slog.Logger

	mu       sync.Mutex
	entries  []SetEntry
	seq      int
	previous []models.Set
	loaded   bool
}

// NewExerciseSets creates an editor seeded with the exercise's persisted sets,
// which start out confirmed.
func NewExerciseSets(store SetStore, userID uuid.UUID, ex models.ExerciseDetail, log *slog.Logger) *ExerciseSets {
	x := &ExerciseSets{
		store:    store,
		userID:   userID,
		exercise: ex.WorkoutExercise,
		log:      log,
	}
	for _, s := range ex.Sets {
		x.entries = append(x.entries, entryFromSet(s))
	}
	return x
}

// WorkoutExerciseID returns the id of the edited workout exercise.
func (x *ExerciseSets) WorkoutExerciseID() uuid.UUID {
	return x.exercise.ID
}

// Entries returns a snapshot of all entries in display order.
func (x *ExerciseSets) Entries() []SetEntry {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]SetEntry, len(x.entries))
	for i, e := range x.entries {
		out[i] = e
		f := e.fields()
		out[i].Weight, out[i].Reps, out[i].RPE = f.Weight, f.Reps, f.RPE
	}
	return out
}

func (x *ExerciseSets) tempID() string {
	x.seq++
	return tempPrefix + strconv.Itoa(x.seq)
}

func (x *ExerciseSets) indexOf(id string) int {
	for i, e := range x.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Add appends a new draft pre-filled with the previous entry's values.
func (x *ExerciseSets) Add() SetEntry {
	x.mu.Lock()
	defer x.mu.Unlock()

	e := SetEntry{ID: x.tempID(), State: Draft}
	if n := len(x.entries); n > 0 {
		f := x.entries[n-1].fields()
		e.Weight, e.Reps, e.RPE = f.Weight, f.Reps, f.RPE
	}
	x.entries = append(x.entries, e)
	return e
}

// Append adds a set that was persisted outside the editor as a confirmed
// entry. It goes after the last confirmed entry, ahead of any trailing drafts,
// which keep their values.
func (x *ExerciseSets) Append(set models.Set) SetEntry {
	x.mu.Lock()
	defer x.mu.Unlock()

	e := entryFromSet(set)
	if x.indexOf(e.ID) >= 0 {
		return e
	}
	at := len(x.entries)
	for at > 0 && x.entries[at-1].State == Draft {
		at--
	}
	x.entries = append(x.entries, SetEntry{})
	copy(x.entries[at+1:], x.entries[at:])
	x.entries[at] = e
	return e
}

// Edit replaces the values of a draft entry.
func (x *ExerciseSets) Edit(index int, f SetFields) (SetEntry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if index < 0 || index >= len(x.entries) {
		return SetEntry{}, ErrSetIndex
	}
	if x.entries[index].State == Confirmed {
		return SetEntry{}, ErrSetConfirmed
	}
	e := &x.entries[index]
	e.Weight, e.Reps, e.RPE = clonePtr(f.Weight), clonePtr(f.Reps), clonePtr(f.RPE)
	return *e, nil
}

// Remove deletes a draft entry. Confirmed entries must be unconfirmed first.
func (x *ExerciseSets) Remove(index int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if index < 0 || index >= len(x.entries) {
		return ErrSetIndex
	}
	if x.entries[index].State == Confirmed {
		return ErrSetConfirmed
	}
	x.entries = append(x.entries[:index], x.entries[index+1:]...)
	return nil
}

// previousSets loads the same exercise's sets from the user's last completed
// session once per editor.
func (x *ExerciseSets) previousSets(ctx context.Context) []models.Set {
	x.mu.Lock()
	if x.loaded {
		prev := x.previous
		x.mu.Unlock()
		return prev
	}
	x.mu.Unlock()

	prev, err := x.store.PreviousSets(ctx, x.userID, x.exercise.ExerciseID, x.exercise.SessionID)
	if err != nil {
		x.log.Warn("previous session lookup failed", "exercise_id", x.exercise.ExerciseID, "error", err)
		return nil
	}

	x.mu.Lock()
	x.previous, x.loaded = prev, true
	x.mu.Unlock()
	return prev
}

// Confirm persists the draft at index with set number index+1. Empty fields
// are first filled from the same-index set of the previous session; if any
// is still empty a *MissingFieldsError is returned.
func (x *ExerciseSets) Confirm(ctx context.Context, index int) (SetEntry, error) {
	x.mu.Lock()
	if index < 0 || index >= len(x.entries) {
		x.mu.Unlock()
		return SetEntry{}, ErrSetIndex
	}
	entry := x.entries[index]
	x.mu.Unlock()

	if entry.State == Confirmed {
		return SetEntry{}, ErrSetConfirmed
	}

	f := entry.fields()
	if len(f.missing()) > 0 {
		if prev := x.previousSets(ctx); index < len(prev) {
			f = f.fillFrom(prev[index])
			x.writeBack(entry.ID, f)
		}
	}
	if missing := f.missing(); len(missing) > 0 {
		return SetEntry{}, &MissingFieldsError{Index: index, Fields: missing}
	}

	rows, err := x.store.InsertSets(ctx, []models.NewSet{{
		WorkoutExerciseID: x.exercise.ID,
		SetNumber:         index + 1,
		Reps:              *f.Reps,
		Weight:            *f.Weight,
		RPE:               f.RPE,
	}})
	if err != nil {
		return SetEntry{}, remote("confirming set", err)
	}
	if len(rows) != 1 {
		return SetEntry{}, remote("confirming set", fmt.Errorf("expected 1 row, got %d", len(rows)))
	}

	confirmed := entryFromSet(rows[0])

	x.mu.Lock()
	defer x.mu.Unlock()
	i := x.indexOf(entry.ID)
	if i < 0 {
		// Another confirm of the same draft finished first; its row stays too.
		x.log.Warn("draft confirmed twice", "workout_exercise_id", x.exercise.ID, "set_id", rows[0].ID)
		return confirmed, nil
	}
	x.entries[i] = confirmed
	return confirmed, nil
}

func (x *ExerciseSets) writeBack(id string, f SetFields) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if i := x.indexOf(id); i >= 0 && x.entries[i].State == Draft {
		x.entries[i].Weight, x.entries[i].Reps, x.entries[i].RPE = clonePtr(f.Weight), clonePtr(f.Reps), clonePtr(f.RPE)
	}
}

// Unconfirm deletes the persisted row of the entry at index and turns it back
// into a draft holding the same values. The entry only flips after the
// delete succeeded.
func (x *ExerciseSets) Unconfirm(ctx context.Context, index int) (SetEntry, error) {
	x.mu.Lock()
	if index < 0 || index >= len(x.entries) {
		x.mu.Unlock()
		return SetEntry{}, ErrSetIndex
	}
	entry := x.entries[index]
	x.mu.Unlock()

	if entry.State != Confirmed || entry.Temporary() {
		return SetEntry{}, ErrSetNotConfirmed
	}
	setID, err := uuid.Parse(entry.ID)
	if err != nil {
		return SetEntry{}, fmt.Errorf("%w: bad set id %q", ErrSetNotConfirmed, entry.ID)
	}

	if err := x.store.DeleteSet(ctx, setID); err != nil {
		return SetEntry{}, remote("unconfirming set", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	i := x.indexOf(entry.ID)
	if i < 0 {
		return SetEntry{}, ErrSetIndex
	}
	draft := x.entries[i]
	draft.ID = x.tempID()
	draft.State = Draft
	x.entries[i] = draft
	return draft, nil
}
