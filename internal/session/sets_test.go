package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/session/sessiontest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// editorFixture starts a session with one exercise and returns its editor.
func editorFixture(t *testing.T, repo *sessiontest.Repo, exerciseID uuid.UUID) (*session.Workspace, *session.ExerciseSets, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	ws := session.NewWorkspace(repo, testUser, nil, testLogger())
	_, err := ws.Controller().StartSession(ctx, "")
	require.NoError(t, err)
	weID, err := ws.Controller().AddExercise(ctx, exerciseID, 0)
	require.NoError(t, err)
	ed, err := ws.Sets(ctx, weID)
	require.NoError(t, err)
	return ws, ed, weID
}

func fill(ed *session.ExerciseSets, index int, weight float64, reps int, rpe *float64) error {
	_, err := ed.Edit(index, session.SetFields{Weight: &weight, Reps: &reps, RPE: rpe})
	return err
}

// TestExerciseSets_AddCopiesPrevious verifies new drafts start from the last entry.
func TestExerciseSets_AddCopiesPrevious(t *testing.T) {
	_, ed, _ := editorFixture(t, sessiontest.NewRepo(), uuid.New())

	first := ed.Add()
	assert.True(t, first.Temporary())
	assert.Equal(t, session.Draft, first.State)
	assert.Nil(t, first.Weight)

	require.NoError(t, fill(ed, 0, 70, 10, ptr(7.0)))
	second := ed.Add()
	assert.NotEqual(t, first.ID, second.ID)
	require.NotNil(t, second.Weight)
	assert.Equal(t, 70.0, *second.Weight)
	assert.Equal(t, 10, *second.Reps)
	assert.Equal(t, 7.0, *second.RPE)

	// editing the copy must not alias the original
	require.NoError(t, fill(ed, 1, 72.5, 9, ptr(8.0)))
	entries := ed.Entries()
	assert.Equal(t, 70.0, *entries[0].Weight)
	assert.Equal(t, 72.5, *entries[1].Weight)
}

// TestExerciseSets_ConfirmRejectsMissingRPE verifies that weight and reps
// alone are not enough when no previous session can fill RPE.
func TestExerciseSets_ConfirmRejectsMissingRPE(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, weID := editorFixture(t, repo, uuid.New())

	ed.Add()
	require.NoError(t, fill(ed, 0, 100, 5, nil))

	_, err := ed.Confirm(context.Background(), 0)
	var mf *session.MissingFieldsError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"rpe"}, mf.Fields)
	assert.ErrorIs(t, err, session.ErrValidation)
	assert.Equal(t, 0, repo.SetCount(weID))
	assert.Equal(t, session.Draft, ed.Entries()[0].State)
}

// TestExerciseSets_ConfirmAutoFillsFromPreviousSession verifies blank fields
// take the same-index set of the last completed session.
func TestExerciseSets_ConfirmAutoFillsFromPreviousSession(t *testing.T) {
	repo := sessiontest.NewRepo()
	exerciseID := uuid.New()
	now := time.Now().UTC()
	repo.SeedCompleted(testUser.ID, exerciseID, now.Add(-72*time.Hour),
		models.NewSet{Reps: 3, Weight: 90, RPE: ptr(6.0)},
		models.NewSet{Reps: 3, Weight: 90, RPE: ptr(6.5)},
	)
	repo.SeedCompleted(testUser.ID, exerciseID, now.Add(-24*time.Hour),
		models.NewSet{Reps: 5, Weight: 100, RPE: ptr(7.0)},
		models.NewSet{Reps: 5, Weight: 102.5, RPE: ptr(8.5)},
	)
	_, ed, weID := editorFixture(t, repo, exerciseID)

	ed.Add()
	ed.Add()
	require.NoError(t, fill(ed, 1, 105, 4, nil))

	got, err := ed.Confirm(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, got.Temporary())
	assert.Equal(t, session.Confirmed, got.State)
	assert.Equal(t, 105.0, *got.Weight, "filled fields are kept")
	assert.Equal(t, 4, *got.Reps)
	assert.Equal(t, 8.5, *got.RPE, "rpe comes from set 2 of the latest completed session")

	got, err = ed.Confirm(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, *got.Weight)
	assert.Equal(t, 5, *got.Reps)
	assert.Equal(t, 7.0, *got.RPE)

	assert.Equal(t, 2, repo.SetCount(weID))
	assert.Equal(t, 1, repo.PreviousCalls(), "previous session is looked up once per editor")
}

// TestExerciseSets_ConfirmNumbersByIndex verifies set_number = index + 1.
func TestExerciseSets_ConfirmNumbersByIndex(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, _ := editorFixture(t, repo, uuid.New())
	ctx := context.Background()

	for range 3 {
		ed.Add()
	}
	require.NoError(t, fill(ed, 0, 50, 12, ptr(6.0)))
	require.NoError(t, fill(ed, 1, 50, 12, ptr(6.0)))
	require.NoError(t, fill(ed, 2, 50, 12, ptr(6.0)))

	for _, i := range []int{2, 0, 1} {
		e, err := ed.Confirm(ctx, i)
		require.NoError(t, err)
		id, err := uuid.Parse(e.ID)
		require.NoError(t, err)
		set, ok := repo.Set(id)
		require.True(t, ok)
		assert.Equal(t, i+1, set.SetNumber)
	}
}

// TestExerciseSets_RoundTrip verifies confirm then unconfirm restores a draft
// holding the persisted values, and that cycling never grows the set count
// past the number of entries.
func TestExerciseSets_RoundTrip(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, weID := editorFixture(t, repo, uuid.New())
	ctx := context.Background()

	ed.Add()
	ed.Add()
	require.NoError(t, fill(ed, 0, 62.5, 8, ptr(7.5)))
	require.NoError(t, fill(ed, 1, 65, 6, ptr(9.0)))

	confirmed, err := ed.Confirm(ctx, 0)
	require.NoError(t, err)
	draft, err := ed.Unconfirm(ctx, 0)
	require.NoError(t, err)

	assert.True(t, draft.Temporary())
	assert.Equal(t, session.Draft, draft.State)
	assert.Equal(t, *confirmed.Weight, *draft.Weight)
	assert.Equal(t, *confirmed.Reps, *draft.Reps)
	assert.Equal(t, *confirmed.RPE, *draft.RPE)
	assert.Equal(t, 0, repo.SetCount(weID))

	drafts := len(ed.Entries())
	for range 5 {
		_, err := ed.Confirm(ctx, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, repo.SetCount(weID), drafts)
		_, err = ed.Unconfirm(ctx, 0)
		require.NoError(t, err)
	}
	_, err = ed.Confirm(ctx, 0)
	require.NoError(t, err)
	_, err = ed.Confirm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, drafts, repo.SetCount(weID))
}

// TestExerciseSets_ConfirmedIsReadOnly verifies edit and remove need a draft.
func TestExerciseSets_ConfirmedIsReadOnly(t *testing.T) {
	_, ed, _ := editorFixture(t, sessiontest.NewRepo(), uuid.New())
	ctx := context.Background()

	ed.Add()
	require.NoError(t, fill(ed, 0, 40, 15, ptr(5.0)))
	_, err := ed.Confirm(ctx, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, fill(ed, 0, 45, 15, ptr(5.0)), session.ErrSetConfirmed)
	assert.ErrorIs(t, ed.Remove(0), session.ErrSetConfirmed)
	_, err = ed.Confirm(ctx, 0)
	assert.ErrorIs(t, err, session.ErrSetConfirmed)
	assert.ErrorIs(t, ed.Remove(3), session.ErrSetIndex)

	_, err = ed.Unconfirm(ctx, 0)
	require.NoError(t, err)
	assert.NoError(t, ed.Remove(0))
	assert.Empty(t, ed.Entries())
}

// TestExerciseSets_UnconfirmDraft verifies drafts cannot be unconfirmed.
func TestExerciseSets_UnconfirmDraft(t *testing.T) {
	_, ed, _ := editorFixture(t, sessiontest.NewRepo(), uuid.New())
	ed.Add()
	_, err := ed.Unconfirm(context.Background(), 0)
	assert.ErrorIs(t, err, session.ErrSetNotConfirmed)
}

// TestExerciseSets_UnconfirmDeleteFails keeps the entry confirmed.
func TestExerciseSets_UnconfirmDeleteFails(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, weID := editorFixture(t, repo, uuid.New())
	ctx := context.Background()

	ed.Add()
	require.NoError(t, fill(ed, 0, 40, 15, ptr(5.0)))
	confirmed, err := ed.Confirm(ctx, 0)
	require.NoError(t, err)

	repo.DeleteSetErr = errors.New("permission denied")
	_, err = ed.Unconfirm(ctx, 0)
	var re *session.RemoteError
	require.ErrorAs(t, err, &re)

	e := ed.Entries()[0]
	assert.Equal(t, confirmed.ID, e.ID)
	assert.Equal(t, session.Confirmed, e.State)
	assert.Equal(t, 1, repo.SetCount(weID))
}

// TestExerciseSets_SeededFromPersistedRows verifies existing sets start confirmed.
func TestExerciseSets_SeededFromPersistedRows(t *testing.T) {
	ctx := context.Background()
	repo := sessiontest.NewRepo()
	ws := session.NewWorkspace(repo, testUser, nil, testLogger())
	_, err := ws.Controller().StartSession(ctx, "")
	require.NoError(t, err)
	weID, err := ws.Controller().AddExercise(ctx, uuid.New(), 0)
	require.NoError(t, err)
	_, err = ws.Controller().AddSet(ctx, weID, 10, 20, ptr(6.0))
	require.NoError(t, err)

	ed, err := ws.Sets(ctx, weID)
	require.NoError(t, err)
	entries := ed.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, session.Confirmed, entries[0].State)
	assert.False(t, entries[0].Temporary())
}

// TestExerciseSets_DoubleConfirmDuplicates documents the known gap: two
// overlapping confirms of the same draft both insert a row.
func TestExerciseSets_DoubleConfirmDuplicates(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, weID := editorFixture(t, repo, uuid.New())

	ed.Add()
	require.NoError(t, fill(ed, 0, 80, 5, ptr(8.0)))

	// Hold both inserts until each caller has passed its state check.
	var arrived sync.WaitGroup
	arrived.Add(2)
	release := make(chan struct{})
	repo.BeforeInsertSets = func([]models.NewSet) error {
		arrived.Done()
		<-release
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ed.Confirm(context.Background(), 0)
		}()
	}
	arrived.Wait()
	close(release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 2, repo.SetCount(weID), "concurrent confirms are not de-duplicated")
	assert.Len(t, ed.Entries(), 1)
	assert.Equal(t, session.Confirmed, ed.Entries()[0].State)
}

// TestExerciseSets_AppendBeforeTrailingDrafts verifies an externally persisted
// set is placed after the confirmed entries and is not added twice.
func TestExerciseSets_AppendBeforeTrailingDrafts(t *testing.T) {
	repo := sessiontest.NewRepo()
	_, ed, weID := editorFixture(t, repo, uuid.New())
	ctx := context.Background()

	ed.Add()
	require.NoError(t, fill(ed, 0, 80, 8, ptr(7.0)))
	_, err := ed.Confirm(ctx, 0)
	require.NoError(t, err)
	ed.Add()
	ed.Add()

	set := models.Set{ID: uuid.New(), WorkoutExerciseID: weID, SetNumber: 2, Reps: 6, Weight: 85}
	ed.Append(set)
	ed.Append(set)

	entries := ed.Entries()
	require.Len(t, entries, 4)
	states := []session.SetState{entries[0].State, entries[1].State, entries[2].State, entries[3].State}
	assert.Equal(t, []session.SetState{session.Confirmed, session.Confirmed, session.Draft, session.Draft}, states)
	assert.Equal(t, set.ID.String(), entries[1].ID)
}
