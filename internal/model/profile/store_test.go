package profile_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
)

func newSeededStore(opts ...profile.Option) *profile.MemoryStore {
	return profile.NewMemoryStore(profile.Seed(), opts...)
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []profile.Change
	skipped []string
}

func (r *recordingObserver) ProfileChanged(c profile.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingObserver) ToggleSkipped(name, permission, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, name+"/"+permission)
}

func TestSeedProfiles(t *testing.T) {
	store := newSeededStore()

	all := store.List()
	require.Len(t, all, 2)
	assert.Equal(t, map[string]string{"CanEdit": "true", "CanDelete": "true"}, all["Admin"].Parameters)
	assert.Equal(t, map[string]string{"CanEdit": "false", "CanDelete": "false"}, all["User"].Parameters)
}

func TestCreateThenGet(t *testing.T) {
	store := newSeededStore()

	input := map[string]string{"CanView": "true"}
	_, err := store.Create("Guest", input)
	require.NoError(t, err)

	assert.Len(t, store.List(), 3)
	got, ok := store.Get("Guest")
	require.True(t, ok)
	assert.Equal(t, "Guest", got.ProfileName)
	assert.Equal(t, map[string]string{"CanView": "true"}, got.Parameters)

	input["CanView"] = "false"
	input["Extra"] = "true"
	got, _ = store.Get("Guest")
	assert.Equal(t, map[string]string{"CanView": "true"}, got.Parameters, "stored profile must not alias caller input")
}

func TestWritesReturnCommittedSnapshot(t *testing.T) {
	store := newSeededStore()

	created, err := store.Create("Guest", map[string]string{"CanView": "TRUE"})
	require.NoError(t, err)
	assert.Equal(t, profile.Profile{ProfileName: "Guest", Parameters: map[string]string{"CanView": "true"}}, created)

	created.Parameters["CanView"] = "false"
	got, _ := store.Get("Guest")
	assert.Equal(t, "true", got.Parameters["CanView"], "returned snapshot must not alias the store")

	updated, err := store.Update("Guest", map[string]string{"CanComment": "False"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CanComment": "false"}, updated.Parameters)

	_, err = store.Update("Guest", map[string]string{"CanComment": "nope"})
	require.ErrorIs(t, err, profile.ErrInvalidValue)
}

func TestCreateNormalizesValues(t *testing.T) {
	store := newSeededStore()

	_, err := store.Create("Mixed", map[string]string{"A": "TRUE", "B": " False "})
	require.NoError(t, err)
	got, _ := store.Get("Mixed")
	assert.Equal(t, map[string]string{"A": "true", "B": "false"}, got.Parameters)
}

func TestCreateEmptyParameters(t *testing.T) {
	store := newSeededStore()

	_, err := store.Create("Empty", nil)
	require.NoError(t, err)
	got, ok := store.Get("Empty")
	require.True(t, ok)
	assert.Empty(t, got.Parameters)
	assert.NotNil(t, got.Parameters)
}

func TestCreateDuplicate(t *testing.T) {
	store := newSeededStore()

	_, err := store.Create("Admin", map[string]string{"CanEdit": "false"})
	require.ErrorIs(t, err, profile.ErrAlreadyExists)

	got, _ := store.Get("Admin")
	assert.Equal(t, map[string]string{"CanEdit": "true", "CanDelete": "true"}, got.Parameters)
}

func TestCreateDuplicateCheckedBeforeValidation(t *testing.T) {
	store := newSeededStore()

	_, err := store.Create("Admin", map[string]string{"CanEdit": "maybe"})
	assert.ErrorIs(t, err, profile.ErrAlreadyExists)
	assert.False(t, errors.Is(err, profile.ErrInvalidValue))
}

func TestCreateInvalidValueLeavesStoreUntouched(t *testing.T) {
	store := newSeededStore()
	before := store.List()

	_, err := store.Create("Guest", map[string]string{"CanView": "true", "CanFly": "notBoolean"})
	require.ErrorIs(t, err, profile.ErrInvalidValue)

	_, ok := store.Get("Guest")
	assert.False(t, ok)
	assert.Equal(t, before, store.List())
}

func TestUpdateReplacesParameters(t *testing.T) {
	store := newSeededStore()
	_, err := store.Create("Editor", map[string]string{"A": "true", "B": "false"})
	require.NoError(t, err)

	_, err = store.Update("Editor", map[string]string{"X": "true"})
	require.NoError(t, err)

	got, ok := store.Get("Editor")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"X": "true"}, got.Parameters)
}

func TestUpdateInvalidValue(t *testing.T) {
	store := newSeededStore()
	before := store.List()

	_, err := store.Update("Admin", map[string]string{"CanView": "notBoolean"})
	require.ErrorIs(t, err, profile.ErrInvalidValue)

	got, _ := store.Get("Admin")
	assert.Equal(t, map[string]string{"CanEdit": "true", "CanDelete": "true"}, got.Parameters)
	assert.Equal(t, before, store.List())
}

func TestUpdateMissingCheckedFirst(t *testing.T) {
	store := newSeededStore()

	_, err := store.Update("Nobody", map[string]string{"A": "nope"})
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newSeededStore()

	require.NoError(t, store.Delete("User"))
	_, ok := store.Get("User")
	assert.False(t, ok)
	assert.Len(t, store.List(), 1)
}

func TestDeleteMissing(t *testing.T) {
	store := newSeededStore()

	err := store.Delete("Ghost")
	require.ErrorIs(t, err, profile.ErrNotFound)
	assert.Len(t, store.List(), 2)
}

func TestGetReturnsCopy(t *testing.T) {
	store := newSeededStore()

	got, _ := store.Get("Admin")
	got.Parameters["CanEdit"] = "false"
	got.Parameters["Injected"] = "true"

	again, _ := store.Get("Admin")
	assert.Equal(t, map[string]string{"CanEdit": "true", "CanDelete": "true"}, again.Parameters)

	all := store.List()
	all["Admin"].Parameters["CanDelete"] = "false"
	delete(all, "User")
	assert.Len(t, store.List(), 2)
	assert.Equal(t, profile.DecisionTrue, store.Validate("Admin", "CanDelete"))
}

func TestValidate(t *testing.T) {
	store := newSeededStore()
	_, err := store.Create("Weird", nil)
	require.NoError(t, err)

	assert.Equal(t, profile.DecisionTrue, store.Validate("Admin", "CanEdit"))
	assert.Equal(t, profile.DecisionFalse, store.Validate("User", "CanDelete"))
	assert.Equal(t, profile.DecisionUndetermined, store.Validate("Ghost", "CanEdit"))
	assert.Equal(t, profile.DecisionUndetermined, store.Validate("Admin", "CanFly"))
	assert.Equal(t, profile.DecisionUndetermined, store.Validate("admin", "CanEdit"), "names are case-sensitive")
}

func TestInvalidSeedIsDropped(t *testing.T) {
	store := profile.NewMemoryStore([]profile.Profile{
		{ProfileName: "Broken", Parameters: map[string]string{"CanEdit": "notBoolean"}},
	})
	assert.Equal(t, profile.DecisionUndetermined, store.Validate("Broken", "CanEdit"))
	assert.Empty(t, store.List())
}

func TestToggleInvolution(t *testing.T) {
	store := newSeededStore()

	before := store.Validate("Admin", "CanEdit")
	store.Toggle("Admin", "CanEdit")
	after := store.Validate("Admin", "CanEdit")
	assert.NotEqual(t, before, after)
	assert.Equal(t, profile.DecisionFalse, after)

	store.Toggle("Admin", "CanEdit")
	assert.Equal(t, before, store.Validate("Admin", "CanEdit"))

	got, _ := store.Get("Admin")
	assert.Equal(t, "true", got.Parameters["CanEdit"])
	assert.Equal(t, "true", got.Parameters["CanDelete"])
}

func TestToggleUnknownIsNoop(t *testing.T) {
	obs := &recordingObserver{}
	store := newSeededStore(profile.WithObserver(obs))
	before := store.List()

	assert.NotPanics(t, func() {
		store.Toggle("Ghost", "CanEdit")
		store.Toggle("Admin", "CanFly")
	})

	assert.Equal(t, before, store.List())
	assert.Empty(t, obs.changes)
	assert.Equal(t, []string{"Ghost/CanEdit", "Admin/CanFly"}, obs.skipped)
}

func TestObserverReceivesChanges(t *testing.T) {
	obs := &recordingObserver{}
	store := newSeededStore(profile.WithObserver(obs))

	_, err := store.Create("Guest", map[string]string{"CanView": "true"})
	require.NoError(t, err)
	_, err = store.Update("Guest", map[string]string{"CanView": "false"})
	require.NoError(t, err)
	store.Toggle("Guest", "CanView")
	require.NoError(t, store.Delete("Guest"))
	require.Error(t, store.Delete("Guest"))

	require.Len(t, obs.changes, 4)
	kinds := []profile.ChangeKind{obs.changes[0].Kind, obs.changes[1].Kind, obs.changes[2].Kind, obs.changes[3].Kind}
	assert.Equal(t, []profile.ChangeKind{
		profile.ChangeCreated, profile.ChangeUpdated, profile.ChangeToggled, profile.ChangeDeleted,
	}, kinds)
	assert.Equal(t, 3, obs.changes[0].Count)
	assert.Equal(t, "CanView", obs.changes[2].Permission)
	assert.Equal(t, "true", obs.changes[2].Profile.Parameters["CanView"])
	assert.Equal(t, 2, obs.changes[3].Count)
	assert.False(t, obs.changes[0].At.IsZero())
}

func TestConcurrentToggleAndGet(t *testing.T) {
	store := newSeededStore()

	const togglers, readers = 64, 64
	var wg sync.WaitGroup
	errs := make(chan string, readers)

	for i := 0; i < togglers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Toggle("Admin", "CanEdit")
		}()
	}
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := store.Get("Admin")
			if !ok {
				errs <- "Admin missing"
				return
			}
			if v := got.Parameters["CanEdit"]; v != "true" && v != "false" {
				errs <- "torn value " + v
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
	// An even number of toggles restores the original value.
	assert.Equal(t, profile.DecisionTrue, store.Validate("Admin", "CanEdit"))
}

func TestConcurrentCreateSameName(t *testing.T) {
	store := newSeededStore()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Create("Racer", map[string]string{"Go": "true"}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, store.List(), 3)
}
