// ABOUTME: Tests for the SQLite plan library
// ABOUTME: Covers open, upsert, lookup misses, listing and close behavior

package planlib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bdi/internal/bdi"
)

func newTestLibrary(t *testing.T) *SQLiteLibrary {
	t.Helper()
	lib, err := Open(DriverModernc, filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func testPlan(desire string, actions ...string) bdi.Plan {
	p := bdi.Plan{
		ID:     desire + "-plan",
		Desire: bdi.Desire{Name: desire, Priority: 0.5, Target: []bdi.Belief{bdi.NewPredicate("done", desire)}},
		Final:  true,
	}
	for i, a := range actions {
		p.Actions = append(p.Actions, bdi.PlanAction{Name: a, PlannedStart: float64(i), Duration: 1})
	}
	return p
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot1", "nested", "plans.db")
	lib, err := Open(DriverModernc, path)
	require.NoError(t, err)
	defer lib.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, lib.Path())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "plans.db"))
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestInsertAndLookup(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()

	plan := testPlan("tidy", "pick", "place")
	require.NoError(t, lib.Insert(ctx, plan))

	got, ok, err := lib.Lookup(ctx, plan.Fingerprint())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, plan.Actions, got.Actions)
	assert.Equal(t, plan.Desire.Target, got.Desire.Target)
}

func TestLookup_Miss(t *testing.T) {
	lib := newTestLibrary(t)
	_, ok, err := lib.Lookup(context.Background(), bdi.Desire{Name: "unknown"}.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsert_Upserts(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()

	require.NoError(t, lib.Insert(ctx, testPlan("tidy", "pick")))
	require.NoError(t, lib.Insert(ctx, testPlan("tidy", "pick", "place", "wipe")))

	got, ok, err := lib.Lookup(ctx, testPlan("tidy").Fingerprint())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Actions, 3)

	entries, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Actions)
	assert.Equal(t, 1, entries[0].Hits)
}

func TestDelete(t *testing.T) {
	lib := newTestLibrary(t)
	ctx := context.Background()
	plan := testPlan("tidy", "pick")
	require.NoError(t, lib.Insert(ctx, plan))
	require.NoError(t, lib.Delete(ctx, plan.Fingerprint()))

	_, ok, err := lib.Lookup(ctx, plan.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenKeepsPlans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.db")
	ctx := context.Background()

	lib, err := Open(DriverModernc, path)
	require.NoError(t, err)
	require.NoError(t, lib.Insert(ctx, testPlan("tidy", "pick")))
	require.NoError(t, lib.Close())

	lib, err = Open(DriverModernc, path)
	require.NoError(t, err)
	defer lib.Close()
	_, ok, err := lib.Lookup(ctx, testPlan("tidy").Fingerprint())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClosedLibrary(t *testing.T) {
	lib := newTestLibrary(t)
	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close())

	assert.ErrorIs(t, lib.Insert(context.Background(), testPlan("x")), ErrLibraryClosed)
	_, _, err := lib.Lookup(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLibraryClosed)
}
