package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/repo"
	"github.com/pkordes/goat-attendance/testutil"
)

// newTestRepo opens a transaction against the test database and returns an
// AttendanceRepo backed by that transaction, plus the transaction itself for
// seeding fixtures. Everything is rolled back when the test finishes.
func newTestRepo(t *testing.T) (repo.AttendanceRepo, pgx.Tx) {
	t.Helper()
	tx := testutil.NewTx(t)
	return repo.NewAttendanceRepo(tx), tx
}

// testWindow is a fixed two-hour window far enough in the past that it never
// overlaps data other tests may have committed.
func testWindow(t *testing.T) domain.Window {
	t.Helper()
	w, err := domain.NewWindow(time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)
	return w
}

func TestAttendanceRepo_ActiveTagIDs(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()

	testutil.SeedTag(t, tx, "repo-active-1", true)
	testutil.SeedTag(t, tx, "repo-active-2", true)
	testutil.SeedTag(t, tx, "repo-inactive", false)

	ids, err := r.ActiveTagIDs(ctx)

	require.NoError(t, err)
	assert.Contains(t, ids, "repo-active-1")
	assert.Contains(t, ids, "repo-active-2")
	assert.NotContains(t, ids, "repo-inactive")
}

func TestAttendanceRepo_CountReadings(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()
	w := testWindow(t)

	testutil.SeedTag(t, tx, "count-a", true)
	testutil.SeedTag(t, tx, "count-b", true)
	testutil.SeedTag(t, tx, "count-silent", true)

	testutil.SeedReadings(t, tx, "count-a", 5, w.Start.Add(10*time.Minute))
	testutil.SeedReadings(t, tx, "count-b", 12, w.Start)
	// Readings outside the window must not be counted.
	testutil.SeedReadings(t, tx, "count-a", 3, w.Start.Add(-time.Hour))
	testutil.SeedReadings(t, tx, "count-b", 2, w.End)

	counts, err := r.CountReadings(ctx, w, []string{"count-a", "count-b", "count-silent"})

	require.NoError(t, err)
	assert.Equal(t, []domain.TagCount{
		{TagID: "count-a", Observed: 5},
		{TagID: "count-b", Observed: 12},
		{TagID: "count-silent", Observed: 0},
	}, counts)
}

func TestAttendanceRepo_CountReadings_WindowBounds(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()
	w := testWindow(t)

	testutil.SeedTag(t, tx, "bounds", true)
	// Start is inclusive, End is exclusive.
	testutil.SeedReadings(t, tx, "bounds", 1, w.Start)
	testutil.SeedReadings(t, tx, "bounds", 1, w.End.Add(-time.Microsecond))
	testutil.SeedReadings(t, tx, "bounds", 1, w.End)

	counts, err := r.CountReadings(ctx, w, []string{"bounds"})

	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Observed)
}

func TestAttendanceRepo_CountReadings_NoTags(t *testing.T) {
	r, _ := newTestRepo(t)

	counts, err := r.CountReadings(context.Background(), testWindow(t), nil)

	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAttendanceRepo_InsertFirstSeen(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()

	testutil.SeedAttendance(t, tx, "first-existing", 40)

	inserted, err := r.InsertFirstSeen(ctx, []domain.Absence{
		{TagID: "first-new", Shortfall: 7},
		{TagID: "first-existing", Shortfall: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first-new"}, inserted)

	got, err := r.Get(ctx, "first-new")
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.RedFlagCount)

	// The existing record must not be overwritten.
	got, err = r.Get(ctx, "first-existing")
	require.NoError(t, err)
	assert.EqualValues(t, 40, got.RedFlagCount)
}

func TestAttendanceRepo_IncrementRedFlags(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()

	testutil.SeedAttendance(t, tx, "inc-a", 10)
	testutil.SeedAttendance(t, tx, "inc-b", 0)

	n, err := r.IncrementRedFlags(ctx, []domain.Absence{
		{TagID: "inc-a", Shortfall: 5},
		{TagID: "inc-b", Shortfall: 12},
		{TagID: "inc-missing", Shortfall: 1},
	})

	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "records without a row are ignored")

	a, err := r.Get(ctx, "inc-a")
	require.NoError(t, err)
	assert.EqualValues(t, 15, a.RedFlagCount)

	b, err := r.Get(ctx, "inc-b")
	require.NoError(t, err)
	assert.EqualValues(t, 12, b.RedFlagCount)

	assert.Zero(t, testutil.AttendanceRows(t, tx, "inc-missing"))
}

func TestAttendanceRepo_EmptyWritesAreNoops(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	inserted, err := r.InsertFirstSeen(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, inserted)

	n, err := r.IncrementRedFlags(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAttendanceRepo_Ownership(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()

	testutil.SeedOwnership(t, tx, "own-1", "goat-b", "farmer-1", "hub-1")
	testutil.SeedOwnership(t, tx, "own-1", "goat-a", "farmer-1", "hub-1")
	testutil.SeedOwnership(t, tx, "own-2", "goat-c", "farmer-2", "hub-2")

	links, err := r.Ownership(ctx, []string{"own-1", "own-unlinked"})

	require.NoError(t, err)
	assert.Equal(t, []domain.OwnershipLink{
		{TagID: "own-1", GoatID: "goat-a", FarmerID: "farmer-1", HubID: "hub-1"},
		{TagID: "own-1", GoatID: "goat-b", FarmerID: "farmer-1", HubID: "hub-1"},
	}, links)
}

func TestAttendanceRepo_Get_NotFound(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.Get(context.Background(), "never-flagged")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttendanceRepo_List(t *testing.T) {
	r, tx := newTestRepo(t)
	ctx := context.Background()

	// Start from an empty table; the deletion is rolled back with the test.
	_, err := tx.Exec(ctx, `DELETE FROM goats_attendance`)
	require.NoError(t, err)
	testutil.SeedAttendance(t, tx, "list-low", 3)
	testutil.SeedAttendance(t, tx, "list-high", 40)
	testutil.SeedAttendance(t, tx, "list-mid-b", 12)
	testutil.SeedAttendance(t, tx, "list-mid-a", 12)

	first, total, err := r.List(ctx, domain.NewPageRequest(1, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []domain.AttendanceRecord{
		{TagID: "list-high", RedFlagCount: 40},
		{TagID: "list-mid-a", RedFlagCount: 12},
		{TagID: "list-mid-b", RedFlagCount: 12},
	}, first)

	second, total, err := r.List(ctx, domain.NewPageRequest(2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []domain.AttendanceRecord{{TagID: "list-low", RedFlagCount: 3}}, second)

	beyond, total, err := r.List(ctx, domain.NewPageRequest(5, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total, "total is reported past the last page")
	assert.Empty(t, beyond)
}
