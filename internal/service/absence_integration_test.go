package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/repo"
	"github.com/pkordes/goat-attendance/testutil"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.RunMain(m))
}

// TestAbsenceDetector_Postgres runs the detector end to end against the test
// database inside a transaction that is rolled back afterwards.
func TestAbsenceDetector_Postgres(t *testing.T) {
	tx := testutil.NewTx(t)
	ctx := context.Background()
	windowStart := testNow.Add(-2 * time.Hour)

	testutil.SeedTag(t, tx, "it-T1", true)
	testutil.SeedTag(t, tx, "it-T2", true)
	testutil.SeedTag(t, tx, "it-T3", false)
	testutil.SeedTag(t, tx, "it-T4", true)
	testutil.SeedReadings(t, tx, "it-T1", 5, windowStart.Add(30*time.Minute))
	testutil.SeedReadings(t, tx, "it-T2", 12, windowStart)
	testutil.SeedReadings(t, tx, "it-T4", 2, windowStart)
	testutil.SeedOwnership(t, tx, "it-T1", "it-G1", "it-F1", "it-H1")
	testutil.SeedOwnership(t, tx, "it-T2", "it-G2", "it-F1", "it-H1")
	testutil.SeedOwnership(t, tx, "it-T3", "it-G3", "it-F2", "it-H2")
	testutil.SeedOwnership(t, tx, "it-T4", "it-G4", "it-F2", "it-H2")
	testutil.SeedAttendance(t, tx, "it-T4", 100)

	d, _ := newDetector(t, repo.NewTxRunner(tx))

	report, err := d.Run(ctx, 2)
	require.NoError(t, err)

	var ours []domain.AbsenceRow
	for _, row := range report.Rows {
		if row.TagID == "it-T1" || row.TagID == "it-T2" || row.TagID == "it-T3" || row.TagID == "it-T4" {
			ours = append(ours, row)
		}
	}
	assert.Equal(t, []domain.AbsenceRow{
		{TagID: "it-T1", Shortfall: 7, GoatID: "it-G1", FarmerID: "it-F1", HubID: "it-H1"},
		{TagID: "it-T4", Shortfall: 10, GoatID: "it-G4", FarmerID: "it-F2", HubID: "it-H2"},
	}, ours)

	attendance := repo.NewAttendanceRepo(tx)

	t1, err := attendance.Get(ctx, "it-T1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, t1.RedFlagCount, "first detection counts once")

	t4, err := attendance.Get(ctx, "it-T4")
	require.NoError(t, err)
	assert.EqualValues(t, 110, t4.RedFlagCount)

	_, err = attendance.Get(ctx, "it-T2")
	assert.ErrorIs(t, err, domain.ErrNotFound, "healthy tag gets no record")
	_, err = attendance.Get(ctx, "it-T3")
	assert.ErrorIs(t, err, domain.ErrNotFound, "inactive tag is excluded")
}
