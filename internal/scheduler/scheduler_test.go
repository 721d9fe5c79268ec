package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockRunner is a hand-written test double for scheduler.Runner.
type mockRunner struct {
	run func(ctx context.Context, windowHours int) (domain.AbsenceReport, error)
}

func (m *mockRunner) Run(ctx context.Context, windowHours int) (domain.AbsenceReport, error) {
	return m.run(ctx, windowHours)
}

var _ scheduler.Runner = (*mockRunner)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneRowReport() domain.AbsenceReport {
	return domain.AbsenceReport{
		RunID:       uuid.New(),
		WindowHours: 2,
		Absences:    []domain.Absence{{TagID: "T1", Observed: 5, Shortfall: 7}},
		Rows:        []domain.AbsenceRow{{TagID: "T1", Shortfall: 7, GoatID: "G1", FarmerID: "F1", HubID: "H1"}},
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := scheduler.New("every now and then", &mockRunner{}, 2)

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNew_InvalidWindow(t *testing.T) {
	for _, hours := range []int{0, domain.MaxWindowHours + 1} {
		_, err := scheduler.New("@every 2h", &mockRunner{}, hours)

		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "hours=%d", hours)
	}
}

func TestNew_AcceptsCronAndDescriptors(t *testing.T) {
	for _, spec := range []string{"@every 2h", "@hourly", "0 */2 * * *", "CRON_TZ=Asia/Kolkata 30 6 * * *"} {
		t.Run(spec, func(t *testing.T) {
			s, err := scheduler.New(spec, &mockRunner{}, 2, scheduler.WithLogger(discardLogger()))
			require.NoError(t, err)
			require.NoError(t, s.Stop(context.Background()))
		})
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	clock := quartz.NewMock(t)
	want := oneRowReport()
	var gotHours int
	runner := &mockRunner{
		run: func(_ context.Context, windowHours int) (domain.AbsenceReport, error) {
			gotHours = windowHours
			clock.Advance(3 * time.Second)
			return want, nil
		},
	}
	s, err := scheduler.New("@every 2h", runner, 4,
		scheduler.WithClock(clock),
		scheduler.WithLogger(discardLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	stats := s.RunOnce(context.Background())

	assert.Equal(t, 4, gotHours)
	assert.Equal(t, want.RunID, stats.RunID)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 3*time.Second, stats.Elapsed)
	assert.NoError(t, stats.Error)
}

func TestScheduler_RunOnce_Error(t *testing.T) {
	runErr := fmt.Errorf("boom: %w", domain.ErrConnection)
	runner := &mockRunner{
		run: func(context.Context, int) (domain.AbsenceReport, error) {
			return domain.AbsenceReport{}, runErr
		},
	}
	statsCh := make(chan scheduler.Stats, 1)
	s, err := scheduler.New("@every 2h", runner, 2,
		scheduler.WithLogger(discardLogger()),
		scheduler.WithStatsChannel(statsCh),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	stats := s.RunOnce(context.Background())

	assert.ErrorIs(t, stats.Error, domain.ErrConnection)
	assert.Zero(t, stats.Rows)
	assert.Equal(t, stats, <-statsCh, "stats are published")
}

func TestScheduler_StartFiresOnSchedule(t *testing.T) {
	var runs atomic.Int32
	runner := &mockRunner{
		run: func(context.Context, int) (domain.AbsenceReport, error) {
			runs.Add(1)
			return oneRowReport(), nil
		},
	}
	statsCh := make(chan scheduler.Stats, 8)
	s, err := scheduler.New("@every 1s", runner, 2,
		scheduler.WithLogger(discardLogger()),
		scheduler.WithStatsChannel(statsCh),
	)
	require.NoError(t, err)

	s.Start()

	select {
	case stats := <-statsCh:
		assert.NoError(t, stats.Error)
		assert.Equal(t, 1, stats.Rows)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not fire")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	started := make(chan struct{})
	var runErr atomic.Value
	runner := &mockRunner{
		run: func(ctx context.Context, _ int) (domain.AbsenceReport, error) {
			close(started)
			<-ctx.Done()
			runErr.Store(ctx.Err())
			return domain.AbsenceReport{}, ctx.Err()
		},
	}
	s, err := scheduler.New("@every 1s", runner, 2, scheduler.WithLogger(discardLogger()))
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not fire")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Stop(stopCtx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	got, _ := runErr.Load().(error)
	assert.True(t, errors.Is(got, context.Canceled), "run context is cancelled on forced stop")
}
