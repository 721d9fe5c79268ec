// Package service contains the business logic of the goat attendance job.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// Services depend on repo interfaces and carry no SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/repo"
)

// Observer is notified once per finished run, successful or not.
// The metrics package provides the production implementation.
type Observer interface {
	ObserveRun(report domain.AbsenceReport, err error, elapsed time.Duration)
}

// AbsenceDetector finds active tags that under-reported telemetry within a
// rolling window, accrues their red-flag counters and reports them together
// with their goat, farmer and hub.
type AbsenceDetector struct {
	store    repo.TxRunner
	clock    quartz.Clock
	log      *slog.Logger
	location *time.Location
	observer Observer
}

// DetectorOption customizes an AbsenceDetector.
type DetectorOption func(*AbsenceDetector)

// WithClock sets the clock "now" is read from. Tests pass quartz.NewMock(t).
func WithClock(c quartz.Clock) DetectorOption {
	return func(d *AbsenceDetector) { d.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DetectorOption {
	return func(d *AbsenceDetector) { d.log = l }
}

// WithLocation sets the time zone window bounds are rendered in when logged.
// It has no effect on the bounds themselves.
func WithLocation(loc *time.Location) DetectorOption {
	return func(d *AbsenceDetector) { d.location = loc }
}

// WithObserver registers an Observer for finished runs.
func WithObserver(o Observer) DetectorOption {
	return func(d *AbsenceDetector) { d.observer = o }
}

// NewAbsenceDetector constructs an AbsenceDetector on an already-open store.
// The detector never opens or closes connections itself.
func NewAbsenceDetector(store repo.TxRunner, opts ...DetectorOption) *AbsenceDetector {
	d := &AbsenceDetector{
		store:    store,
		clock:    quartz.NewReal(),
		log:      slog.Default(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run inspects the last windowHours hours, records the shortfall of every
// absent active tag and returns the enriched report.
//
// All reads and writes happen in one transaction; any failure rolls the whole
// run back. A tag seen absent for the first time gets a record holding its
// shortfall; a tag that already has one is incremented by the shortfall. The
// two never both apply to the same tag in one run.
//
// Returns domain.ErrInvalidArgument for a non-positive window,
// domain.ErrConnection when the store is unreachable and domain.ErrQuery when
// a statement is rejected.
func (d *AbsenceDetector) Run(ctx context.Context, windowHours int) (domain.AbsenceReport, error) {
	started := d.clock.Now()

	report := domain.AbsenceReport{
		RunID:       uuid.New(),
		WindowHours: windowHours,
	}

	window, err := domain.NewWindow(started, windowHours)
	if err != nil {
		err = fmt.Errorf("service.AbsenceDetector.Run: %w", err)
		d.finish(report, err, started)
		return domain.AbsenceReport{}, err
	}
	report.Window = window
	report.ExpectedCount = domain.ExpectedCount(windowHours)

	d.log.InfoContext(ctx, "absence run started",
		"run_id", report.RunID,
		"window_hours", windowHours,
		"window_start", window.Start.In(d.location).Format(time.DateTime+" MST"),
		"expected_count", report.ExpectedCount,
	)

	err = d.store.InTx(ctx, func(r repo.AttendanceRepo) error {
		return d.detect(ctx, r, &report)
	})
	if err != nil {
		err = fmt.Errorf("service.AbsenceDetector.Run: %w", err)
		d.finish(report, err, started)
		return domain.AbsenceReport{}, err
	}

	d.finish(report, nil, started)
	return report, nil
}

// detect does the reads and writes of one run against a repo bound to the
// run's transaction.
func (d *AbsenceDetector) detect(ctx context.Context, r repo.AttendanceRepo, report *domain.AbsenceReport) error {
	tagIDs, err := r.ActiveTagIDs(ctx)
	if err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	counts, err := r.CountReadings(ctx, report.Window, tagIDs)
	if err != nil {
		return err
	}

	absences := domain.Classify(counts, report.ExpectedCount)
	if len(absences) == 0 {
		return nil
	}
	report.Absences = absences

	inserted, err := r.InsertFirstSeen(ctx, absences)
	if err != nil {
		return err
	}
	report.Inserted = len(inserted)

	incremented, err := r.IncrementRedFlags(ctx, domain.ExcludeTags(absences, inserted))
	if err != nil {
		return err
	}
	report.Incremented = int(incremented)

	absentIDs := domain.AbsenceTagIDs(absences)
	links, err := r.Ownership(ctx, absentIDs)
	if err != nil {
		return err
	}
	report.Rows = domain.JoinOwnership(absences, links)

	if unowned := unownedTags(absentIDs, links); len(unowned) > 0 {
		d.log.WarnContext(ctx, "absent tags without ownership link",
			"run_id", report.RunID,
			"tag_ids", unowned,
		)
	}
	return nil
}

func (d *AbsenceDetector) finish(report domain.AbsenceReport, err error, started time.Time) {
	elapsed := d.clock.Since(started)

	if err != nil {
		d.log.Error("absence run failed",
			"run_id", report.RunID,
			"window_hours", report.WindowHours,
			"error", err,
		)
	} else {
		d.log.Info("absence run completed",
			"run_id", report.RunID,
			"window_hours", report.WindowHours,
			"absent_tags", len(report.Absences),
			"inserted", report.Inserted,
			"incremented", report.Incremented,
			"rows", len(report.Rows),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if d.observer != nil {
		d.observer.ObserveRun(report, err, elapsed)
	}
}

func unownedTags(tagIDs []string, links []domain.OwnershipLink) []string {
	owned := make(map[string]struct{}, len(links))
	for _, l := range links {
		owned[l.TagID] = struct{}{}
	}
	var out []string
	for _, id := range tagIDs {
		if _, ok := owned[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Attendance returns the accrued red-flag count of one tag.
// Returns domain.ErrNotFound when the tag has never been absent.
func (d *AbsenceDetector) Attendance(ctx context.Context, tagID string) (domain.AttendanceRecord, error) {
	var rec domain.AttendanceRecord
	err := d.store.InTx(ctx, func(r repo.AttendanceRepo) error {
		var err error
		rec, err = r.Get(ctx, tagID)
		return err
	})
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("service.AbsenceDetector.Attendance: %w", err)
	}
	return rec, nil
}

// ListAttendance returns one page of attendance records, most red flags first.
func (d *AbsenceDetector) ListAttendance(ctx context.Context, p domain.PageRequest) (domain.AttendancePage, error) {
	page := domain.AttendancePage{Page: p.Page, Limit: p.Limit}
	err := d.store.InTx(ctx, func(r repo.AttendanceRepo) error {
		var err error
		page.Records, page.Total, err = r.List(ctx, p)
		return err
	})
	if err != nil {
		return domain.AttendancePage{}, fmt.Errorf("service.AbsenceDetector.ListAttendance: %w", err)
	}
	return page, nil
}
