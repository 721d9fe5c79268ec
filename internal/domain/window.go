// Package domain contains the core data types for the goat attendance job.
// This package has no database or transport dependencies and is imported by
// every other internal package (repo, service, report, handler).
package domain

import (
	"fmt"
	"time"
)

// NominalReadingsPerHour is the reporting rate of a healthy tag: one vital
// reading every ten minutes.
const NominalReadingsPerHour = 6

// MaxWindowHours bounds a window to one leap year. Longer windows would push
// Start past the range of time.Duration and silently flag every tag.
const MaxWindowHours = 366 * 24

// Window is the half-open interval [Start, End) a run inspects.
// One Window is computed per run and shared by every query of that run so the
// insert, the increment and the report can never disagree on which tags are absent.
type Window struct {
	Start time.Time
	End   time.Time
}

// ValidateWindowHours returns ErrInvalidArgument unless 0 < hours <= MaxWindowHours.
func ValidateWindowHours(hours int) error {
	if hours <= 0 {
		return fmt.Errorf("%w: window hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	if hours > MaxWindowHours {
		return fmt.Errorf("%w: window hours must be at most %d, got %d", ErrInvalidArgument, MaxWindowHours, hours)
	}
	return nil
}

// NewWindow returns the window of the given length ending at now.
// Returns ErrInvalidArgument if hours fails ValidateWindowHours.
func NewWindow(now time.Time, hours int) (Window, error) {
	if err := ValidateWindowHours(hours); err != nil {
		return Window{}, err
	}
	return Window{
		Start: now.Add(-time.Duration(hours) * time.Hour),
		End:   now,
	}, nil
}

// Contains reports whether t falls inside the window (Start inclusive, End exclusive).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ExpectedCount returns how many readings an active tag should have produced
// during a window of the given length. Callers validate hours first, which
// keeps the product well inside int.
func ExpectedCount(hours int) int {
	return NominalReadingsPerHour * hours
}
