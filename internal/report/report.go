// Package report renders an AbsenceReport for people and for machines.
// It holds no decision logic: what is absent has already been decided by the
// detector.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// Format names an output encoding accepted by the CLI and the HTTP trigger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat returns the Format for s. An empty string selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidArgument, s)
	}
}

// Header returns the first line of a non-empty warning message.
func Header(windowHours int) string {
	return fmt.Sprintf("The following tags have been missing for the specified number of times in the last %d hours:", windowHours)
}

// NoneMessage is the whole warning message when no tag is absent.
func NoneMessage(windowHours int) string {
	return fmt.Sprintf("No absent tags found in the last %d hours.", windowHours)
}

// Line renders one absence row of the warning message.
func Line(row domain.AbsenceRow) string {
	return fmt.Sprintf("Tag ID: %s, Absent Count: %d, Goat ID: %s, Farmer ID: %s, Hub ID: %s",
		row.TagID, row.Shortfall, row.GoatID, row.FarmerID, row.HubID)
}

// UnlinkedLine renders an absent tag that no goat is linked to.
func UnlinkedLine(a domain.Absence) string {
	return fmt.Sprintf("Tag ID: %s, Absent Count: %d, no ownership link", a.TagID, a.Shortfall)
}

// Lines returns the body of a non-empty warning message: one line per row,
// then one per unlinked absent tag.
func Lines(r domain.AbsenceReport) []string {
	unlinked := r.Unlinked()
	lines := make([]string, 0, len(r.Rows)+len(unlinked))
	for _, row := range r.Rows {
		lines = append(lines, Line(row))
	}
	for _, a := range unlinked {
		lines = append(lines, UnlinkedLine(a))
	}
	return lines
}

// Text renders the human-readable warning message: a header naming the
// window followed by the report lines, or a single "no tags" sentence.
func Text(r domain.AbsenceReport) string {
	if r.Empty() {
		return NoneMessage(r.WindowHours)
	}

	var b strings.Builder
	b.WriteString(Header(r.WindowHours))
	b.WriteByte('\n')
	for _, line := range Lines(r) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Document is the JSON view of an AbsenceReport.
type Document struct {
	RunID         string    `json:"run_id"`
	WindowHours   int       `json:"window_hours"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	ExpectedCount int       `json:"expected_count"`
	AbsentTags    int       `json:"absent_tags"`
	Rows          []Row     `json:"rows"`
	UnlinkedTags  []string  `json:"unlinked_tags"`
	Message       string    `json:"message"`
}

// Row is the JSON view of an AbsenceRow.
type Row struct {
	TagID       string `json:"tag_id"`
	AbsentCount int    `json:"absent_count"`
	GoatID      string `json:"goat_id"`
	FarmerID    string `json:"farmer_id"`
	HubID       string `json:"hub_id"`
}

// JSON converts r to its JSON document. Rows and UnlinkedTags are never nil
// so an empty report encodes them as [].
func JSON(r domain.AbsenceReport) Document {
	unlinked := make([]string, 0)
	for _, a := range r.Unlinked() {
		unlinked = append(unlinked, a.TagID)
	}
	rows := make([]Row, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, Row{
			TagID:       row.TagID,
			AbsentCount: row.Shortfall,
			GoatID:      row.GoatID,
			FarmerID:    row.FarmerID,
			HubID:       row.HubID,
		})
	}
	return Document{
		RunID:         r.RunID.String(),
		WindowHours:   r.WindowHours,
		WindowStart:   r.Window.Start.UTC(),
		WindowEnd:     r.Window.End.UTC(),
		ExpectedCount: r.ExpectedCount,
		AbsentTags:    len(r.Absences),
		Rows:          rows,
		UnlinkedTags:  unlinked,
		Message:       strings.TrimSuffix(Text(r), "\n"),
	}
}

// csvHeaders defines the column names written as the first row of a CSV report.
var csvHeaders = []string{"tag_id", "absent_count", "goat_id", "farmer_id", "hub_id"}

// WriteCSV writes the report rows as CSV, header first. Unlinked absent tags
// follow with empty ownership columns. An empty report produces the header only.
func WriteCSV(w io.Writer, r domain.AbsenceReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("report.WriteCSV: header: %w", err)
	}
	for _, row := range r.Rows {
		rec := []string{row.TagID, strconv.Itoa(row.Shortfall), row.GoatID, row.FarmerID, row.HubID}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report.WriteCSV: row %s: %w", row.TagID, err)
		}
	}
	for _, a := range r.Unlinked() {
		if err := cw.Write([]string{a.TagID, strconv.Itoa(a.Shortfall), "", "", ""}); err != nil {
			return fmt.Errorf("report.WriteCSV: row %s: %w", a.TagID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report.WriteCSV: flush: %w", err)
	}
	return nil
}
