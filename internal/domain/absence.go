package domain

import (
	"sort"

	"github.com/google/uuid"
)

// TagCount is the number of readings an active tag produced inside a window.
type TagCount struct {
	TagID    string
	Observed int
}

// Absence is an active tag that under-reported during a window.
// Shortfall is always Expected - Observed and therefore at least 1.
type Absence struct {
	TagID     string
	Observed  int
	Shortfall int
}

// Classify returns the tags whose observed count is strictly below expected,
// in the order they appear in counts.
// Tags at or above expected are not absent and are dropped.
func Classify(counts []TagCount, expected int) []Absence {
	var out []Absence
	for _, c := range counts {
		if c.Observed >= expected {
			continue
		}
		out = append(out, Absence{
			TagID:     c.TagID,
			Observed:  c.Observed,
			Shortfall: expected - c.Observed,
		})
	}
	return out
}

// AbsenceTagIDs returns the tag IDs of absences, preserving order.
func AbsenceTagIDs(absences []Absence) []string {
	ids := make([]string, 0, len(absences))
	for _, a := range absences {
		ids = append(ids, a.TagID)
	}
	return ids
}

// ExcludeTags returns the absences whose tag ID is not in skip.
func ExcludeTags(absences []Absence, skip []string) []Absence {
	if len(skip) == 0 {
		return absences
	}
	set := make(map[string]struct{}, len(skip))
	for _, id := range skip {
		set[id] = struct{}{}
	}
	var out []Absence
	for _, a := range absences {
		if _, ok := set[a.TagID]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// AbsenceRow is one line of the warning report: an absent tag together with
// the goat, farmer and hub it belongs to.
type AbsenceRow struct {
	TagID     string
	Shortfall int
	GoatID    string
	FarmerID  string
	HubID     string
}

// JoinOwnership pairs every absence with each ownership link of its tag.
// An absence without any link produces no row; a tag linked to several goats
// produces one row per link. Rows are sorted by tag ID, then goat ID.
func JoinOwnership(absences []Absence, links []OwnershipLink) []AbsenceRow {
	byTag := make(map[string][]OwnershipLink, len(links))
	for _, l := range links {
		byTag[l.TagID] = append(byTag[l.TagID], l)
	}

	var rows []AbsenceRow
	for _, a := range absences {
		for _, l := range byTag[a.TagID] {
			rows = append(rows, AbsenceRow{
				TagID:     a.TagID,
				Shortfall: a.Shortfall,
				GoatID:    l.GoatID,
				FarmerID:  l.FarmerID,
				HubID:     l.HubID,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TagID != rows[j].TagID {
			return rows[i].TagID < rows[j].TagID
		}
		return rows[i].GoatID < rows[j].GoatID
	})
	return rows
}

// AbsenceReport is the structured result of one detection run.
// An empty Rows slice is a valid, successful outcome.
type AbsenceReport struct {
	RunID         uuid.UUID
	WindowHours   int
	Window        Window
	ExpectedCount int

	// Absences lists every absent tag, including those without an ownership link.
	Absences []Absence
	// Rows is the ownership-enriched view used for the warning message.
	Rows []AbsenceRow

	// Inserted is the number of attendance records created this run.
	Inserted int
	// Incremented is the number of existing attendance records bumped this run.
	Incremented int
}

// Empty reports whether no tag was absent during the run.
func (r AbsenceReport) Empty() bool {
	return len(r.Absences) == 0
}

// Unlinked returns the absent tags that produced no row because no goat is
// linked to them. Their red flags were still accrued.
func (r AbsenceReport) Unlinked() []Absence {
	linked := make(map[string]bool, len(r.Rows))
	for _, row := range r.Rows {
		linked[row.TagID] = true
	}
	var out []Absence
	for _, a := range r.Absences {
		if !linked[a.TagID] {
			out = append(out, a)
		}
	}
	return out
}

// RedFlagsAccrued returns the total shortfall added to attendance records this run.
func (r AbsenceReport) RedFlagsAccrued() int {
	total := 0
	for _, a := range r.Absences {
		total += a.Shortfall
	}
	return total
}
