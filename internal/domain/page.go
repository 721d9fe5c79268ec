package domain

// PageRequest carries page/limit values from the HTTP and CLI layers to the repo layer.
// Page is 1-indexed.
type PageRequest struct {
	Page  int
	Limit int
}

// Page size bounds for attendance listings.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	MaxPage          = 1_000_000
)

// NewPageRequest builds a PageRequest. Non-positive values fall back to
// page 1 and DefaultPageLimit; the limit is capped at MaxPageLimit and the
// page at MaxPage so Offset cannot overflow.
func NewPageRequest(page, limit int) PageRequest {
	p := PageRequest{Page: 1, Limit: DefaultPageLimit}
	if page >= 1 {
		p.Page = min(page, MaxPage)
	}
	if limit >= 1 {
		p.Limit = min(limit, MaxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// AttendancePage is one page of attendance records ordered by red-flag count,
// highest first.
type AttendancePage struct {
	Records []AttendanceRecord
	Total   int64
	Page    int
	Limit   int
}

// HasMore reports whether records exist beyond this page.
func (p AttendancePage) HasMore() bool {
	return int64(p.Page)*int64(p.Limit) < p.Total
}
