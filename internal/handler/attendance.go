package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// AttendanceResponse is the body of GET /attendance/{tagID}.
type AttendanceResponse struct {
	TagID        string `json:"tag_id"`
	RedFlagCount int64  `json:"red_flag_count"`
}

// GetAttendance handles GET /attendance/{tagID}.
func (s *Server) GetAttendance(w http.ResponseWriter, r *http.Request) {
	tagID := chi.URLParam(r, "tagID")

	rec, err := s.detector.Attendance(r.Context(), tagID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, notFoundBody("no attendance record for tag "+tagID))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceResponse{TagID: rec.TagID, RedFlagCount: rec.RedFlagCount})
}

// AttendanceListResponse is the body of GET /attendance.
type AttendanceListResponse struct {
	Data       []AttendanceResponse `json:"data"`
	Pagination PaginationMeta       `json:"pagination"`
}

// PaginationMeta describes the returned page.
type PaginationMeta struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// ListAttendance handles GET /attendance?page=&limit=.
// Records are ordered by red-flag count, highest first.
func (s *Server) ListAttendance(w http.ResponseWriter, r *http.Request) {
	page, ok := intParam(w, r, "page")
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}

	result, err := s.detector.ListAttendance(r.Context(), domain.NewPageRequest(page, limit))
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]AttendanceResponse, 0, len(result.Records))
	for _, rec := range result.Records {
		data = append(data, AttendanceResponse{TagID: rec.TagID, RedFlagCount: rec.RedFlagCount})
	}
	writeJSON(w, http.StatusOK, AttendanceListResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:    result.Page,
			Limit:   result.Limit,
			Total:   result.Total,
			HasMore: result.HasMore(),
		},
	})
}

// intParam reads an optional integer query parameter. An absent parameter
// yields 0. A malformed one writes a 422 and returns ok=false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(name+" must be an integer"))
		return 0, false
	}
	return n, true
}
