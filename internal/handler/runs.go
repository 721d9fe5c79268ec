package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/pkordes/goat-attendance/internal/report"
)

// PostRun handles POST /runs.
// It runs the detector once and returns the report in the requested format:
// ?format=text (default), json or csv. ?window_hours overrides the configured
// window.
func (s *Server) PostRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hours := s.windowHours
	if q.Has("window_hours") {
		n, ok := intParam(w, r, "window_hours")
		if !ok {
			return
		}
		hours = n
	}

	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := s.detector.Run(r.Context(), hours)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch format {
	case report.FormatJSON:
		writeJSON(w, http.StatusOK, report.JSON(rep))
	case report.FormatCSV:
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, rep); err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Text(rep)))
	}
}
