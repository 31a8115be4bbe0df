package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/medalign-labs/conformance/pkg/store"
)

const defaultReportListLimit = 50

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	if s.reports == nil {
		WriteServiceUnavailable(w, "Report persistence is not configured")
		return
	}

	limit := defaultReportListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "Invalid limit: "+raw)
			return
		}
		limit = n
	}

	refs, err := s.reports.List(r.Context(), limit)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	if refs == nil {
		refs = []store.ReportRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": refs})
}

func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	if s.reports == nil {
		WriteServiceUnavailable(w, "Report persistence is not configured")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Report not found: "+id)
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
