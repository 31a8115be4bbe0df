package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/medalign-labs/conformance/pkg/store"
	"github.com/medalign-labs/conformance/pkg/workitem"
)

// handleMatrix serves the full traceability matrix.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	ctx := r.Context()

	requirements, err := s.items.ListRequirements(ctx)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	testCases, err := s.items.ListTestCases(ctx)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	links, err := s.items.ListLinks(ctx)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, workitem.BuildMatrix(requirements, testCases, links))
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			links []workitem.TraceLink
			err   error
		)
		itemType := r.URL.Query().Get("item_type")
		itemID := r.URL.Query().Get("item_id")
		if itemType != "" || itemID != "" {
			if itemType == "" || itemID == "" {
				WriteBadRequest(w, "item_type and item_id must be provided together")
				return
			}
			links, err = s.items.ListLinksForItem(r.Context(), itemType, itemID)
		} else {
			links, err = s.items.ListLinks(r.Context())
		}
		if err != nil {
			WriteInternal(w, err)
			return
		}
		if links == nil {
			links = []workitem.TraceLink{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"links": links})

	case http.MethodPost:
		var link workitem.TraceLink
		if !readJSON(w, r, &link) {
			return
		}
		stored, err := s.items.CreateLink(r.Context(), &link)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicate):
				WriteConflict(w, "An identical trace link already exists")
			case strings.HasPrefix(err.Error(), "trace link:"):
				WriteBadRequest(w, err.Error())
			default:
				WriteInternal(w, err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, stored)

	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) handleLinkByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteMethodNotAllowed(w)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/traceability/links/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		WriteBadRequest(w, "Invalid link id: "+raw)
		return
	}

	if err := s.items.DeleteLink(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Trace link not found: "+raw)
			return
		}
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
