package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/medalign-labs/conformance/pkg/docparse"
	"github.com/medalign-labs/conformance/pkg/observability"
	"github.com/medalign-labs/conformance/pkg/store"
	"github.com/medalign-labs/conformance/pkg/workitem"
)

const maxUploadBytes = 10 << 20

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requirements, err := s.items.ListRequirements(r.Context())
		if err != nil {
			WriteInternal(w, err)
			return
		}
		if requirements == nil {
			requirements = []workitem.Requirement{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"requirements": requirements})

	case http.MethodPost:
		var req workitem.Requirement
		if !readJSON(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		if err := s.items.PutRequirement(r.Context(), &req); err != nil {
			WriteInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)

	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) handleRequirementByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/requirements/")

	if id, ok := strings.CutSuffix(rest, "/generate-tests"); ok {
		s.handleGenerateTests(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		req, err := s.items.GetRequirement(r.Context(), rest)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteNotFound(w, "Requirement not found: "+rest)
				return
			}
			WriteInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	case http.MethodDelete:
		if err := s.items.DeleteRequirement(r.Context(), rest); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteNotFound(w, "Requirement not found: "+rest)
				return
			}
			WriteInternal(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		WriteMethodNotAllowed(w)
	}
}

// handleGenerateTests derives test cases for a stored requirement and
// persists them, each one linked back to the requirement.
func (s *Server) handleGenerateTests(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.extractor == nil {
		WriteServiceUnavailable(w, "Test generation requires a configured language model")
		return
	}

	ctx := r.Context()
	req, err := s.items.GetRequirement(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Requirement not found: "+id)
			return
		}
		WriteInternal(w, err)
		return
	}

	testCases, err := s.extractor.GenerateTestCases(ctx, *req)
	if err != nil {
		WriteInternal(w, fmt.Errorf("generate test cases for %s: %w", id, err))
		return
	}

	stored := make([]workitem.TestCase, 0, len(testCases))
	for i := range testCases {
		tc := testCases[i]
		if err := tc.Validate(); err != nil {
			s.logger.Warn("skipping generated test case", "requirement_id", id, "error", err)
			continue
		}
		if err := s.items.PutTestCase(ctx, &tc); err != nil {
			WriteInternal(w, err)
			return
		}
		link := &workitem.TraceLink{
			SourceType: workitem.NodeTestCase,
			SourceID:   tc.ID,
			TargetType: workitem.NodeRequirement,
			TargetID:   req.ID,
			LinkType:   workitem.LinkCovers,
		}
		if _, err := s.items.CreateLink(ctx, link); err != nil && !errors.Is(err, store.ErrDuplicate) {
			WriteInternal(w, err)
			return
		}
		stored = append(stored, tc)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"requirement_id": req.ID,
		"test_cases":     stored,
	})
}

// handleUpload ingests a requirements document: parse, extract, persist.
// Extraction uses the configured language model when available and falls
// back to section heuristics otherwise.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteBadRequest(w, "Missing multipart field: file")
		return
	}
	defer func() { _ = file.Close() }()

	if !docparse.IsSupported(header.Filename) {
		WriteUnsupportedMedia(w, fmt.Sprintf("Unsupported document format %q (supported: %s)",
			header.Filename, strings.Join(docparse.SupportedFormats(), ", ")))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	doc, err := docparse.ParseBytes(header.Filename, data)
	if err != nil {
		WriteBadRequest(w, "Failed to parse document: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.archive != nil {
		if _, err := s.archive.SaveDocument(ctx, data); err != nil {
			s.logger.Warn("document archive failed", "filename", header.Filename, "error", err)
		}
	}

	requirements := s.extractRequirements(w, r, doc.Content, header.Filename)
	if requirements == nil {
		return
	}

	stored := make([]workitem.Requirement, 0, len(requirements))
	for i := range requirements {
		req := requirements[i]
		if err := req.Validate(); err != nil {
			s.logger.Warn("skipping extracted requirement", "source", header.Filename, "error", err)
			continue
		}
		if err := s.items.PutRequirement(ctx, &req); err != nil {
			WriteInternal(w, err)
			return
		}
		stored = append(stored, req)
	}

	if s.obs != nil {
		s.obs.RecordAssessment(ctx, observability.UploadAttrs(doc.Format, len(stored))...)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"source_document": header.Filename,
		"format":          doc.Format,
		"requirements":    stored,
	})
}

// extractRequirements runs model extraction or the section fallback. A nil
// return means an error response was already written.
func (s *Server) extractRequirements(w http.ResponseWriter, r *http.Request, content, filename string) []workitem.Requirement {
	if s.extractor != nil {
		requirements, err := s.extractor.ExtractRequirements(r.Context(), content, filename)
		if err != nil {
			WriteInternal(w, fmt.Errorf("extract requirements from %s: %w", filename, err))
			return nil
		}
		return requirements
	}

	sections := docparse.ExtractSections(content)
	requirements := make([]workitem.Requirement, 0, len(sections))
	for _, section := range sections {
		title := workitem.TruncateTitle(section.Text, 80)
		requirements = append(requirements, workitem.Requirement{
			ID:             section.ID,
			Title:          strings.TrimSpace(title),
			Description:    section.Text,
			Type:           workitem.TypeFunctional,
			Priority:       workitem.PriorityMedium,
			SourceDocument: filename,
		})
	}
	return requirements
}

func (s *Server) handleTestCases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		testCases, err := s.items.ListTestCases(r.Context())
		if err != nil {
			WriteInternal(w, err)
			return
		}
		if testCases == nil {
			testCases = []workitem.TestCase{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"test_cases": testCases})

	case http.MethodPost:
		var tc workitem.TestCase
		if !readJSON(w, r, &tc) {
			return
		}
		if err := tc.Validate(); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		if err := s.items.PutTestCase(r.Context(), &tc); err != nil {
			WriteInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tc)

	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) handleTestCaseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/test-cases/")

	switch r.Method {
	case http.MethodGet:
		tc, err := s.items.GetTestCase(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteNotFound(w, "Test case not found: "+id)
				return
			}
			WriteInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tc)

	case http.MethodDelete:
		if err := s.items.DeleteTestCase(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteNotFound(w, "Test case not found: "+id)
				return
			}
			WriteInternal(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		WriteMethodNotAllowed(w)
	}
}
