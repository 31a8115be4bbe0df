package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/medalign-labs/conformance/pkg/compliance"
	"github.com/medalign-labs/conformance/pkg/observability"
	"github.com/medalign-labs/conformance/pkg/store"
)

// handleStandards serves the supported standards catalog.
func (s *Server) handleStandards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"supported_standards": s.engine.Catalog().StandardsInfo(),
	})
}

type assessmentResponse struct {
	EntityID string              `json:"entity_id"`
	Results  []compliance.Result `json:"compliance_results"`
}

func (s *Server) handleAssessRequirement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/compliance/assess-requirement/")
	if id == "" {
		WriteBadRequest(w, "Missing requirement id")
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

	if s.obs != nil {
		_, finish := s.obs.TrackAssessment(ctx, "assess.requirement",
			observability.AttrItemID.String(id))
		defer finish(nil)
	}

	results := s.engine.AssessRequirement(req.Entity())
	writeJSON(w, http.StatusOK, assessmentResponse{EntityID: id, Results: results})
}

func (s *Server) handleAssessTestCase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/compliance/assess-test-case/")
	if id == "" {
		WriteBadRequest(w, "Missing test case id")
		return
	}

	ctx := r.Context()
	tc, err := s.items.GetTestCase(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Test case not found: "+id)
			return
		}
		WriteInternal(w, err)
		return
	}

	// The linked requirement is optional context; a dangling reference is
	// treated the same as no reference.
	var related *compliance.Entity
	if tc.RequirementID != "" {
		if req, err := s.items.GetRequirement(ctx, tc.RequirementID); err == nil {
			entity := req.Entity()
			related = &entity
		}
	}

	if s.obs != nil {
		_, finish := s.obs.TrackAssessment(ctx, "assess.test_case",
			observability.AttrItemID.String(id))
		defer finish(nil)
	}

	results := s.engine.AssessTestCase(tc.Entity(), related)
	writeJSON(w, http.StatusOK, assessmentResponse{EntityID: id, Results: results})
}

// handleAnalyzeStandards asks the configured language model which standards
// apply to a stored requirement. Distinct from the rule-based assessment;
// the output is advisory and never feeds scoring.
func (s *Server) handleAnalyzeStandards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.extractor == nil {
		WriteServiceUnavailable(w, "Standards analysis requires a configured language model")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/compliance/analyze-standards/")
	if id == "" {
		WriteBadRequest(w, "Missing requirement id")
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

	analysis, err := s.extractor.AnalyzeStandards(ctx, req.Description)
	if err != nil {
		WriteInternal(w, fmt.Errorf("analyze standards for %s: %w", id, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requirement_id":      id,
		"compliance_analysis": analysis,
	})
}

type generateReportRequest struct {
	RequirementIDs []string `json:"requirement_ids"`
	TestCaseIDs    []string `json:"test_case_ids"`
	Standards      []string `json:"standards"`
}

// handleGenerateReport assembles inputs, runs the batch assessment and
// archives the resulting report when an archive is configured. Empty id
// lists mean "everything in the store".
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req generateReportRequest
	if !readJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	reqInputs, tcInputs, err := s.collectInputs(r, req.RequirementIDs, req.TestCaseIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, err.Error())
			return
		}
		WriteInternal(w, err)
		return
	}

	report := s.generator.Generate(reqInputs, tcInputs)
	if len(req.Standards) > 0 {
		report = report.FilterByStandards(req.Standards)
	}

	if s.obs != nil {
		s.obs.RecordAssessment(ctx, observability.ReportAttrs(report.ReportID,
			len(report.RequirementCompliance), len(report.TestCaseCompliance))...)
	}

	// Archival is best effort; the caller still gets the report.
	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			s.logger.Warn("report archive save failed", "report_id", report.ReportID, "error", err)
		}
	}
	if s.archive != nil {
		if _, err := s.archive.SaveReport(ctx, report); err != nil {
			s.logger.Warn("report blob archive failed", "report_id", report.ReportID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

type validateCoverageRequest struct {
	Standard string `json:"standard"`
}

func (s *Server) handleValidateCoverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	var req validateCoverageRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Standard == "" {
		WriteBadRequest(w, "Missing required field: standard")
		return
	}

	reqInputs, tcInputs, err := s.collectInputs(r, nil, nil)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.ValidateCoverage(req.Standard, reqInputs, tcInputs))
}

// collectInputs loads the named work items, or every stored item when the id
// lists are empty, and adapts them to assessment inputs.
func (s *Server) collectInputs(r *http.Request, requirementIDs, testCaseIDs []string) ([]compliance.RequirementInput, []compliance.TestCaseInput, error) {
	ctx := r.Context()

	var reqInputs []compliance.RequirementInput
	if len(requirementIDs) == 0 {
		all, err := s.items.ListRequirements(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, req := range all {
			reqInputs = append(reqInputs, compliance.RequirementInput{ID: req.ID, Entity: req.Entity()})
		}
	} else {
		for _, id := range requirementIDs {
			req, err := s.items.GetRequirement(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			reqInputs = append(reqInputs, compliance.RequirementInput{ID: req.ID, Entity: req.Entity()})
		}
	}

	var tcInputs []compliance.TestCaseInput
	if len(testCaseIDs) == 0 {
		all, err := s.items.ListTestCases(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, tc := range all {
			tcInputs = append(tcInputs, compliance.TestCaseInput{
				ID: tc.ID, RequirementRef: tc.RequirementID, Entity: tc.Entity(),
			})
		}
	} else {
		for _, id := range testCaseIDs {
			tc, err := s.items.GetTestCase(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			tcInputs = append(tcInputs, compliance.TestCaseInput{
				ID: tc.ID, RequirementRef: tc.RequirementID, Entity: tc.Entity(),
			})
		}
	}

	return reqInputs, tcInputs, nil
}
