package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/medalign-labs/conformance/pkg/compliance"
	"github.com/medalign-labs/conformance/pkg/extract"
	"github.com/medalign-labs/conformance/pkg/store"
	"github.com/medalign-labs/conformance/pkg/workitem"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteWorkItemStore) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	items, err := store.NewSQLiteWorkItemStore(db)
	require.NoError(t, err)

	engine := compliance.NewEngine(compliance.MustCatalog())
	srv := NewServer(ServerConfig{
		Engine:    engine,
		Generator: compliance.NewReportGenerator(engine),
		Items:     items,
	})
	return srv, items
}

func hipaaRequirement(id string) *workitem.Requirement {
	return &workitem.Requirement{
		ID:          id,
		Title:       "Audit trail for patient records",
		Description: "The system shall maintain an audit trail of all access to patient health information, protected by access control and encryption.",
		Type:        workitem.TypeRegulatory,
		Priority:    workitem.PriorityHigh,
		RegulatoryStandards: []string{"HIPAA"},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStandardsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/compliance/standards", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Standards []compliance.StandardInfo `json:"supported_standards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Standards))
	for _, s := range body.Standards {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "HIPAA")
	assert.Contains(t, names, "GDPR")
}

func TestRequirementCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	req := hipaaRequirement("REQ-001")
	w := doRequest(t, srv, "POST", "/requirements", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(t, srv, "GET", "/requirements/REQ-001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got workitem.Requirement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, req.Title, got.Title)

	w = doRequest(t, srv, "GET", "/requirements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Requirements []workitem.Requirement `json:"requirements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Requirements, 1)

	w = doRequest(t, srv, "DELETE", "/requirements/REQ-001", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, srv, "GET", "/requirements/REQ-001", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRequirement_RejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	req := hipaaRequirement("REQ-001")
	req.Priority = "urgent"
	w := doRequest(t, srv, "POST", "/requirements", req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "invalid priority")
}

func TestAssessRequirement(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, srv, "POST", "/compliance/assess-requirement/REQ-001", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		EntityID string              `json:"entity_id"`
		Results  []compliance.Result `json:"compliance_results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "REQ-001", body.EntityID)
	require.NotEmpty(t, body.Results)
	for _, res := range body.Results {
		assert.NotEqual(t, compliance.LevelUnknown, res.ComplianceLevel)
	}
}

func TestAssessRequirement_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "POST", "/compliance/assess-requirement/REQ-404", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateReport(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	tc := &workitem.TestCase{
		ID:              "TC-001",
		Title:           "Verify audit trail entries",
		Description:     "Verify that access to patient data is recorded in the audit trail.",
		TestSteps:       []string{"Log in as clinician", "Open a patient record", "Verify the expected result appears in the audit log"},
		ExpectedResults: "An audit entry with user, timestamp and record id",
		Priority:        workitem.PriorityHigh,
		ComplianceTags:  []string{"HIPAA"},
		RequirementID:   "REQ-001",
	}
	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/test-cases", tc).Code)

	w := doRequest(t, srv, "POST", "/compliance/generate-report", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report compliance.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.NotEmpty(t, report.ReportID)
	assert.True(t, strings.HasPrefix(report.ContentHash, "sha256:"))
	assert.Equal(t, 1, report.Summary.TotalRequirements)
	assert.Equal(t, 1, report.Summary.TotalTestCases)
	assert.Len(t, report.RequirementCompliance, 1)
}

func TestValidateCoverage_RequiresStandard(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "POST", "/compliance/validate-coverage", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateCoverage(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	w := doRequest(t, srv, "POST", "/compliance/validate-coverage", map[string]any{"standard": "HIPAA"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var coverage compliance.CoverageReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &coverage))
	assert.Equal(t, "HIPAA", coverage.Standard)
}

func TestTraceLinks(t *testing.T) {
	srv, _ := newTestServer(t)

	link := map[string]any{
		"source_type": workitem.NodeTestCase,
		"source_id":   "TC-001",
		"target_type": workitem.NodeRequirement,
		"target_id":   "REQ-001",
		"link_type":   workitem.LinkCovers,
	}
	w := doRequest(t, srv, "POST", "/traceability/links", link)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Duplicate link is a conflict.
	w = doRequest(t, srv, "POST", "/traceability/links", link)
	require.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, srv, "GET", "/traceability/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Links []workitem.TraceLink `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Links, 1)

	w = doRequest(t, srv, "DELETE", "/traceability/links/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestTraceabilityMatrix(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	w := doRequest(t, srv, "GET", "/traceability/matrix", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var matrix workitem.Matrix
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matrix))
	require.Len(t, matrix.Requirements, 1)
	assert.Equal(t, "REQ-001", matrix.Requirements[0].RequirementID)
	assert.Equal(t, 1, matrix.Coverage.OrphanedRequirements)
}

func TestUploadDocument_SectionFallback(t *testing.T) {
	srv, _ := newTestServer(t)

	content := "REQ-001 The system shall encrypt patient data at rest using AES-256.\n" +
		"REQ-002 The system shall enforce role-based access control for all clinical endpoints.\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "requirements.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/requirements/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		SourceDocument string                 `json:"source_document"`
		Requirements   []workitem.Requirement `json:"requirements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "requirements.txt", body.SourceDocument)
	require.Len(t, body.Requirements, 2)
	assert.Equal(t, "REQ-001", body.Requirements[0].ID)
	assert.Equal(t, "requirements.txt", body.Requirements[0].SourceDocument)
}

func TestUploadDocument_MultiByteTitleStaysValidUTF8(t *testing.T) {
	srv, _ := newTestServer(t)

	content := "REQ-001 Das System muss Patientendaten gemäß Datenschutzgrundverordnung verschlüsseln, prüfen und archivieren können.\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "anforderungen.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/requirements/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Requirements []workitem.Requirement `json:"requirements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Requirements, 1)
	title := body.Requirements[0].Title
	assert.True(t, utf8.ValidString(title), "title must not be cut mid-rune: %q", title)
	assert.LessOrEqual(t, utf8.RuneCountInString(title), 80)
}

func TestUploadDocument_UnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "requirements.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/requirements/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestGenerateTests_WithoutExtractor(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	w := doRequest(t, srv, "POST", "/requirements/REQ-001/generate-tests", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReports_WithoutPersistence(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/reports", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestALM_WithoutConfigStore(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/alm/configs", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "DELETE", "/compliance/standards", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestALMPlatforms(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "GET", "/alm/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Platforms []string `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Platforms, "jira")
}

func TestTraceLinks_FilterByItem(t *testing.T) {
	srv, _ := newTestServer(t)

	link := map[string]any{
		"source_type": workitem.NodeTestCase,
		"source_id":   "TC-001",
		"target_type": workitem.NodeRequirement,
		"target_id":   "REQ-001",
		"link_type":   workitem.LinkCovers,
	}
	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/traceability/links", link).Code)

	w := doRequest(t, srv, "GET", "/traceability/links?item_type=requirement&item_id=REQ-001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Links []workitem.TraceLink `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Links, 1)

	w = doRequest(t, srv, "GET", "/traceability/links?item_type=requirement&item_id=REQ-999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list.Links = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Empty(t, list.Links)

	w = doRequest(t, srv, "GET", "/traceability/links?item_type=requirement", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeStandards_WithoutExtractor(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	w := doRequest(t, srv, "POST", "/compliance/analyze-standards/REQ-001", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAnalyzeStandards(t *testing.T) {
	srv, _ := newTestServer(t)

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"applicable_standards":["HIPAA"],"compliance_considerations":["Audit PHI access"],"risk_level":"high","required_documentation":["Audit policy"],"testing_implications":["Verify log entries"]}`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer model.Close()
	srv.extractor = extract.NewClient("test-key", "test-model").WithBaseURL(model.URL)

	require.Equal(t, http.StatusCreated,
		doRequest(t, srv, "POST", "/requirements", hipaaRequirement("REQ-001")).Code)

	w := doRequest(t, srv, "POST", "/compliance/analyze-standards/REQ-001", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		RequirementID string                     `json:"requirement_id"`
		Analysis      *extract.StandardsAnalysis `json:"compliance_analysis"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "REQ-001", body.RequirementID)
	require.NotNil(t, body.Analysis)
	assert.Equal(t, []string{"HIPAA"}, body.Analysis.ApplicableStandards)
	assert.Equal(t, "high", body.Analysis.RiskLevel)

	w = doRequest(t, srv, "POST", "/compliance/analyze-standards/REQ-404", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
