package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/medalign-labs/conformance/pkg/alm"
	"github.com/medalign-labs/conformance/pkg/artifacts"
	"github.com/medalign-labs/conformance/pkg/compliance"
	"github.com/medalign-labs/conformance/pkg/extract"
	"github.com/medalign-labs/conformance/pkg/observability"
	"github.com/medalign-labs/conformance/pkg/store"
)

// ServerConfig wires the server's collaborators. Engine, Generator and Items
// are required; the rest degrade gracefully when nil.
type ServerConfig struct {
	Engine     *compliance.Engine
	Generator  *compliance.ReportGenerator
	Items      *store.SQLiteWorkItemStore
	Reports    *store.PostgresReportStore
	Archive    *artifacts.Archive
	Extractor  *extract.Client
	ALMConfigs *alm.ConfigStore
	Obs        *observability.Provider
	Logger     *slog.Logger
}

// Server exposes assessment, traceability and work item management over HTTP.
type Server struct {
	engine     *compliance.Engine
	generator  *compliance.ReportGenerator
	items      *store.SQLiteWorkItemStore
	reports    *store.PostgresReportStore
	archive    *artifacts.Archive
	extractor  *extract.Client
	almConfigs *alm.ConfigStore
	obs        *observability.Provider
	logger     *slog.Logger
}

// NewServer creates a Server from cfg.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &Server{
		engine:     cfg.Engine,
		generator:  cfg.Generator,
		items:      cfg.Items,
		reports:    cfg.Reports,
		archive:    cfg.Archive,
		extractor:  cfg.Extractor,
		almConfigs: cfg.ALMConfigs,
		obs:        cfg.Obs,
		logger:     logger,
	}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/compliance/standards", s.handleStandards)
	mux.HandleFunc("/compliance/assess-requirement/", s.handleAssessRequirement)
	mux.HandleFunc("/compliance/assess-test-case/", s.handleAssessTestCase)
	mux.HandleFunc("/compliance/analyze-standards/", s.handleAnalyzeStandards)
	mux.HandleFunc("/compliance/generate-report", s.handleGenerateReport)
	mux.HandleFunc("/compliance/validate-coverage", s.handleValidateCoverage)

	mux.HandleFunc("/traceability/matrix", s.handleMatrix)
	mux.HandleFunc("/traceability/links", s.handleLinks)
	mux.HandleFunc("/traceability/links/", s.handleLinkByID)

	mux.HandleFunc("/requirements", s.handleRequirements)
	mux.HandleFunc("/requirements/upload", s.handleUpload)
	mux.HandleFunc("/requirements/", s.handleRequirementByID)

	mux.HandleFunc("/test-cases", s.handleTestCases)
	mux.HandleFunc("/test-cases/", s.handleTestCaseByID)

	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/", s.handleReportByID)

	mux.HandleFunc("/alm/platforms", s.handleALMPlatforms)
	mux.HandleFunc("/alm/configs", s.handleALMConfigs)
	mux.HandleFunc("/alm/configs/", s.handleALMConfigByName)
	mux.HandleFunc("/alm/export", s.handleALMExport)
	mux.HandleFunc("/alm/sync", s.handleALMSync)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v with a 1MB cap. A false return
// means the error response was already written.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// WriteServiceUnavailable writes a 503 error response.
func WriteServiceUnavailable(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", detail)
}
