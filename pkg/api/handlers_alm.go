package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medalign-labs/conformance/pkg/alm"
	"github.com/medalign-labs/conformance/pkg/observability"
	"github.com/medalign-labs/conformance/pkg/store"
	"github.com/medalign-labs/conformance/pkg/workitem"
)

func (s *Server) handleALMConfigs(w http.ResponseWriter, r *http.Request) {
	if s.almConfigs == nil {
		WriteServiceUnavailable(w, "ALM integration is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		connections, err := s.almConfigs.List()
		if err != nil {
			WriteInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"connections": connections})

	case http.MethodPost:
		var body struct {
			Name   string     `json:"name"`
			Config alm.Config `json:"config"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		if body.Name == "" {
			WriteBadRequest(w, "Missing connection name")
			return
		}
		if err := s.almConfigs.Save(body.Name, body.Config); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"name":     body.Name,
			"platform": body.Config.Platform,
		})

	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) handleALMConfigByName(w http.ResponseWriter, r *http.Request) {
	if s.almConfigs == nil {
		WriteServiceUnavailable(w, "ALM integration is not configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/alm/configs/")
	if name, ok := strings.CutSuffix(rest, "/test"); ok {
		s.handleALMTestConnection(w, r, name)
		return
	}
	if name, ok := strings.CutSuffix(rest, "/enable"); ok {
		s.handleALMSetDisabled(w, r, name, false)
		return
	}
	if name, ok := strings.CutSuffix(rest, "/disable"); ok {
		s.handleALMSetDisabled(w, r, name, true)
		return
	}

	if r.Method != http.MethodDelete {
		WriteMethodNotAllowed(w)
		return
	}
	if err := s.almConfigs.Delete(rest); err != nil {
		WriteInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleALMTestConnection probes the remote platform with a read call.
func (s *Server) handleALMTestConnection(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	connector, err := s.almConfigs.Connect(name)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if _, err := connector.Requirements(ctx); err != nil {
		WriteError(w, http.StatusBadGateway, "Bad Gateway",
			fmt.Sprintf("Connection %q failed: %v", name, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"connection": name,
		"platform":   connector.Platform(),
		"status":     "ok",
	})
}

func (s *Server) handleALMSetDisabled(w http.ResponseWriter, r *http.Request, name string, disabled bool) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if err := s.almConfigs.SetDisabled(name, disabled); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "disabled": disabled})
}

func (s *Server) handleALMPlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": alm.SupportedPlatforms()})
}

type almSyncRequest struct {
	Connection string `json:"connection"`
}

// handleALMSync imports remote requirements and test cases into the local
// store. Remote items that fail validation are skipped, not fatal.
func (s *Server) handleALMSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.almConfigs == nil {
		WriteServiceUnavailable(w, "ALM integration is not configured")
		return
	}

	var req almSyncRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Connection == "" {
		WriteBadRequest(w, "Missing connection name")
		return
	}
	connector, err := s.almConfigs.Connect(req.Connection)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	remoteReqs, err := connector.Requirements(ctx)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "Bad Gateway",
			fmt.Sprintf("Fetching requirements from %s failed: %v", connector.Platform(), err))
		return
	}
	remoteTCs, err := connector.TestCases(ctx)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "Bad Gateway",
			fmt.Sprintf("Fetching test cases from %s failed: %v", connector.Platform(), err))
		return
	}

	importedReqs, importedTCs := 0, 0
	for _, item := range remoteReqs {
		req := workitem.Requirement{
			ID:                  item.ID,
			Title:               item.Title,
			Description:         item.Description,
			Type:                workitem.TypeFunctional,
			Priority:            normalizePriority(item.Priority),
			SourceDocument:      connector.Platform(),
			RegulatoryStandards: item.Tags,
		}
		if err := req.Validate(); err != nil {
			s.logger.Warn("skipping remote requirement", "id", item.ID, "error", err)
			continue
		}
		if err := s.items.PutRequirement(ctx, &req); err != nil {
			WriteInternal(w, err)
			return
		}
		importedReqs++
	}
	for _, item := range remoteTCs {
		tc := workitem.TestCase{
			ID:             item.ID,
			Title:          item.Title,
			Description:    item.Description,
			Priority:       normalizePriority(item.Priority),
			ComplianceTags: item.Tags,
		}
		if err := tc.Validate(); err != nil {
			s.logger.Warn("skipping remote test case", "id", item.ID, "error", err)
			continue
		}
		if err := s.items.PutTestCase(ctx, &tc); err != nil {
			WriteInternal(w, err)
			return
		}
		importedTCs++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connection":   req.Connection,
		"platform":     connector.Platform(),
		"requirements": importedReqs,
		"test_cases":   importedTCs,
	})
}

func normalizePriority(p string) string {
	switch strings.ToLower(p) {
	case workitem.PriorityHigh, "highest", "critical", "1", "2":
		return workitem.PriorityHigh
	case workitem.PriorityLow, "lowest", "trivial", "4":
		return workitem.PriorityLow
	default:
		return workitem.PriorityMedium
	}
}

type almExportRequest struct {
	Connection     string   `json:"connection"`
	RequirementIDs []string `json:"requirement_ids"`
}

type almExportedItem struct {
	LocalID  string `json:"local_id"`
	RemoteID string `json:"remote_id"`
	Type     string `json:"type"`
}

// handleALMExport pushes requirements and their covering test cases to the
// named platform connection, recreating the trace links remotely.
func (s *Server) handleALMExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.almConfigs == nil {
		WriteServiceUnavailable(w, "ALM integration is not configured")
		return
	}

	var req almExportRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Connection == "" {
		WriteBadRequest(w, "Missing connection name")
		return
	}

	connector, err := s.almConfigs.Connect(req.Connection)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	requirements, err := s.loadRequirements(ctx, req.RequirementIDs, w)
	if err != nil {
		return
	}

	exported := make([]almExportedItem, 0, len(requirements))
	for i := range requirements {
		localReq := requirements[i]
		remote, err := connector.CreateRequirement(ctx, localReq)
		if err != nil {
			WriteInternal(w, fmt.Errorf("export requirement %s: %w", localReq.ID, err))
			return
		}
		exported = append(exported, almExportedItem{LocalID: localReq.ID, RemoteID: remote.ID, Type: "requirement"})
		if s.obs != nil {
			s.obs.RecordAssessment(ctx, observability.ALMAttrs(connector.Platform(), "requirement", localReq.ID)...)
		}

		testCases, err := s.items.ListTestCasesForRequirement(ctx, localReq.ID)
		if err != nil {
			WriteInternal(w, err)
			return
		}
		for j := range testCases {
			tc := testCases[j]
			remoteTC, err := connector.CreateTestCase(ctx, tc)
			if err != nil {
				WriteInternal(w, fmt.Errorf("export test case %s: %w", tc.ID, err))
				return
			}
			exported = append(exported, almExportedItem{LocalID: tc.ID, RemoteID: remoteTC.ID, Type: "test_case"})
			if err := connector.LinkRequirementToTestCase(ctx, remote.ID, remoteTC.ID); err != nil {
				s.logger.Warn("remote trace link failed",
					"platform", connector.Platform(),
					"requirement_id", remote.ID,
					"test_case_id", remoteTC.ID,
					"error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connection": req.Connection,
		"platform":   connector.Platform(),
		"exported":   exported,
	})
}

// loadRequirements resolves the requested IDs, or every stored requirement
// when none are given. A non-nil error means a response was written.
func (s *Server) loadRequirements(ctx context.Context, ids []string, w http.ResponseWriter) ([]workitem.Requirement, error) {
	if len(ids) == 0 {
		all, err := s.items.ListRequirements(ctx)
		if err != nil {
			WriteInternal(w, err)
			return nil, err
		}
		return all, nil
	}

	out := make([]workitem.Requirement, 0, len(ids))
	for _, id := range ids {
		req, err := s.items.GetRequirement(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteNotFound(w, "Requirement not found: "+id)
				return nil, err
			}
			WriteInternal(w, err)
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}
