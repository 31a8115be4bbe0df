package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

func sampleRequirement() workitem.Requirement {
	return workitem.Requirement{
		ID:                  "REQ-001",
		Title:               "Access control",
		Description:         "Enforce access control for all sessions.",
		Type:                workitem.TypeRegulatory,
		Priority:            workitem.PriorityHigh,
		RegulatoryStandards: []string{"ISO 27001"},
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestExtractRequirements(t *testing.T) {
	content := "Here are the requirements:\n" +
		`[{"requirement_id":"REQ-001","title":"Access control","description":"Enforce access control.","type":"regulatory","priority":"high","regulatory_standards":["ISO 27001"]}]` +
		"\nLet me know if you need more."
	srv := completionServer(t, content)
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	reqs, err := c.ExtractRequirements(context.Background(), "The system shall enforce access control.", "srs.txt")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "REQ-001", reqs[0].ID)
	require.Equal(t, "srs.txt", reqs[0].SourceDocument)
	require.Equal(t, []string{"ISO 27001"}, reqs[0].RegulatoryStandards)
}

func TestExtractRequirements_NoJSON(t *testing.T) {
	srv := completionServer(t, "I could not find any requirements in that text.")
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	reqs, err := c.ExtractRequirements(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Empty(t, reqs)
}

func TestExtractRequirements_MalformedJSON(t *testing.T) {
	srv := completionServer(t, `[{"requirement_id": }]`)
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	_, err := c.ExtractRequirements(context.Background(), "hello", "")
	require.Error(t, err)
}

func TestGenerateTestCases(t *testing.T) {
	content := `[{"test_case_id":"TC-001","title":"Login denied","test_steps":["attempt login"],"priority":"high"}]`
	srv := completionServer(t, content)
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	tcs, err := c.GenerateTestCases(context.Background(), sampleRequirement())
	require.NoError(t, err)
	require.Len(t, tcs, 1)
	require.Equal(t, "TC-001", tcs[0].ID)
	// Unlinked generated cases inherit the source requirement.
	require.Equal(t, "REQ-001", tcs[0].RequirementID)
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	_, err := c.ExtractRequirements(context.Background(), "hello", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	_, err := c.ExtractRequirements(context.Background(), "hello", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty choices")
}

func TestJSONSlice(t *testing.T) {
	raw, ok := jsonSlice("prefix [1,2,3] suffix", '[', ']')
	require.True(t, ok)
	require.Equal(t, "[1,2,3]", raw)

	_, ok = jsonSlice("no array here", '[', ']')
	require.False(t, ok)
}

func TestAnalyzeStandards(t *testing.T) {
	content := "Here is the analysis:\n" +
		`{"applicable_standards":["HIPAA","ISO 27001"],"compliance_considerations":["PHI must be encrypted at rest"],"risk_level":"high","required_documentation":["Security risk assessment"],"testing_implications":["Verify audit log entries"]}` +
		"\nHappy to elaborate."
	srv := completionServer(t, content)
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	analysis, err := c.AnalyzeStandards(context.Background(), "The system shall maintain an audit trail of PHI access.")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	require.Equal(t, []string{"HIPAA", "ISO 27001"}, analysis.ApplicableStandards)
	require.Equal(t, "high", analysis.RiskLevel)
	require.NotEmpty(t, analysis.TestingImplications)
}

func TestAnalyzeStandards_NoJSON(t *testing.T) {
	srv := completionServer(t, "No machine-readable analysis available.")
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	analysis, err := c.AnalyzeStandards(context.Background(), "some requirement")
	require.NoError(t, err)
	require.Nil(t, analysis)
}

func TestAnalyzeStandards_MalformedJSON(t *testing.T) {
	srv := completionServer(t, `{"applicable_standards": }`)
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	_, err := c.AnalyzeStandards(context.Background(), "some requirement")
	require.Error(t, err)
}
