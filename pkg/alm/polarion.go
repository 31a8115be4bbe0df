package alm

import (
	"context"
	"fmt"
	"strings"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

// polarionConnector maps items to Polarion work items over its REST v1 API.
type polarionConnector struct {
	baseClient
}

func (p *polarionConnector) Platform() string { return "polarion" }

func (p *polarionConnector) workItemsURL() string {
	return fmt.Sprintf("%s/polarion/rest/v1/projects/%s/workitems", p.baseURL, p.projectKey)
}

type polarionText struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type polarionCreated struct {
	ID string `json:"id"`
}

func (p *polarionConnector) CreateRequirement(ctx context.Context, req workitem.Requirement) (*RemoteItem, error) {
	payload := map[string]any{
		"type":        "requirement",
		"title":       req.Title,
		"description": polarionText{Type: "text/html", Content: req.Description},
		"priority":    polarionPriority(req.Priority),
		"customFields": map[string]any{
			"regulatoryStandards": req.RegulatoryStandards,
		},
	}

	var created polarionCreated
	if err := p.doJSON(ctx, "POST", p.workItemsURL(), payload, &created, ""); err != nil {
		return nil, fmt.Errorf("polarion: create requirement: %w", err)
	}
	return &RemoteItem{ID: created.ID, Title: req.Title}, nil
}

func (p *polarionConnector) CreateTestCase(ctx context.Context, tc workitem.TestCase) (*RemoteItem, error) {
	var steps strings.Builder
	steps.WriteString("<ol>")
	for _, step := range tc.TestSteps {
		steps.WriteString("<li>" + step + "</li>")
	}
	steps.WriteString("</ol>")

	payload := map[string]any{
		"type":           "testcase",
		"title":          tc.Title,
		"description":    polarionText{Type: "text/html", Content: tc.Description},
		"testSteps":      polarionText{Type: "text/html", Content: steps.String()},
		"expectedResult": polarionText{Type: "text/html", Content: tc.ExpectedResults},
		"priority":       polarionPriority(tc.Priority),
		"customFields": map[string]any{
			"complianceTags": tc.ComplianceTags,
		},
	}

	var created polarionCreated
	if err := p.doJSON(ctx, "POST", p.workItemsURL(), payload, &created, ""); err != nil {
		return nil, fmt.Errorf("polarion: create test case: %w", err)
	}
	return &RemoteItem{ID: created.ID, Title: tc.Title}, nil
}

func (p *polarionConnector) LinkRequirementToTestCase(ctx context.Context, requirementID, testCaseID string) error {
	u := fmt.Sprintf("%s/%s/links", p.workItemsURL(), testCaseID)
	payload := map[string]any{
		"role":     "verifies",
		"workItem": map[string]string{"id": requirementID},
	}
	if err := p.doJSON(ctx, "POST", u, payload, nil, ""); err != nil {
		return fmt.Errorf("polarion: link: %w", err)
	}
	return nil
}

func (p *polarionConnector) Requirements(ctx context.Context) ([]RemoteItem, error) {
	return p.query(ctx, "type:requirement")
}

func (p *polarionConnector) TestCases(ctx context.Context) ([]RemoteItem, error) {
	return p.query(ctx, "type:testcase")
}

type polarionListResponse struct {
	Data []struct {
		ID          string       `json:"id"`
		Title       string       `json:"title"`
		Description polarionText `json:"description"`
		Priority    string       `json:"priority"`
		Status      string       `json:"status"`
		Created     string       `json:"created"`
		Updated     string       `json:"updated"`
	} `json:"data"`
}

func (p *polarionConnector) query(ctx context.Context, query string) ([]RemoteItem, error) {
	u := withQuery(p.workItemsURL(), map[string]string{"query": query})

	var lr polarionListResponse
	if err := p.doJSON(ctx, "GET", u, nil, &lr, ""); err != nil {
		return nil, fmt.Errorf("polarion: query %s: %w", query, err)
	}

	items := make([]RemoteItem, 0, len(lr.Data))
	for _, it := range lr.Data {
		items = append(items, RemoteItem{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description.Content,
			Priority:    strings.ToLower(it.Priority),
			Status:      it.Status,
			Created:     it.Created,
			Updated:     it.Updated,
		})
	}
	return items, nil
}

func polarionPriority(p string) string {
	switch strings.ToLower(p) {
	case workitem.PriorityHigh:
		return "high"
	case workitem.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}
