package alm

import (
	"context"
	"fmt"
	"strings"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

// jiraConnector maps requirements to Story issues and test cases to Test
// issues via the Jira REST v2 API.
type jiraConnector struct {
	baseClient
}

func (j *jiraConnector) Platform() string { return "jira" }

type jiraIssueFields struct {
	Project     map[string]string `json:"project"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	IssueType   map[string]string `json:"issuetype"`
	Priority    map[string]string `json:"priority"`
	Labels      []string          `json:"labels"`
}

type jiraCreateRequest struct {
	Fields jiraIssueFields `json:"fields"`
}

type jiraCreateResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

func (j *jiraConnector) CreateRequirement(ctx context.Context, req workitem.Requirement) (*RemoteItem, error) {
	payload := jiraCreateRequest{Fields: jiraIssueFields{
		Project:     map[string]string{"key": j.projectKey},
		Summary:     req.Title,
		Description: req.Description,
		IssueType:   map[string]string{"name": "Story"},
		Priority:    map[string]string{"name": jiraPriority(req.Priority)},
		Labels:      req.RegulatoryStandards,
	}}

	var created jiraCreateResponse
	if err := j.doJSON(ctx, "POST", j.baseURL+"/rest/api/2/issue", payload, &created, ""); err != nil {
		return nil, fmt.Errorf("jira: create requirement: %w", err)
	}
	return &RemoteItem{ID: created.Key, Title: req.Title}, nil
}

func (j *jiraConnector) CreateTestCase(ctx context.Context, tc workitem.TestCase) (*RemoteItem, error) {
	var steps strings.Builder
	for i, step := range tc.TestSteps {
		fmt.Fprintf(&steps, "%d. %s\n", i+1, step)
	}
	description := fmt.Sprintf(
		"%s\n\n*Preconditions:*\n%s\n\n*Test Steps:*\n%s\n*Expected Results:*\n%s\n\n*Postconditions:*\n%s",
		tc.Description, orNone(tc.Preconditions), steps.String(), tc.ExpectedResults, orNone(tc.Postconditions))

	payload := jiraCreateRequest{Fields: jiraIssueFields{
		Project:     map[string]string{"key": j.projectKey},
		Summary:     tc.Title,
		Description: description,
		IssueType:   map[string]string{"name": "Test"},
		Priority:    map[string]string{"name": jiraPriority(tc.Priority)},
		Labels:      tc.ComplianceTags,
	}}

	var created jiraCreateResponse
	if err := j.doJSON(ctx, "POST", j.baseURL+"/rest/api/2/issue", payload, &created, ""); err != nil {
		return nil, fmt.Errorf("jira: create test case: %w", err)
	}
	return &RemoteItem{ID: created.Key, Title: tc.Title}, nil
}

func (j *jiraConnector) LinkRequirementToTestCase(ctx context.Context, requirementID, testCaseID string) error {
	payload := map[string]any{
		"type":         map[string]string{"name": "Tests"},
		"inwardIssue":  map[string]string{"key": testCaseID},
		"outwardIssue": map[string]string{"key": requirementID},
	}
	if err := j.doJSON(ctx, "POST", j.baseURL+"/rest/api/2/issueLink", payload, nil, ""); err != nil {
		return fmt.Errorf("jira: link: %w", err)
	}
	return nil
}

func (j *jiraConnector) Requirements(ctx context.Context) ([]RemoteItem, error) {
	return j.search(ctx, "Story")
}

func (j *jiraConnector) TestCases(ctx context.Context) ([]RemoteItem, error) {
	return j.search(ctx, "Test")
}

type jiraSearchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string   `json:"summary"`
			Description string   `json:"description"`
			Labels      []string `json:"labels"`
			Priority    struct {
				Name string `json:"name"`
			} `json:"priority"`
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
			Created string `json:"created"`
			Updated string `json:"updated"`
		} `json:"fields"`
	} `json:"issues"`
}

func (j *jiraConnector) search(ctx context.Context, issueType string) ([]RemoteItem, error) {
	u := withQuery(j.baseURL+"/rest/api/2/search", map[string]string{
		"jql":        fmt.Sprintf("project = %s AND issuetype = %s", j.projectKey, issueType),
		"maxResults": "1000",
		"fields":     "summary,description,priority,labels,status,created,updated",
	})

	var sr jiraSearchResponse
	if err := j.doJSON(ctx, "GET", u, nil, &sr, ""); err != nil {
		return nil, fmt.Errorf("jira: search %s: %w", issueType, err)
	}

	items := make([]RemoteItem, 0, len(sr.Issues))
	for _, issue := range sr.Issues {
		items = append(items, RemoteItem{
			ID:          issue.Key,
			Title:       issue.Fields.Summary,
			Description: issue.Fields.Description,
			Priority:    strings.ToLower(issue.Fields.Priority.Name),
			Status:      issue.Fields.Status.Name,
			Tags:        issue.Fields.Labels,
			Created:     issue.Fields.Created,
			Updated:     issue.Fields.Updated,
		})
	}
	return items, nil
}

func jiraPriority(p string) string {
	switch strings.ToLower(p) {
	case workitem.PriorityHigh:
		return "High"
	case workitem.PriorityLow:
		return "Low"
	default:
		return "Medium"
	}
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
