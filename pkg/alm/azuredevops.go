package alm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

const azureAPIVersion = "6.0"

// azureConnector maps requirements to User Story work items and test cases
// to Test Case work items via the Azure DevOps work item tracking API.
// Mutations use JSON Patch documents.
type azureConnector struct {
	baseClient
}

func (a *azureConnector) Platform() string { return "azure_devops" }

type azurePatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type azureWorkItem struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (a *azureConnector) workItemURL(kind string) string {
	return fmt.Sprintf("%s/%s/_apis/wit/workitems/$%s?api-version=%s",
		a.baseURL, a.projectKey, url.PathEscape(kind), azureAPIVersion)
}

func (a *azureConnector) CreateRequirement(ctx context.Context, req workitem.Requirement) (*RemoteItem, error) {
	ops := []azurePatchOp{
		{Op: "add", Path: "/fields/System.Title", Value: req.Title},
		{Op: "add", Path: "/fields/System.Description", Value: req.Description},
		{Op: "add", Path: "/fields/Microsoft.VSTS.Common.Priority", Value: azurePriority(req.Priority)},
	}
	if len(req.RegulatoryStandards) > 0 {
		ops = append(ops, azurePatchOp{
			Op: "add", Path: "/fields/System.Tags", Value: strings.Join(req.RegulatoryStandards, "; "),
		})
	}

	var created azureWorkItem
	if err := a.doJSON(ctx, "POST", a.workItemURL("User Story"), ops, &created, "application/json-patch+json"); err != nil {
		return nil, fmt.Errorf("azure: create requirement: %w", err)
	}
	return &RemoteItem{ID: fmt.Sprintf("%d", created.ID), Title: req.Title}, nil
}

func (a *azureConnector) CreateTestCase(ctx context.Context, tc workitem.TestCase) (*RemoteItem, error) {
	var steps strings.Builder
	steps.WriteString("<steps>")
	for i, step := range tc.TestSteps {
		fmt.Fprintf(&steps,
			"<step id='%d' type='ActionStep'><parameterizedString isformatted='true'><DIV><P>%s</P></DIV></parameterizedString></step>",
			i+1, step)
	}
	steps.WriteString("</steps>")

	ops := []azurePatchOp{
		{Op: "add", Path: "/fields/System.Title", Value: tc.Title},
		{Op: "add", Path: "/fields/System.Description", Value: tc.Description},
		{Op: "add", Path: "/fields/Microsoft.VSTS.TCM.Steps", Value: steps.String()},
		{Op: "add", Path: "/fields/Microsoft.VSTS.Common.Priority", Value: azurePriority(tc.Priority)},
	}
	if len(tc.ComplianceTags) > 0 {
		ops = append(ops, azurePatchOp{
			Op: "add", Path: "/fields/System.Tags", Value: strings.Join(tc.ComplianceTags, "; "),
		})
	}

	var created azureWorkItem
	if err := a.doJSON(ctx, "POST", a.workItemURL("Test Case"), ops, &created, "application/json-patch+json"); err != nil {
		return nil, fmt.Errorf("azure: create test case: %w", err)
	}
	return &RemoteItem{ID: fmt.Sprintf("%d", created.ID), Title: tc.Title}, nil
}

func (a *azureConnector) LinkRequirementToTestCase(ctx context.Context, requirementID, testCaseID string) error {
	u := fmt.Sprintf("%s/%s/_apis/wit/workitems/%s?api-version=%s", a.baseURL, a.projectKey, testCaseID, azureAPIVersion)
	ops := []azurePatchOp{{
		Op:   "add",
		Path: "/relations/-",
		Value: map[string]string{
			"rel": "Microsoft.VSTS.Common.TestedBy-Reverse",
			"url": fmt.Sprintf("%s/%s/_apis/wit/workItems/%s", a.baseURL, a.projectKey, requirementID),
		},
	}}
	if err := a.doJSON(ctx, "PATCH", u, ops, nil, "application/json-patch+json"); err != nil {
		return fmt.Errorf("azure: link: %w", err)
	}
	return nil
}

func (a *azureConnector) Requirements(ctx context.Context) ([]RemoteItem, error) {
	return a.query(ctx, "User Story")
}

func (a *azureConnector) TestCases(ctx context.Context) ([]RemoteItem, error) {
	return a.query(ctx, "Test Case")
}

type azureWiqlResponse struct {
	WorkItems []struct {
		ID int64 `json:"id"`
	} `json:"workItems"`
}

// query runs a WIQL type query then fetches each work item individually, the
// way the tracking API requires.
func (a *azureConnector) query(ctx context.Context, itemType string) ([]RemoteItem, error) {
	wiqlURL := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=%s", a.baseURL, a.projectKey, azureAPIVersion)
	wiql := map[string]string{
		"query": fmt.Sprintf("SELECT [System.Id] FROM WorkItems WHERE [System.WorkItemType] = '%s'", itemType),
	}

	var qr azureWiqlResponse
	if err := a.doJSON(ctx, "POST", wiqlURL, wiql, &qr, ""); err != nil {
		return nil, fmt.Errorf("azure: wiql query: %w", err)
	}

	items := make([]RemoteItem, 0, len(qr.WorkItems))
	for _, ref := range qr.WorkItems {
		itemURL := fmt.Sprintf("%s/%s/_apis/wit/workitems/%d?api-version=%s", a.baseURL, a.projectKey, ref.ID, azureAPIVersion)
		var wi azureWorkItem
		if err := a.doJSON(ctx, "GET", itemURL, nil, &wi, ""); err != nil {
			return nil, fmt.Errorf("azure: fetch work item %d: %w", ref.ID, err)
		}
		items = append(items, azureRemoteItem(wi))
	}
	return items, nil
}

func azureRemoteItem(wi azureWorkItem) RemoteItem {
	item := RemoteItem{
		ID:          fmt.Sprintf("%d", wi.ID),
		Title:       azureStringField(wi, "System.Title"),
		Description: azureStringField(wi, "System.Description"),
		Status:      azureStringField(wi, "System.State"),
		Priority:    azurePriorityName(wi),
		Created:     azureStringField(wi, "System.CreatedDate"),
		Updated:     azureStringField(wi, "System.ChangedDate"),
	}
	if tags := azureStringField(wi, "System.Tags"); tags != "" {
		item.Tags = strings.Split(tags, "; ")
	}
	return item
}

func azureStringField(wi azureWorkItem, name string) string {
	if v, ok := wi.Fields[name].(string); ok {
		return v
	}
	return ""
}

func azurePriority(p string) int {
	switch strings.ToLower(p) {
	case workitem.PriorityHigh:
		return 1
	case workitem.PriorityLow:
		return 3
	default:
		return 2
	}
}

func azurePriorityName(wi azureWorkItem) string {
	n, ok := wi.Fields["Microsoft.VSTS.Common.Priority"].(float64)
	if !ok {
		return workitem.PriorityMedium
	}
	switch int(n) {
	case 1:
		return workitem.PriorityHigh
	case 3:
		return workitem.PriorityLow
	default:
		return workitem.PriorityMedium
	}
}
