// Package alm integrates with external application lifecycle management
// platforms. Connectors push requirements and test cases outward and read
// remote items back; they never participate in compliance scoring.
package alm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

// RemoteItem is the platform-neutral view of a work item that lives in an
// external system.
type RemoteItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags,omitempty"`
	Created     string   `json:"created,omitempty"`
	Updated     string   `json:"updated,omitempty"`
}

// Connector is the operation set every ALM platform integration provides.
type Connector interface {
	Platform() string
	CreateRequirement(ctx context.Context, req workitem.Requirement) (*RemoteItem, error)
	CreateTestCase(ctx context.Context, tc workitem.TestCase) (*RemoteItem, error)
	LinkRequirementToTestCase(ctx context.Context, requirementID, testCaseID string) error
	Requirements(ctx context.Context) ([]RemoteItem, error)
	TestCases(ctx context.Context) ([]RemoteItem, error)
}

// Config holds one platform connection. A disabled connection stays
// configured but refuses to connect.
type Config struct {
	Platform   string `json:"platform"`
	BaseURL    string `json:"base_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ProjectKey string `json:"project_key,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
}

// SupportedPlatforms lists the platform names New accepts.
func SupportedPlatforms() []string {
	return []string{"jira", "azure_devops", "polarion"}
}

// New builds the connector for the configured platform.
func New(cfg Config) (Connector, error) {
	base := newBaseClient(cfg)
	switch strings.ToLower(cfg.Platform) {
	case "jira":
		return &jiraConnector{base}, nil
	case "azure_devops", "azuredevops", "azure":
		return &azureConnector{base}, nil
	case "polarion":
		return &polarionConnector{base}, nil
	default:
		return nil, fmt.Errorf("alm: unsupported platform %q", cfg.Platform)
	}
}

// baseClient carries the connection state shared by every connector.
type baseClient struct {
	baseURL    string
	projectKey string
	authHeader string
	http       *http.Client
}

func newBaseClient(cfg Config) baseClient {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return baseClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		projectKey: cfg.ProjectKey,
		authHeader: "Basic " + creds,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}
