// Package workitem defines the persisted records the assessment engine
// operates on: requirements, test cases, and the traceability links between
// them. Records are storage-shaped; the compliance engine consumes the
// snapshot views produced by Entity().
package workitem

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/medalign-labs/conformance/pkg/compliance"
)

// Requirement classification values.
const (
	TypeFunctional    = "functional"
	TypeNonFunctional = "non-functional"
	TypeRegulatory    = "regulatory"
)

// Priority values shared by requirements and test cases.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Requirement is one requirement record.
type Requirement struct {
	ID                  string    `json:"requirement_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Type                string    `json:"type"`
	Priority            string    `json:"priority"`
	SourceDocument      string    `json:"source_document,omitempty"`
	RegulatoryStandards []string  `json:"regulatory_standards"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks the fields required before persisting.
func (r *Requirement) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("requirement: missing id")
	}
	if r.Title == "" {
		return fmt.Errorf("requirement %s: missing title", r.ID)
	}
	if r.Description == "" {
		return fmt.Errorf("requirement %s: missing description", r.ID)
	}
	switch r.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("requirement %s: invalid priority %q", r.ID, r.Priority)
	}
	return nil
}

// Entity returns the evaluable snapshot of the requirement.
func (r *Requirement) Entity() compliance.Entity {
	return compliance.Entity{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Standards:   r.RegulatoryStandards,
	}
}

// TestCase is one test case record. RequirementID links it to the
// requirement it verifies; empty means unlinked.
type TestCase struct {
	ID              string            `json:"test_case_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Preconditions   string            `json:"preconditions,omitempty"`
	TestSteps       []string          `json:"test_steps"`
	ExpectedResults string            `json:"expected_results"`
	Postconditions  string            `json:"postconditions,omitempty"`
	Priority        string            `json:"priority"`
	TestData        map[string]string `json:"test_data,omitempty"`
	ComplianceTags  []string          `json:"compliance_tags"`
	RequirementID   string            `json:"requirement_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Validate checks the fields required before persisting.
func (tc *TestCase) Validate() error {
	if tc.ID == "" {
		return fmt.Errorf("test case: missing id")
	}
	if tc.Title == "" {
		return fmt.Errorf("test case %s: missing title", tc.ID)
	}
	switch tc.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("test case %s: invalid priority %q", tc.ID, tc.Priority)
	}
	return nil
}

// Entity returns the evaluable snapshot of the test case.
func (tc *TestCase) Entity() compliance.Entity {
	return compliance.Entity{
		Title:           tc.Title,
		Description:     tc.Description,
		TestSteps:       tc.TestSteps,
		Preconditions:   tc.Preconditions,
		ExpectedResults: tc.ExpectedResults,
		Postconditions:  tc.Postconditions,
		Priority:        tc.Priority,
		Standards:       tc.ComplianceTags,
	}
}

// Link endpoint types.
const (
	NodeRequirement = "requirement"
	NodeTestCase    = "test_case"
)

// Link relationship types.
const (
	LinkCovers      = "covers"
	LinkDerivesFrom = "derives_from"
	LinkValidates   = "validates"
)

// TraceLink records a directed traceability relationship between two items.
type TraceLink struct {
	ID         int64     `json:"id"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	LinkType   string    `json:"link_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks endpoint and relationship types.
func (l *TraceLink) Validate() error {
	if !validNodeType(l.SourceType) {
		return fmt.Errorf("trace link: invalid source type %q", l.SourceType)
	}
	if !validNodeType(l.TargetType) {
		return fmt.Errorf("trace link: invalid target type %q", l.TargetType)
	}
	if l.SourceID == "" || l.TargetID == "" {
		return fmt.Errorf("trace link: missing endpoint id")
	}
	switch l.LinkType {
	case LinkCovers, LinkDerivesFrom, LinkValidates:
	default:
		return fmt.Errorf("trace link: invalid link type %q", l.LinkType)
	}
	return nil
}

func validNodeType(t string) bool {
	return t == NodeRequirement || t == NodeTestCase
}

// TruncateTitle shortens s to at most max runes. Cutting on a rune
// boundary keeps titles extracted from multi-byte documents valid UTF-8.
func TruncateTitle(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
