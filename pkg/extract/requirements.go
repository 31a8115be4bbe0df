package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medalign-labs/conformance/pkg/workitem"
)

// healthcareStandards is the standard vocabulary offered to the model.
var healthcareStandards = []string{
	"FDA 21 CFR Part 820",
	"IEC 62304",
	"ISO 13485",
	"ISO 9001",
	"ISO 27001",
	"HIPAA",
	"GDPR",
}

const requirementsSystemPrompt = "You are an expert healthcare software requirements analyst."

// ExtractRequirements pulls structured requirements out of document text.
// sourceDocument, when set, is stamped on every extracted record. A response
// without a parseable JSON array yields an empty slice, not an error.
func (c *Client) ExtractRequirements(ctx context.Context, text, sourceDocument string) ([]workitem.Requirement, error) {
	prompt := fmt.Sprintf(`Extract individual software requirements from the following text.

For each requirement identify:
1. A unique requirement ID (generate one if not present)
2. Title (brief summary)
3. Description (detailed requirement text)
4. Type (functional, non-functional, regulatory)
5. Priority (high, medium, low)
6. Applicable regulatory standards from: %s

Text to analyze:
%s

Return a JSON array where each element has the structure:
{
  "requirement_id": "REQ-001",
  "title": "Brief title",
  "description": "Detailed description",
  "type": "functional",
  "priority": "high",
  "regulatory_standards": ["FDA 21 CFR Part 820", "IEC 62304"]
}`, strings.Join(healthcareStandards, ", "), text)

	content, err := c.complete(ctx, requirementsSystemPrompt, prompt, 0.3)
	if err != nil {
		return nil, err
	}

	raw, ok := jsonSlice(content, '[', ']')
	if !ok {
		return nil, nil
	}
	var reqs []workitem.Requirement
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, fmt.Errorf("extract: parse requirements: %w", err)
	}
	for i := range reqs {
		if sourceDocument != "" {
			reqs[i].SourceDocument = sourceDocument
		}
	}
	return reqs, nil
}

const standardsSystemPrompt = "You are a healthcare regulatory compliance expert."

// StandardsAnalysis is the model's regulatory read of one requirement.
type StandardsAnalysis struct {
	ApplicableStandards      []string `json:"applicable_standards"`
	ComplianceConsiderations []string `json:"compliance_considerations"`
	RiskLevel                string   `json:"risk_level"`
	RequiredDocumentation    []string `json:"required_documentation"`
	TestingImplications      []string `json:"testing_implications"`
}

// AnalyzeStandards asks the model which regulatory standards apply to a
// requirement and what complying with them entails. A response without a
// parseable JSON object yields nil, not an error.
func (c *Client) AnalyzeStandards(ctx context.Context, requirementText string) (*StandardsAnalysis, error) {
	prompt := fmt.Sprintf(`Analyze the following healthcare software requirement for regulatory compliance.

Requirement: %s

Identify:
1. Which regulatory standards apply: %s
2. Specific compliance considerations
3. Risk level (high, medium, low)
4. Required documentation
5. Testing implications

Return as JSON:
{
  "applicable_standards": ["standard1", "standard2"],
  "compliance_considerations": ["consideration1", "consideration2"],
  "risk_level": "high|medium|low",
  "required_documentation": ["doc1", "doc2"],
  "testing_implications": ["implication1", "implication2"]
}`, requirementText, strings.Join(healthcareStandards, ", "))

	content, err := c.complete(ctx, standardsSystemPrompt, prompt, 0.2)
	if err != nil {
		return nil, err
	}

	raw, ok := jsonSlice(content, '{', '}')
	if !ok {
		return nil, nil
	}
	var analysis StandardsAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("extract: parse standards analysis: %w", err)
	}
	return &analysis, nil
}

const testCaseSystemPrompt = "You are an expert healthcare software test engineer with deep knowledge of medical device testing and regulatory compliance."

// GenerateTestCases drafts test cases covering the given requirement:
// positive and negative scenarios, edge cases, and regulatory verification.
func (c *Client) GenerateTestCases(ctx context.Context, req workitem.Requirement) ([]workitem.TestCase, error) {
	prompt := fmt.Sprintf(`Generate comprehensive test cases for the following healthcare software requirement:

Requirement ID: %s
Title: %s
Description: %s
Type: %s
Priority: %s
Regulatory Standards: %s

Cover positive scenarios, negative scenarios, edge cases, regulatory
compliance verification, and security testing where applicable.

Return a JSON array where each element has the structure:
{
  "test_case_id": "TC-001",
  "title": "Test case title",
  "description": "Detailed description",
  "preconditions": "Prerequisites",
  "test_steps": ["Step 1", "Step 2"],
  "expected_results": "Expected outcome",
  "postconditions": "Post-test state",
  "priority": "high",
  "test_data": {"data_type": "HL7"},
  "compliance_tags": ["HIPAA"]
}`, req.ID, req.Title, req.Description, req.Type, req.Priority, strings.Join(req.RegulatoryStandards, ", "))

	content, err := c.complete(ctx, testCaseSystemPrompt, prompt, 0.4)
	if err != nil {
		return nil, err
	}

	raw, ok := jsonSlice(content, '[', ']')
	if !ok {
		return nil, nil
	}
	var tcs []workitem.TestCase
	if err := json.Unmarshal([]byte(raw), &tcs); err != nil {
		return nil, fmt.Errorf("extract: parse test cases: %w", err)
	}
	for i := range tcs {
		if tcs[i].RequirementID == "" {
			tcs[i].RequirementID = req.ID
		}
	}
	return tcs, nil
}
