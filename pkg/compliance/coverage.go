package compliance

import "strings"

// CoverageGap flags one requirement or test case needing attention.
type CoverageGap struct {
	RequirementID   string `json:"requirement_id"`
	TestCaseID      string `json:"test_case_id,omitempty"`
	Title           string `json:"title,omitempty"`
	Standard        string `json:"standard,omitempty"`
	ComplianceLevel Level  `json:"compliance_level,omitempty"`
	Issue           string `json:"issue"`
	Recommendation  string `json:"recommendation"`
}

// CoverageStats mirrors the traceability matrix coverage analysis.
type CoverageStats struct {
	TotalRequirements        int     `json:"total_requirements"`
	RequirementsWithTests    int     `json:"requirements_with_tests"`
	RequirementsCoveragePct  float64 `json:"requirements_coverage_percentage"`
	TotalTestCases           int     `json:"total_test_cases"`
	TestCasesWithReqs        int     `json:"test_cases_with_requirements"`
	TestCasesCoveragePct     float64 `json:"test_cases_coverage_percentage"`
	OrphanedRequirements     int     `json:"orphaned_requirements"`
	OrphanedTestCases        int     `json:"orphaned_test_cases"`
}

// CoverageReport is the result of a coverage validation pass.
type CoverageReport struct {
	Standard          string        `json:"standard,omitempty"`
	TotalRequirements int           `json:"total_requirements"`
	TotalTestCases    int           `json:"total_test_cases"`
	Stats             CoverageStats `json:"coverage_analysis"`
	Gaps              []CoverageGap `json:"coverage_gaps"`
	Recommendations   []string      `json:"recommendations"`
}

// ValidateCoverage checks that requirements are verified by adequately
// compliant test cases. When standard is non-empty, only requirements that
// declare the standard and only results for that standard are considered.
// Test cases link to requirements through their RequirementRef.
func (e *Engine) ValidateCoverage(standard string, requirements []RequirementInput, testCases []TestCaseInput) *CoverageReport {
	report := &CoverageReport{
		Standard:          standard,
		TotalRequirements: len(requirements),
		TotalTestCases:    len(testCases),
		Stats:             coverageStats(requirements, testCases),
		Gaps:              []CoverageGap{},
	}

	byReq := make(map[string][]TestCaseInput)
	for _, tc := range testCases {
		if tc.RequirementRef != "" {
			byReq[tc.RequirementRef] = append(byReq[tc.RequirementRef], tc)
		}
	}

	for _, req := range requirements {
		if standard != "" && !req.Entity.declaresStandard(standard) {
			continue
		}

		related := byReq[req.ID]
		if len(related) == 0 {
			report.Gaps = append(report.Gaps, CoverageGap{
				RequirementID:  req.ID,
				Title:          req.Entity.Title,
				Issue:          "No test cases found",
				Recommendation: "Create test cases to verify this requirement",
			})
			continue
		}

		for _, tc := range related {
			for _, result := range e.AssessTestCase(tc.Entity, &req.Entity) {
				if standard != "" && result.Standard != standard {
					continue
				}
				if result.ComplianceLevel != NonCompliant && result.ComplianceLevel != PartiallyCompliant {
					continue
				}
				report.Gaps = append(report.Gaps, CoverageGap{
					RequirementID:   req.ID,
					TestCaseID:      tc.ID,
					Standard:        result.Standard,
					ComplianceLevel: result.ComplianceLevel,
					Issue:           strings.Join(result.Findings, ", "),
					Recommendation:  strings.Join(result.Recommendations, ", "),
				})
			}
		}
	}

	if len(report.Gaps) > 0 {
		report.Recommendations = []string{
			"Review and enhance test cases for requirements with compliance gaps",
			"Ensure all regulatory requirements have adequate test coverage",
			"Consider adding specific compliance verification steps to test cases",
		}
	} else {
		report.Recommendations = []string{
			"Test coverage appears adequate for compliance requirements",
			"Continue monitoring and updating test cases as requirements evolve",
		}
	}
	return report
}

// coverageStats computes linkage percentages over the RequirementRef graph.
func coverageStats(requirements []RequirementInput, testCases []TestCaseInput) CoverageStats {
	known := make(map[string]bool, len(requirements))
	for _, req := range requirements {
		known[req.ID] = true
	}

	covered := make(map[string]bool)
	linkedTCs := 0
	for _, tc := range testCases {
		if tc.RequirementRef != "" && known[tc.RequirementRef] {
			covered[tc.RequirementRef] = true
			linkedTCs++
		}
	}

	stats := CoverageStats{
		TotalRequirements:     len(requirements),
		RequirementsWithTests: len(covered),
		TotalTestCases:        len(testCases),
		TestCasesWithReqs:     linkedTCs,
		OrphanedRequirements:  len(requirements) - len(covered),
		OrphanedTestCases:     len(testCases) - linkedTCs,
	}
	if stats.TotalRequirements > 0 {
		stats.RequirementsCoveragePct = float64(stats.RequirementsWithTests) / float64(stats.TotalRequirements) * 100
	}
	if stats.TotalTestCases > 0 {
		stats.TestCasesCoveragePct = float64(stats.TestCasesWithReqs) / float64(stats.TotalTestCases) * 100
	}
	return stats
}
