package workitem

// RequirementRow is the requirement summary carried in a traceability matrix.
type RequirementRow struct {
	RequirementID       string   `json:"requirement_id"`
	Title               string   `json:"title"`
	Type                string   `json:"type"`
	Priority            string   `json:"priority"`
	RegulatoryStandards []string `json:"regulatory_standards"`
}

// TestCaseRow is the test case summary carried in a traceability matrix.
type TestCaseRow struct {
	TestCaseID     string   `json:"test_case_id"`
	Title          string   `json:"title"`
	Priority       string   `json:"priority"`
	RequirementID  string   `json:"requirement_id,omitempty"`
	ComplianceTags []string `json:"compliance_tags"`
}

// MatrixCoverage summarizes link coverage over the matrix.
type MatrixCoverage struct {
	TotalRequirements       int     `json:"total_requirements"`
	RequirementsWithTests   int     `json:"requirements_with_tests"`
	RequirementsCoveragePct float64 `json:"requirements_coverage_percentage"`
	TotalTestCases          int     `json:"total_test_cases"`
	TestCasesWithReqs       int     `json:"test_cases_with_requirements"`
	TestCasesCoveragePct    float64 `json:"test_cases_coverage_percentage"`
	OrphanedRequirements    int     `json:"orphaned_requirements"`
	OrphanedTestCases       int     `json:"orphaned_test_cases"`
}

// Matrix is the full traceability matrix: every item, every link, and the
// coverage analysis over the link graph.
type Matrix struct {
	Requirements []RequirementRow `json:"requirements"`
	TestCases    []TestCaseRow    `json:"test_cases"`
	Links        []TraceLink      `json:"links"`
	Coverage     MatrixCoverage   `json:"coverage_analysis"`
}

// BuildMatrix assembles a traceability matrix. Coverage counts an item as
// covered when any link, in either direction, connects it to the other kind.
func BuildMatrix(requirements []Requirement, testCases []TestCase, links []TraceLink) *Matrix {
	m := &Matrix{
		Requirements: make([]RequirementRow, 0, len(requirements)),
		TestCases:    make([]TestCaseRow, 0, len(testCases)),
		Links:        links,
	}
	if m.Links == nil {
		m.Links = []TraceLink{}
	}

	for _, r := range requirements {
		m.Requirements = append(m.Requirements, RequirementRow{
			RequirementID:       r.ID,
			Title:               r.Title,
			Type:                r.Type,
			Priority:            r.Priority,
			RegulatoryStandards: r.RegulatoryStandards,
		})
	}
	for _, tc := range testCases {
		m.TestCases = append(m.TestCases, TestCaseRow{
			TestCaseID:     tc.ID,
			Title:          tc.Title,
			Priority:       tc.Priority,
			RequirementID:  tc.RequirementID,
			ComplianceTags: tc.ComplianceTags,
		})
	}

	knownReqs := make(map[string]bool, len(requirements))
	for _, r := range requirements {
		knownReqs[r.ID] = true
	}
	knownTCs := make(map[string]bool, len(testCases))
	for _, tc := range testCases {
		knownTCs[tc.ID] = true
	}

	// Links to unknown items are carried in the matrix but never counted,
	// so orphan counts cannot go negative.
	coveredReqs := make(map[string]bool)
	coveredTCs := make(map[string]bool)
	mark := func(reqID, tcID string) {
		if knownReqs[reqID] {
			coveredReqs[reqID] = true
		}
		if knownTCs[tcID] {
			coveredTCs[tcID] = true
		}
	}
	for _, l := range links {
		switch {
		case l.SourceType == NodeRequirement && l.TargetType == NodeTestCase:
			mark(l.SourceID, l.TargetID)
		case l.SourceType == NodeTestCase && l.TargetType == NodeRequirement:
			mark(l.TargetID, l.SourceID)
		}
	}

	cov := MatrixCoverage{
		TotalRequirements:     len(requirements),
		RequirementsWithTests: len(coveredReqs),
		TotalTestCases:        len(testCases),
		TestCasesWithReqs:     len(coveredTCs),
		OrphanedRequirements:  len(requirements) - len(coveredReqs),
		OrphanedTestCases:     len(testCases) - len(coveredTCs),
	}
	if cov.TotalRequirements > 0 {
		cov.RequirementsCoveragePct = float64(cov.RequirementsWithTests) / float64(cov.TotalRequirements) * 100
	}
	if cov.TotalTestCases > 0 {
		cov.TestCasesCoveragePct = float64(cov.TestCasesWithReqs) / float64(cov.TotalTestCases) * 100
	}
	m.Coverage = cov
	return m
}
