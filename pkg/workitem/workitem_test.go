package workitem

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestRequirementValidate(t *testing.T) {
	r := &Requirement{
		ID:          "REQ-001",
		Title:       "Patient data privacy",
		Description: "Protect patient data privacy.",
		Type:        TypeRegulatory,
		Priority:    PriorityHigh,
	}
	require.NoError(t, r.Validate())
}

func TestRequirementValidate_MissingFields(t *testing.T) {
	require.Error(t, (&Requirement{}).Validate())
	require.Error(t, (&Requirement{ID: "REQ-001"}).Validate())
	require.Error(t, (&Requirement{ID: "REQ-001", Title: "t", Description: "d", Priority: "urgent"}).Validate())
}

func TestRequirementEntity(t *testing.T) {
	r := &Requirement{
		ID:                  "REQ-001",
		Title:               "Access control",
		Description:         "Enforce access control.",
		Priority:            PriorityHigh,
		RegulatoryStandards: []string{"ISO 27001"},
	}
	e := r.Entity()
	require.Equal(t, r.Title, e.Title)
	require.Equal(t, r.Description, e.Description)
	require.Equal(t, []string{"ISO 27001"}, e.Standards)
	require.Empty(t, e.TestSteps)
}

func TestTestCaseEntity(t *testing.T) {
	tc := &TestCase{
		ID:              "TC-001",
		Title:           "Security test",
		Description:     "Probe the gateway.",
		TestSteps:       []string{"step one", "step two"},
		Preconditions:   "env ready",
		ExpectedResults: "access denied",
		Priority:        PriorityMedium,
		ComplianceTags:  []string{"HIPAA"},
	}
	e := tc.Entity()
	require.Equal(t, tc.TestSteps, e.TestSteps)
	require.Equal(t, "env ready", e.Preconditions)
	require.Equal(t, []string{"HIPAA"}, e.Standards)
}

func TestTraceLinkValidate(t *testing.T) {
	l := &TraceLink{
		SourceType: NodeRequirement,
		SourceID:   "REQ-001",
		TargetType: NodeTestCase,
		TargetID:   "TC-001",
		LinkType:   LinkCovers,
	}
	require.NoError(t, l.Validate())

	l.LinkType = "mentions"
	require.Error(t, l.Validate())

	l.LinkType = LinkValidates
	l.SourceType = "defect"
	require.Error(t, l.Validate())
}

func TestBuildMatrix(t *testing.T) {
	reqs := []Requirement{
		{ID: "REQ-001", Title: "A", Priority: PriorityHigh},
		{ID: "REQ-002", Title: "B", Priority: PriorityLow},
	}
	tcs := []TestCase{
		{ID: "TC-001", Title: "T1", Priority: PriorityHigh},
		{ID: "TC-002", Title: "T2", Priority: PriorityLow},
		{ID: "TC-003", Title: "T3", Priority: PriorityLow},
	}
	links := []TraceLink{
		{SourceType: NodeRequirement, SourceID: "REQ-001", TargetType: NodeTestCase, TargetID: "TC-001", LinkType: LinkCovers},
		{SourceType: NodeTestCase, SourceID: "TC-002", TargetType: NodeRequirement, TargetID: "REQ-001", LinkType: LinkValidates},
	}

	m := BuildMatrix(reqs, tcs, links)
	require.Len(t, m.Requirements, 2)
	require.Len(t, m.TestCases, 3)
	require.Len(t, m.Links, 2)

	require.Equal(t, 1, m.Coverage.RequirementsWithTests)
	require.InDelta(t, 50.0, m.Coverage.RequirementsCoveragePct, 1e-9)
	require.Equal(t, 2, m.Coverage.TestCasesWithReqs)
	require.Equal(t, 1, m.Coverage.OrphanedRequirements)
	require.Equal(t, 1, m.Coverage.OrphanedTestCases)
}

func TestBuildMatrix_UnknownLinkEndpoints(t *testing.T) {
	links := []TraceLink{
		{SourceType: NodeRequirement, SourceID: "REQ-GHOST", TargetType: NodeTestCase, TargetID: "TC-GHOST", LinkType: LinkCovers},
	}
	m := BuildMatrix(nil, nil, links)
	require.Zero(t, m.Coverage.RequirementsWithTests)
	require.Zero(t, m.Coverage.OrphanedRequirements)
	require.Len(t, m.Links, 1)
}

func TestTruncateTitle(t *testing.T) {
	require.Equal(t, "short", TruncateTitle("short", 80))

	long := strings.Repeat("a", 100)
	require.Equal(t, strings.Repeat("a", 80), TruncateTitle(long, 80))

	// Multi-byte runes must not be split mid-sequence.
	multibyte := strings.Repeat("ü", 100)
	got := TruncateTitle(multibyte, 80)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 80, utf8.RuneCountInString(got))
}
