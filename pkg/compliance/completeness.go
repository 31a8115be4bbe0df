package compliance

// Completeness weights. Structural presence only; no content analysis.
// The weights sum to 1.0 when every field is populated.
const (
	weightTitle           = 0.1
	weightDescription     = 0.1
	weightPreconditions   = 0.1
	weightTestSteps       = 0.3
	weightExpectedResults = 0.2
	weightPostconditions  = 0.1
	weightPriority        = 0.1
)

// CompletenessScore measures how many of a test case's structural fields are
// populated. Presence means non-empty; it says nothing about quality.
func CompletenessScore(tc Entity) float64 {
	score := 0.0
	if tc.Title != "" {
		score += weightTitle
	}
	if tc.Description != "" {
		score += weightDescription
	}
	if tc.Preconditions != "" {
		score += weightPreconditions
	}
	if len(tc.TestSteps) > 0 {
		score += weightTestSteps
	}
	if tc.ExpectedResults != "" {
		score += weightExpectedResults
	}
	if tc.Postconditions != "" {
		score += weightPostconditions
	}
	if tc.Priority != "" {
		score += weightPriority
	}
	return score
}
