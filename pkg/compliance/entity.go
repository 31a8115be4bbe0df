package compliance

// Entity is the caller-supplied snapshot the engine evaluates. The engine
// owns none of this data and never mutates it; missing fields default to
// empty and degrade scores rather than erroring.
type Entity struct {
	Title       string
	Description string

	// Test-case structural fields. Left empty for requirements.
	TestSteps       []string
	Preconditions   string
	ExpectedResults string
	Postconditions  string
	Priority        string

	// Standards carries the entity's declared regulatory standards (for
	// requirements) or compliance tags (for test cases). The engine reads
	// it only for coverage filtering, never for scoring.
	Standards []string
}

// text returns the normalized title+description blob used for requirement
// scoring and criteria checks.
func (e Entity) text() string {
	return NormalizeText(e.Title, e.Description)
}

// fullText returns the normalized title+description+steps blob used for
// test-case scoring.
func (e Entity) fullText() string {
	parts := make([]string, 0, len(e.TestSteps)+2)
	parts = append(parts, e.Title, e.Description)
	parts = append(parts, e.TestSteps...)
	return NormalizeText(parts...)
}

// declaresStandard reports whether the entity lists the given standard.
func (e Entity) declaresStandard(standard string) bool {
	for _, s := range e.Standards {
		if s == standard {
			return true
		}
	}
	return false
}

// Result is the outcome of evaluating one entity against one rule.
// Results are immutable once produced and consumed only to build reports.
type Result struct {
	RuleID          string    `json:"rule_id"`
	Standard        string    `json:"standard"`
	ComplianceLevel Level     `json:"compliance_level"`
	Score           float64   `json:"score"`
	Findings        []string  `json:"findings"`
	Recommendations []string  `json:"recommendations"`
	Evidence        []string  `json:"evidence"`
	RiskAssessment  RiskLevel `json:"risk_assessment"`
}

// unknownResult is the discarded-by-caller sentinel for rules with zero
// matching evidence. It never surfaces in a report.
func unknownResult(rule *Rule) Result {
	return Result{
		RuleID:          rule.RuleID,
		Standard:        rule.Standard,
		ComplianceLevel: LevelUnknown,
		Score:           0.0,
		RiskAssessment:  RiskUnknown,
	}
}
