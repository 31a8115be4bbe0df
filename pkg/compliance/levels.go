// Package compliance implements the regulatory compliance assessment engine:
// a fixed catalog of pattern-based rules applied to requirement and test-case
// records to produce graded verdicts, rolled up into cross-standard reports.
//
// The engine is a heuristic scorer over textual evidence. It performs no
// natural-language understanding and offers no guarantee of legal or
// regulatory correctness.
package compliance

// Level grades how well an entity satisfies a rule.
type Level string

const (
	Compliant          Level = "compliant"
	PartiallyCompliant Level = "partially_compliant"
	NonCompliant       Level = "non_compliant"
	LevelUnknown       Level = "unknown"
)

// RiskLevel is the static risk classification attached to a rule. The engine
// never computes risk; it only propagates the rule's level into results.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "high"
	RiskMedium  RiskLevel = "medium"
	RiskLow     RiskLevel = "low"
	RiskUnknown RiskLevel = "unknown"
)

// Classification thresholds and blend weights. These are part of the engine
// contract: downstream report semantics depend on the exact values.
const (
	compliantThreshold = 0.8
	partialThreshold   = 0.5

	requirementPatternWeight  = 0.6
	requirementCriteriaWeight = 0.4

	testCasePatternWeight      = 0.7
	testCaseRequirementBonus   = 0.3
	testCaseDefaultPatternBase = 0.5
)

// classify maps a score in [0,1] to a compliance level.
func classify(score float64) Level {
	switch {
	case score >= compliantThreshold:
		return Compliant
	case score >= partialThreshold:
		return PartiallyCompliant
	default:
		return NonCompliant
	}
}
