package compliance

import (
	"fmt"
	"strings"
)

// Engine evaluates entities against the rule catalog. It is stateless apart
// from read access to the immutable catalog, so a single Engine is safe for
// unrestricted concurrent use.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog returns the engine's rule catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// EvaluateRequirement scores one requirement against one rule. When no
// requirement pattern matches, the returned result carries LevelUnknown and
// must be discarded by the caller.
func (e *Engine) EvaluateRequirement(req Entity, rule *Rule) Result {
	text := req.text()

	matches, matched := matchPatterns(text, rule.RequirementPatterns)
	if matches == 0 {
		return unknownResult(rule)
	}

	evidence := make([]string, 0, len(matched))
	for _, p := range matched {
		evidence = append(evidence, "Found pattern: "+p.Source)
	}

	patternScore := float64(matches) / float64(len(rule.RequirementPatterns))
	if patternScore > 1.0 {
		patternScore = 1.0
	}
	score := patternScore*requirementPatternWeight +
		criteriaScore(text, rule.ValidationCriteria)*requirementCriteriaWeight

	var findings, recommendations []string
	level := classify(score)
	switch level {
	case PartiallyCompliant:
		findings = append(findings, "Requirement partially meets compliance criteria")
		recommendations = append(recommendations, fmt.Sprintf("Enhance requirement to fully comply with %s", rule.Standard))
	case NonCompliant:
		findings = append(findings, "Requirement does not meet compliance criteria")
		recommendations = append(recommendations, fmt.Sprintf("Revise requirement to comply with %s", rule.Standard))
	}

	if rule.ValidationCriteria["requires_traceability"] && !strings.Contains(text, "traceability") {
		recommendations = append(recommendations, "Add traceability requirements")
	}
	if rule.ValidationCriteria["requires_risk_analysis"] && !strings.Contains(text, "risk") {
		recommendations = append(recommendations, "Include risk analysis requirements")
	}

	return Result{
		RuleID:          rule.RuleID,
		Standard:        rule.Standard,
		ComplianceLevel: level,
		Score:           score,
		Findings:        findings,
		Recommendations: recommendations,
		Evidence:        evidence,
		RiskAssessment:  rule.RiskLevel,
	}
}

// EvaluateTestCase scores one test case against one rule. related, when
// non-nil, is the requirement the test case verifies; matching the rule's
// requirement patterns there keeps the rule in play and earns a fixed bonus.
func (e *Engine) EvaluateTestCase(tc Entity, rule *Rule, related *Entity) Result {
	text := tc.fullText()

	matches, matched := matchPatterns(text, rule.TestCasePatterns)

	reqMatches := 0
	if related != nil {
		reqMatches = countMatches(related.text(), rule.RequirementPatterns)
	}

	if matches == 0 && reqMatches == 0 {
		return unknownResult(rule)
	}

	evidence := make([]string, 0, len(matched)+1)
	for _, p := range matched {
		evidence = append(evidence, "Found test pattern: "+p.Source)
	}

	patternScore := testCaseDefaultPatternBase
	if len(rule.TestCasePatterns) > 0 {
		patternScore = float64(matches) / float64(len(rule.TestCasePatterns))
		if patternScore > 1.0 {
			patternScore = 1.0
		}
	}

	score := patternScore * testCasePatternWeight
	if reqMatches > 0 {
		score += testCaseRequirementBonus
		evidence = append(evidence, "Test case addresses compliance-related requirements")
	}

	score = (score + CompletenessScore(tc)) / 2

	var findings, recommendations []string
	level := classify(score)
	switch level {
	case PartiallyCompliant:
		findings = append(findings, "Test case partially covers compliance requirements")
		recommendations = append(recommendations, fmt.Sprintf("Enhance test case to fully verify %s compliance", rule.Standard))
	case NonCompliant:
		findings = append(findings, "Test case does not adequately verify compliance")
		recommendations = append(recommendations, fmt.Sprintf("Add test steps to verify %s compliance", rule.Standard))
	}

	if rule.ValidationCriteria["requires_security_testing"] && !strings.Contains(text, "security") {
		recommendations = append(recommendations, "Add security testing steps")
	}
	if rule.ValidationCriteria["requires_verification"] && !strings.Contains(text, "verify") {
		recommendations = append(recommendations, "Add verification steps")
	}

	return Result{
		RuleID:          rule.RuleID,
		Standard:        rule.Standard,
		ComplianceLevel: level,
		Score:           score,
		Findings:        findings,
		Recommendations: recommendations,
		Evidence:        evidence,
		RiskAssessment:  rule.RiskLevel,
	}
}
