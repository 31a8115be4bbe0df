package compliance

import (
	"fmt"
	"regexp"
)

// Pattern is a compiled detection pattern. Source is the raw expression as it
// appears in the catalog; it doubles as the evidence label when the pattern
// matches.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

// compilePattern compiles a catalog expression in case-insensitive mode.
func compilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{Source: expr, re: re}, nil
}

// Match reports whether the pattern matches anywhere in text.
func (p Pattern) Match(text string) bool {
	return p.re.MatchString(text)
}

// Rule is a single compliance rule for a specific regulatory standard.
// Rules are built once at catalog construction and never mutated.
type Rule struct {
	RuleID              string
	Standard            string
	Title               string
	Description         string
	RequirementPatterns []Pattern
	TestCasePatterns    []Pattern
	Mandatory           bool
	RiskLevel           RiskLevel
	// ValidationCriteria maps a criterion name to whether it is required.
	// Criterion names without a known keyword mapping are skipped during
	// scoring (see criteria.go).
	ValidationCriteria map[string]bool
}

// ruleSpec is the uncompiled form a rule is declared in.
type ruleSpec struct {
	ruleID              string
	standard            string
	title               string
	description         string
	requirementPatterns []string
	testCasePatterns    []string
	mandatory           bool
	riskLevel           RiskLevel
	validationCriteria  map[string]bool
}

// compile turns a spec into a Rule, failing on the first malformed pattern.
// A bad pattern is a startup configuration defect, not a runtime condition.
func (s ruleSpec) compile() (*Rule, error) {
	r := &Rule{
		RuleID:             s.ruleID,
		Standard:           s.standard,
		Title:              s.title,
		Description:        s.description,
		Mandatory:          s.mandatory,
		RiskLevel:          s.riskLevel,
		ValidationCriteria: s.validationCriteria,
	}
	for _, expr := range s.requirementPatterns {
		p, err := compilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: requirement %w", s.ruleID, err)
		}
		r.RequirementPatterns = append(r.RequirementPatterns, p)
	}
	for _, expr := range s.testCasePatterns {
		p, err := compilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: test case %w", s.ruleID, err)
		}
		r.TestCasePatterns = append(r.TestCasePatterns, p)
	}
	return r, nil
}
