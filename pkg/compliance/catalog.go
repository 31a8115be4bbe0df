package compliance

import "fmt"

// Catalog is the process-wide, read-only collection of compliance rules.
// It is constructed once at startup and safe for unrestricted concurrent
// reads; no mutation operations exist after construction.
type Catalog struct {
	rules     []*Rule
	byID      map[string]*Rule
	standards []string
}

// StandardInfo summarizes the rules registered under one standard.
type StandardInfo struct {
	Name           string `json:"name"`
	RulesCount     int    `json:"rules_count"`
	MandatoryRules int    `json:"mandatory_rules"`
	HighRiskRules  int    `json:"high_risk_rules"`
}

// supportedStandards is the fixed list of standards the engine assesses.
// ISO 9001 is listed with no rules of its own; quality-system coverage is
// carried by the ISO 13485 rule set.
var supportedStandards = []string{
	"FDA 21 CFR Part 820",
	"IEC 62304",
	"ISO 13485",
	"ISO 9001",
	"ISO 27001",
	"HIPAA",
	"GDPR",
}

// NewCatalog builds the embedded rule catalog. It returns an error if any
// pattern fails to compile, so a malformed catalog is caught at startup.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{
		byID:      make(map[string]*Rule, len(ruleSpecs)),
		standards: supportedStandards,
	}
	for _, spec := range ruleSpecs {
		rule, err := spec.compile()
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[rule.RuleID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", rule.RuleID)
		}
		c.rules = append(c.rules, rule)
		c.byID[rule.RuleID] = rule
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on a malformed catalog.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns every rule in declaration order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Rule returns the rule with the given ID.
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// RulesForStandard returns the rules registered under a standard.
func (c *Catalog) RulesForStandard(standard string) []*Rule {
	var out []*Rule
	for _, r := range c.rules {
		if r.Standard == standard {
			out = append(out, r)
		}
	}
	return out
}

// Standards returns the fixed list of supported standard labels.
func (c *Catalog) Standards() []string {
	out := make([]string, len(c.standards))
	copy(out, c.standards)
	return out
}

// StandardsInfo returns per-standard rule statistics.
func (c *Catalog) StandardsInfo() []StandardInfo {
	infos := make([]StandardInfo, 0, len(c.standards))
	for _, std := range c.standards {
		info := StandardInfo{Name: std}
		for _, r := range c.rules {
			if r.Standard != std {
				continue
			}
			info.RulesCount++
			if r.Mandatory {
				info.MandatoryRules++
			}
			if r.RiskLevel == RiskHigh {
				info.HighRiskRules++
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// ruleSpecs is the embedded rule catalog. Pattern expressions are escaped
// literals with \s+ for whitespace flexibility; they encode the domain
// vocabulary and their semantics must not be loosened.
var ruleSpecs = []ruleSpec{
	{
		ruleID:      "FDA_820_001",
		standard:    "FDA 21 CFR Part 820",
		title:       "Design Controls",
		description: "Software development must follow design control procedures",
		requirementPatterns: []string{
			`design\s+control`,
			`design\s+input`,
			`design\s+output`,
			`design\s+review`,
			`design\s+verification`,
			`design\s+validation`,
		},
		testCasePatterns: []string{
			`verify\s+design`,
			`validate\s+design`,
			`design\s+review`,
			`traceability`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_traceability": true,
			"requires_verification": true,
			"requires_validation":   true,
		},
	},
	{
		ruleID:      "FDA_820_002",
		standard:    "FDA 21 CFR Part 820",
		title:       "Risk Management",
		description: "Risk analysis and management throughout development",
		requirementPatterns: []string{
			`risk\s+analysis`,
			`risk\s+management`,
			`hazard\s+analysis`,
			`failure\s+mode`,
		},
		testCasePatterns: []string{
			`risk\s+test`,
			`safety\s+test`,
			`hazard\s+test`,
			`failure\s+test`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_risk_analysis": true,
			"requires_mitigation":    true,
		},
	},
	{
		ruleID:      "IEC_62304_001",
		standard:    "IEC 62304",
		title:       "Software Safety Classification",
		description: "Software must be classified according to safety requirements",
		requirementPatterns: []string{
			`safety\s+class`,
			`class\s+[abc]`,
			`safety\s+classification`,
			`medical\s+device\s+software`,
		},
		testCasePatterns: []string{
			`safety\s+test`,
			`class\s+[abc]\s+test`,
			`safety\s+verification`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_classification":  true,
			"requires_safety_analysis": true,
		},
	},
	{
		ruleID:      "IEC_62304_002",
		standard:    "IEC 62304",
		title:       "Software Development Lifecycle",
		description: "Structured software development process",
		requirementPatterns: []string{
			`software\s+development\s+plan`,
			`development\s+lifecycle`,
			`software\s+architecture`,
			`software\s+design`,
		},
		testCasePatterns: []string{
			`integration\s+test`,
			`system\s+test`,
			`software\s+test`,
			`unit\s+test`,
		},
		mandatory: true,
		riskLevel: RiskMedium,
		validationCriteria: map[string]bool{
			"requires_documentation": true,
			"requires_testing":       true,
		},
	},
	{
		ruleID:      "ISO_13485_001",
		standard:    "ISO 13485",
		title:       "Quality Management System",
		description: "Quality management system for medical devices",
		requirementPatterns: []string{
			`quality\s+management`,
			`qms`,
			`quality\s+system`,
			`quality\s+control`,
		},
		testCasePatterns: []string{
			`quality\s+test`,
			`qms\s+test`,
			`quality\s+verification`,
		},
		mandatory: true,
		riskLevel: RiskMedium,
		validationCriteria: map[string]bool{
			"requires_documentation": true,
			"requires_procedures":    true,
		},
	},
	{
		ruleID:      "ISO_27001_001",
		standard:    "ISO 27001",
		title:       "Information Security Management",
		description: "Information security controls and management",
		requirementPatterns: []string{
			`information\s+security`,
			`data\s+security`,
			`security\s+control`,
			`access\s+control`,
			`encryption`,
			`authentication`,
		},
		testCasePatterns: []string{
			`security\s+test`,
			`access\s+control\s+test`,
			`authentication\s+test`,
			`encryption\s+test`,
			`penetration\s+test`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_security_testing": true,
			"requires_access_control":   true,
		},
	},
	{
		ruleID:      "HIPAA_001",
		standard:    "HIPAA",
		title:       "Protected Health Information",
		description: "Protection of patient health information",
		requirementPatterns: []string{
			`protected\s+health\s+information`,
			`phi`,
			`patient\s+data`,
			`health\s+information`,
			`privacy`,
			`confidentiality`,
		},
		testCasePatterns: []string{
			`privacy\s+test`,
			`phi\s+test`,
			`data\s+protection\s+test`,
			`confidentiality\s+test`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_privacy_protection": true,
			"requires_audit_trail":        true,
		},
	},
	{
		ruleID:      "GDPR_001",
		standard:    "GDPR",
		title:       "Data Protection and Privacy",
		description: "General Data Protection Regulation compliance",
		requirementPatterns: []string{
			`data\s+protection`,
			`gdpr`,
			`personal\s+data`,
			`data\s+subject\s+rights`,
			`consent`,
			`data\s+processing`,
		},
		testCasePatterns: []string{
			`gdpr\s+test`,
			`data\s+protection\s+test`,
			`consent\s+test`,
			`data\s+subject\s+test`,
			`privacy\s+test`,
		},
		mandatory: true,
		riskLevel: RiskHigh,
		validationCriteria: map[string]bool{
			"requires_consent_management":  true,
			"requires_data_subject_rights": true,
		},
	},
}
