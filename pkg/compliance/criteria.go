package compliance

import "strings"

// criterionKeywords maps a validation-criterion name to the keywords whose
// presence satisfies it. Criterion names absent from this table are skipped
// during scoring and neither help nor penalize.
var criterionKeywords = map[string][]string{
	"requires_traceability":     {"traceability", "trace"},
	"requires_verification":     {"verify", "verification"},
	"requires_validation":       {"validate", "validation"},
	"requires_risk_analysis":    {"risk", "hazard"},
	"requires_security_testing": {"security", "secure"},
	"requires_documentation":    {"document", "record"},
}

// criteriaScore computes the satisfaction ratio of a rule's validation
// criteria against normalized entity text. Only criteria flagged required
// and backed by a known keyword set enter the ratio; zero such criteria
// yields 1.0 (vacuous truth).
func criteriaScore(text string, criteria map[string]bool) float64 {
	satisfied, total := 0, 0
	for name, required := range criteria {
		if !required {
			continue
		}
		keywords, known := criterionKeywords[name]
		if !known {
			continue
		}
		total++
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				satisfied++
				break
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(satisfied) / float64(total)
}
