package compliance

// AssessRequirement runs the requirement evaluation over every rule in the
// catalog and keeps only results with at least one pattern match. Rules with
// zero evidence are silently omitted; LevelUnknown never surfaces.
func (e *Engine) AssessRequirement(req Entity) []Result {
	var results []Result
	for _, rule := range e.catalog.rules {
		r := e.EvaluateRequirement(req, rule)
		if r.ComplianceLevel != LevelUnknown {
			results = append(results, r)
		}
	}
	return results
}

// AssessTestCase runs the test-case evaluation over every rule in the
// catalog, keeping only non-UNKNOWN results. related may be nil.
func (e *Engine) AssessTestCase(tc Entity, related *Entity) []Result {
	var results []Result
	for _, rule := range e.catalog.rules {
		r := e.EvaluateTestCase(tc, rule, related)
		if r.ComplianceLevel != LevelUnknown {
			results = append(results, r)
		}
	}
	return results
}

// StandardRollup aggregates all results for one standard across a batch.
type StandardRollup struct {
	Score            float64 `json:"score"`
	ComplianceLevel  Level   `json:"compliance_level"`
	RequirementCount int     `json:"requirement_count"`
	TestCaseCount    int     `json:"test_case_count"`
}

// Rollup averages the requirement and test-case scores recorded for one
// standard. Groups are averaged independently; when both are populated the
// overall score is the mean of the two averages. The second return is false
// when the standard has no results in either group, in which case it must be
// omitted from the report.
func (e *Engine) Rollup(standard string, reqResults, tcResults []Result) (StandardRollup, bool) {
	var reqScores, tcScores []float64
	for _, r := range reqResults {
		if r.Standard == standard {
			reqScores = append(reqScores, r.Score)
		}
	}
	for _, r := range tcResults {
		if r.Standard == standard {
			tcScores = append(tcScores, r.Score)
		}
	}

	if len(reqScores) == 0 && len(tcScores) == 0 {
		return StandardRollup{}, false
	}

	var overall float64
	switch {
	case len(reqScores) > 0 && len(tcScores) > 0:
		overall = (mean(reqScores) + mean(tcScores)) / 2
	case len(reqScores) > 0:
		overall = mean(reqScores)
	default:
		overall = mean(tcScores)
	}

	return StandardRollup{
		Score:            overall,
		ComplianceLevel:  classify(overall),
		RequirementCount: len(reqScores),
		TestCaseCount:    len(tcScores),
	}, true
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
