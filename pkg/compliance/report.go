package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// topRecommendations is the cap on the frequency-ranked recommendation list.
const topRecommendations = 10

// RequirementInput pairs a requirement's public identifier with its
// evaluable snapshot.
type RequirementInput struct {
	ID     string
	Entity Entity
}

// TestCaseInput pairs a test case's public identifier with its snapshot.
// RequirementRef, when set, names the requirement the test case verifies.
type TestCaseInput struct {
	ID             string
	RequirementRef string
	Entity         Entity
}

// EntityCompliance is one entity's section of a report.
type EntityCompliance struct {
	EntityID string   `json:"entity_id"`
	Results  []Result `json:"compliance_results"`
}

// ReportSummary carries batch-level counts.
type ReportSummary struct {
	TotalRequirements int      `json:"total_requirements"`
	TotalTestCases    int      `json:"total_test_cases"`
	StandardsAssessed []string `json:"standards_assessed"`
}

// Report is the full cross-standard compliance report. It is built fresh per
// request and never persisted by the engine itself.
type Report struct {
	ReportID              string                    `json:"report_id"`
	GeneratedAt           time.Time                 `json:"generated_at"`
	Summary               ReportSummary             `json:"summary"`
	RequirementCompliance []EntityCompliance        `json:"requirement_compliance"`
	TestCaseCompliance    []EntityCompliance        `json:"test_case_compliance"`
	OverallCompliance     map[string]StandardRollup `json:"overall_compliance"`
	Recommendations       []string                  `json:"recommendations"`
	ContentHash           string                    `json:"content_hash"`
}

// ReportGenerator assembles reports from entity batches. Clock and ID
// generation are injectable for tests.
type ReportGenerator struct {
	engine  *Engine
	clock   func() time.Time
	newID   func() string
	workers int
}

// NewReportGenerator creates a generator over the given engine.
func NewReportGenerator(engine *Engine) *ReportGenerator {
	return &ReportGenerator{
		engine:  engine,
		clock:   time.Now,
		newID:   uuid.NewString,
		workers: runtime.NumCPU(),
	}
}

// WithClock overrides the clock for testing.
func (g *ReportGenerator) WithClock(clock func() time.Time) *ReportGenerator {
	g.clock = clock
	return g
}

// WithIDSource overrides report ID generation for testing.
func (g *ReportGenerator) WithIDSource(newID func() string) *ReportGenerator {
	g.newID = newID
	return g
}

// Generate assesses every requirement and test case and assembles the
// report. Entities are evaluated concurrently but results are reassembled in
// input order, so identical inputs always produce an identical report body.
func (g *ReportGenerator) Generate(requirements []RequirementInput, testCases []TestCaseInput) *Report {
	byRef := make(map[string]*Entity, len(requirements))
	for i := range requirements {
		byRef[requirements[i].ID] = &requirements[i].Entity
	}

	reqSections := make([]EntityCompliance, len(requirements))
	g.forEach(len(requirements), func(i int) {
		reqSections[i] = EntityCompliance{
			EntityID: requirements[i].ID,
			Results:  g.engine.AssessRequirement(requirements[i].Entity),
		}
	})

	tcSections := make([]EntityCompliance, len(testCases))
	g.forEach(len(testCases), func(i int) {
		var related *Entity
		if ref := testCases[i].RequirementRef; ref != "" {
			related = byRef[ref]
		}
		tcSections[i] = EntityCompliance{
			EntityID: testCases[i].ID,
			Results:  g.engine.AssessTestCase(testCases[i].Entity, related),
		}
	})

	var allReq, allTC []Result
	for _, s := range reqSections {
		allReq = append(allReq, s.Results...)
	}
	for _, s := range tcSections {
		allTC = append(allTC, s.Results...)
	}

	overall := make(map[string]StandardRollup)
	for _, std := range g.engine.catalog.Standards() {
		if rollup, ok := g.engine.Rollup(std, allReq, allTC); ok {
			overall[std] = rollup
		}
	}

	report := &Report{
		ReportID:    g.newID(),
		GeneratedAt: g.clock().UTC(),
		Summary: ReportSummary{
			TotalRequirements: len(requirements),
			TotalTestCases:    len(testCases),
			StandardsAssessed: g.engine.catalog.Standards(),
		},
		RequirementCompliance: reqSections,
		TestCaseCompliance:    tcSections,
		OverallCompliance:     overall,
		Recommendations:       rankRecommendations(allReq, allTC),
	}
	report.ContentHash = report.computeContentHash()
	return report
}

// forEach runs fn over [0,n) on a bounded worker pool. Output slots are
// pre-allocated by the caller so completion order does not matter.
func (g *ReportGenerator) forEach(n int, fn func(i int)) {
	workers := g.workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	idx := make(chan int)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := range idx {
				fn(i)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)
	for w := 0; w < workers; w++ {
		<-done
	}
}

// rankRecommendations counts every recommendation across all results and
// returns the top entries sorted by frequency, ties broken by first-seen
// order, rendered with their mention count.
func rankRecommendations(reqResults, tcResults []Result) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	collect := func(results []Result) {
		for _, r := range results {
			for _, rec := range r.Recommendations {
				if _, seen := counts[rec]; !seen {
					firstSeen[rec] = order
					order++
				}
				counts[rec]++
			}
		}
	}
	collect(reqResults)
	collect(tcResults)

	ranked := make([]string, 0, len(counts))
	for rec := range counts {
		ranked = append(ranked, rec)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return firstSeen[ranked[i]] < firstSeen[ranked[j]]
	})

	if len(ranked) > topRecommendations {
		ranked = ranked[:topRecommendations]
	}

	out := make([]string, len(ranked))
	for i, rec := range ranked {
		out[i] = fmt.Sprintf("%s (mentioned %d times)", rec, counts[rec])
	}
	return out
}

// computeContentHash hashes the deterministic report body: the canonical
// (JCS) JSON of the report with its volatile fields zeroed. Two reports over
// identical inputs share a hash even though IDs and timestamps differ.
func (r *Report) computeContentHash() string {
	body := *r
	body.ReportID = ""
	body.GeneratedAt = time.Time{}
	body.ContentHash = ""

	data, err := json.Marshal(&body)
	if err != nil {
		return ""
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		canonical = data
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:])
}

// FilterByStandards restricts an already-built report to the given
// standards. It is a pure function over the report: result lists are
// filtered, entities left with zero results are dropped from their section,
// and the overall rollup keeps only requested standards. Scoring is never
// re-run.
func (r *Report) FilterByStandards(standards []string) *Report {
	if len(standards) == 0 {
		return r
	}
	keep := make(map[string]bool, len(standards))
	for _, s := range standards {
		keep[s] = true
	}

	filterSections := func(sections []EntityCompliance) []EntityCompliance {
		out := make([]EntityCompliance, 0, len(sections))
		for _, sec := range sections {
			var kept []Result
			for _, res := range sec.Results {
				if keep[res.Standard] {
					kept = append(kept, res)
				}
			}
			if len(kept) > 0 {
				out = append(out, EntityCompliance{EntityID: sec.EntityID, Results: kept})
			}
		}
		return out
	}

	overall := make(map[string]StandardRollup)
	for std, rollup := range r.OverallCompliance {
		if keep[std] {
			overall[std] = rollup
		}
	}

	filtered := &Report{
		ReportID:              r.ReportID,
		GeneratedAt:           r.GeneratedAt,
		Summary:               r.Summary,
		RequirementCompliance: filterSections(r.RequirementCompliance),
		TestCaseCompliance:    filterSections(r.TestCaseCompliance),
		OverallCompliance:     overall,
		Recommendations:       r.Recommendations,
	}
	filtered.ContentHash = filtered.computeContentHash()
	return filtered
}
