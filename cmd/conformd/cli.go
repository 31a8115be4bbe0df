package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/medalign-labs/conformance/pkg/compliance"
	"github.com/medalign-labs/conformance/pkg/config"
	"github.com/medalign-labs/conformance/pkg/docparse"
	"github.com/medalign-labs/conformance/pkg/store"
	"github.com/medalign-labs/conformance/pkg/workitem"
)

// openItems opens the local work item store the server also uses.
func openItems() (*store.SQLiteWorkItemStore, *sql.DB, error) {
	cfg := config.Load()
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	items, err := store.NewSQLiteWorkItemStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return items, db, nil
}

// runAssessCmd implements `conformd assess`.
//
// Exit codes:
//
//	0 = assessed, no non-compliant results
//	1 = at least one non-compliant result
//	2 = runtime error
func runAssessCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("assess", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		requirementID string
		testCaseID    string
		jsonOutput    bool
	)

	cmd.StringVar(&requirementID, "requirement", "", "Requirement id to assess")
	cmd.StringVar(&testCaseID, "test-case", "", "Test case id to assess")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if (requirementID == "") == (testCaseID == "") {
		_, _ = fmt.Fprintln(stderr, "Error: exactly one of --requirement or --test-case is required")
		return 2
	}

	items, db, err := openItems()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 2
	}
	defer db.Close()

	engine := compliance.NewEngine(compliance.MustCatalog())
	ctx := context.Background()

	var (
		entityID string
		results  []compliance.Result
	)
	if requirementID != "" {
		req, err := items.GetRequirement(ctx, requirementID)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		entityID = req.ID
		results = engine.AssessRequirement(req.Entity())
	} else {
		tc, err := items.GetTestCase(ctx, testCaseID)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		var related *compliance.Entity
		if tc.RequirementID != "" {
			if req, err := items.GetRequirement(ctx, tc.RequirementID); err == nil {
				entity := req.Entity()
				related = &entity
			}
		}
		entityID = tc.ID
		results = engine.AssessTestCase(tc.Entity(), related)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"entity_id":          entityID,
			"compliance_results": results,
		}, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "%s%s%s\n", ColorBold, entityID, ColorReset)
		for _, res := range results {
			fmt.Fprintf(stdout, "  %-12s %-22s %.2f  %s\n", res.Standard, res.RuleID, res.Score, res.ComplianceLevel)
		}
	}

	for _, res := range results {
		if res.ComplianceLevel == compliance.NonCompliant {
			return 1
		}
	}
	return 0
}

// runReportCmd implements `conformd report`: a batch assessment over every
// stored work item.
func runReportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("report", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		standards string
		outPath   string
	)

	cmd.StringVar(&standards, "standards", "", "Comma-separated standards filter (e.g. HIPAA,GDPR)")
	cmd.StringVar(&outPath, "out", "", "Write the report to a file instead of stdout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	items, db, err := openItems()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 2
	}
	defer db.Close()

	ctx := context.Background()
	requirements, err := items.ListRequirements(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	testCases, err := items.ListTestCases(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var reqInputs []compliance.RequirementInput
	for _, req := range requirements {
		reqInputs = append(reqInputs, compliance.RequirementInput{ID: req.ID, Entity: req.Entity()})
	}
	var tcInputs []compliance.TestCaseInput
	for _, tc := range testCases {
		tcInputs = append(tcInputs, compliance.TestCaseInput{
			ID: tc.ID, RequirementRef: tc.RequirementID, Entity: tc.Entity(),
		})
	}

	engine := compliance.NewEngine(compliance.MustCatalog())
	report := compliance.NewReportGenerator(engine).Generate(reqInputs, tcInputs)
	if standards != "" {
		report = report.FilterByStandards(strings.Split(standards, ","))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error writing report: %v\n", err)
			return 2
		}
		fmt.Fprintf(stdout, "Report written: %s (%d requirements, %d test cases)\n",
			outPath, report.Summary.TotalRequirements, report.Summary.TotalTestCases)
		return 0
	}

	fmt.Fprintln(stdout, string(data))
	return 0
}

// runStandardsCmd lists the rule catalog's standards.
func runStandardsCmd(stdout, stderr io.Writer) int {
	catalog, err := compliance.NewCatalog()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "%sSupported standards%s\n", ColorBold, ColorReset)
	for _, info := range catalog.StandardsInfo() {
		fmt.Fprintf(stdout, "  %s%-12s%s %d rules (%d mandatory, %d high-risk)\n",
			ColorGreen, info.Name, ColorReset, info.RulesCount, info.MandatoryRules, info.HighRiskRules)
	}
	return 0
}

// runUploadCmd parses a local requirements document and stores the
// extracted items, using the same section heuristics as the API fallback.
func runUploadCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("upload", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var filePath string
	cmd.StringVar(&filePath, "file", "", "Document to parse (REQUIRED, .txt .md .xml)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if filePath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	filename := filepath.Base(filePath)
	doc, err := docparse.ParseBytes(filename, data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	items, db, err := openItems()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error opening store: %v\n", err)
		return 2
	}
	defer db.Close()

	ctx := context.Background()
	stored := 0
	for _, section := range docparse.ExtractSections(doc.Content) {
		title := workitem.TruncateTitle(section.Text, 80)
		req := workitem.Requirement{
			ID:             section.ID,
			Title:          strings.TrimSpace(title),
			Description:    section.Text,
			Type:           workitem.TypeFunctional,
			Priority:       workitem.PriorityMedium,
			SourceDocument: filename,
		}
		if err := req.Validate(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Skipping %s: %v\n", section.ID, err)
			continue
		}
		if err := items.PutRequirement(ctx, &req); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error storing %s: %v\n", section.ID, err)
			return 2
		}
		stored++
	}

	fmt.Fprintf(stdout, "Stored %d requirements from %s\n", stored, filename)
	return 0
}
