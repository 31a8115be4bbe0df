package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/medalign-labs/conformance/pkg/workitem"

	_ "modernc.org/sqlite"
)

// SQLiteWorkItemStore keeps requirements, test cases and trace links in a
// single SQLite database.
type SQLiteWorkItemStore struct {
	db *sql.DB
}

// NewSQLiteWorkItemStore wraps db and creates the schema if missing.
func NewSQLiteWorkItemStore(db *sql.DB) (*SQLiteWorkItemStore, error) {
	s := &SQLiteWorkItemStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteWorkItemStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS requirements (
		requirement_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		source_document TEXT,
		regulatory_standards JSON,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS test_cases (
		test_case_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		preconditions TEXT,
		test_steps JSON,
		expected_results TEXT,
		postconditions TEXT,
		priority TEXT NOT NULL,
		test_data JSON,
		compliance_tags JSON,
		requirement_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trace_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		link_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (source_type, source_id, target_type, target_id, link_type)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// ── Requirements ──

// PutRequirement inserts or replaces a requirement. UpdatedAt is stamped on
// every write; CreatedAt is preserved from the record.
func (s *SQLiteWorkItemStore) PutRequirement(ctx context.Context, r *workitem.Requirement) error {
	if err := r.Validate(); err != nil {
		return err
	}
	standards, _ := json.Marshal(r.RegulatoryStandards)

	query := `INSERT INTO requirements (
		requirement_id, title, description, type, priority, source_document, regulatory_standards, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (requirement_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		type = excluded.type,
		priority = excluded.priority,
		source_document = excluded.source_document,
		regulatory_standards = excluded.regulatory_standards,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Title, r.Description, r.Type, r.Priority, r.SourceDocument, string(standards),
		created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put requirement %s: %w", r.ID, err)
	}
	return nil
}

const requirementColumns = "requirement_id, title, description, type, priority, source_document, regulatory_standards, created_at, updated_at"

// GetRequirement returns one requirement or ErrNotFound.
func (s *SQLiteWorkItemStore) GetRequirement(ctx context.Context, id string) (*workitem.Requirement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements WHERE requirement_id = ?", id)
	r, err := scanRequirement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("requirement %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRequirements returns every requirement ordered by id.
func (s *SQLiteWorkItemStore) ListRequirements(ctx context.Context) ([]workitem.Requirement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements ORDER BY requirement_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []workitem.Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRequirement removes a requirement; missing ids are ErrNotFound.
func (s *SQLiteWorkItemStore) DeleteRequirement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM requirements WHERE requirement_id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("requirement %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner) (*workitem.Requirement, error) {
	var (
		r         workitem.Requirement
		source    sql.NullString
		standards sql.NullString
		created   string
		updated   string
	)
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Type, &r.Priority, &source, &standards, &created, &updated); err != nil {
		return nil, err
	}
	r.SourceDocument = source.String
	if standards.Valid && standards.String != "" {
		_ = json.Unmarshal([]byte(standards.String), &r.RegulatoryStandards)
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// ── Test cases ──

// PutTestCase inserts or replaces a test case.
func (s *SQLiteWorkItemStore) PutTestCase(ctx context.Context, tc *workitem.TestCase) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	steps, _ := json.Marshal(tc.TestSteps)
	data, _ := json.Marshal(tc.TestData)
	tags, _ := json.Marshal(tc.ComplianceTags)

	query := `INSERT INTO test_cases (
		test_case_id, title, description, preconditions, test_steps, expected_results,
		postconditions, priority, test_data, compliance_tags, requirement_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (test_case_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		preconditions = excluded.preconditions,
		test_steps = excluded.test_steps,
		expected_results = excluded.expected_results,
		postconditions = excluded.postconditions,
		priority = excluded.priority,
		test_data = excluded.test_data,
		compliance_tags = excluded.compliance_tags,
		requirement_id = excluded.requirement_id,
		updated_at = excluded.updated_at`

	now := time.Now().UTC()
	created := tc.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx, query,
		tc.ID, tc.Title, tc.Description, tc.Preconditions, string(steps), tc.ExpectedResults,
		tc.Postconditions, tc.Priority, string(data), string(tags), tc.RequirementID,
		created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put test case %s: %w", tc.ID, err)
	}
	return nil
}

const testCaseColumns = "test_case_id, title, description, preconditions, test_steps, expected_results, postconditions, priority, test_data, compliance_tags, requirement_id, created_at, updated_at"

// GetTestCase returns one test case or ErrNotFound.
func (s *SQLiteWorkItemStore) GetTestCase(ctx context.Context, id string) (*workitem.TestCase, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+testCaseColumns+" FROM test_cases WHERE test_case_id = ?", id)
	tc, err := scanTestCase(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test case %s: %w", id, ErrNotFound)
	}
	return tc, err
}

// ListTestCases returns every test case ordered by id.
func (s *SQLiteWorkItemStore) ListTestCases(ctx context.Context) ([]workitem.TestCase, error) {
	return s.queryTestCases(ctx,
		"SELECT "+testCaseColumns+" FROM test_cases ORDER BY test_case_id")
}

// ListTestCasesForRequirement returns the test cases linked to a requirement
// through their requirement_id column.
func (s *SQLiteWorkItemStore) ListTestCasesForRequirement(ctx context.Context, requirementID string) ([]workitem.TestCase, error) {
	return s.queryTestCases(ctx,
		"SELECT "+testCaseColumns+" FROM test_cases WHERE requirement_id = ? ORDER BY test_case_id",
		requirementID)
}

// DeleteTestCase removes a test case; missing ids are ErrNotFound.
func (s *SQLiteWorkItemStore) DeleteTestCase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM test_cases WHERE test_case_id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("test case %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteWorkItemStore) queryTestCases(ctx context.Context, query string, args ...any) ([]workitem.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []workitem.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tc)
	}
	return out, rows.Err()
}

func scanTestCase(row rowScanner) (*workitem.TestCase, error) {
	var (
		tc       workitem.TestCase
		desc     sql.NullString
		pre      sql.NullString
		steps    sql.NullString
		expected sql.NullString
		post     sql.NullString
		data     sql.NullString
		tags     sql.NullString
		reqID    sql.NullString
		created  string
		updated  string
	)
	if err := row.Scan(&tc.ID, &tc.Title, &desc, &pre, &steps, &expected, &post, &tc.Priority, &data, &tags, &reqID, &created, &updated); err != nil {
		return nil, err
	}
	tc.Description = desc.String
	tc.Preconditions = pre.String
	tc.ExpectedResults = expected.String
	tc.Postconditions = post.String
	tc.RequirementID = reqID.String
	if steps.Valid && steps.String != "" {
		_ = json.Unmarshal([]byte(steps.String), &tc.TestSteps)
	}
	if data.Valid && data.String != "" {
		_ = json.Unmarshal([]byte(data.String), &tc.TestData)
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &tc.ComplianceTags)
	}
	tc.CreatedAt = parseTime(created)
	tc.UpdatedAt = parseTime(updated)
	return &tc, nil
}

// ── Trace links ──

// CreateLink stores a new traceability link. An identical existing link is
// ErrDuplicate.
func (s *SQLiteWorkItemStore) CreateLink(ctx context.Context, l *workitem.TraceLink) (*workitem.TraceLink, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trace_links (source_type, source_id, target_type, target_id, link_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.SourceType, l.SourceID, l.TargetType, l.TargetID, l.LinkType, created.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("trace link: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("create trace link: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	stored := *l
	stored.ID = id
	stored.CreatedAt = created
	return &stored, nil
}

// ListLinks returns every trace link ordered by id.
func (s *SQLiteWorkItemStore) ListLinks(ctx context.Context) ([]workitem.TraceLink, error) {
	return s.queryLinks(ctx,
		"SELECT id, source_type, source_id, target_type, target_id, link_type, created_at FROM trace_links ORDER BY id")
}

// ListLinksForItem returns links where the item appears on either end.
func (s *SQLiteWorkItemStore) ListLinksForItem(ctx context.Context, itemType, itemID string) ([]workitem.TraceLink, error) {
	return s.queryLinks(ctx,
		`SELECT id, source_type, source_id, target_type, target_id, link_type, created_at FROM trace_links
		 WHERE (source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)
		 ORDER BY id`,
		itemType, itemID, itemType, itemID)
}

// DeleteLink removes a trace link by id; missing ids are ErrNotFound.
func (s *SQLiteWorkItemStore) DeleteLink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM trace_links WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trace link %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteWorkItemStore) queryLinks(ctx context.Context, query string, args ...any) ([]workitem.TraceLink, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []workitem.TraceLink
	for rows.Next() {
		var (
			l       workitem.TraceLink
			created string
		)
		if err := rows.Scan(&l.ID, &l.SourceType, &l.SourceID, &l.TargetType, &l.TargetID, &l.LinkType, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
