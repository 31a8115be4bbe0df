package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medalign-labs/conformance/pkg/compliance"

	_ "github.com/lib/pq"
)

// PostgresReportStore archives generated reports. The full report body is
// kept as JSONB with the hash and timestamp lifted into columns for lookup.
type PostgresReportStore struct {
	db *sql.DB
}

// NewPostgresReportStore wraps db; call Init before first use.
func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Init creates the schema if missing.
func (s *PostgresReportStore) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS compliance_reports (
		report_id TEXT PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL,
		content_hash TEXT NOT NULL,
		body JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS compliance_reports_content_hash_idx
		ON compliance_reports (content_hash)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save archives one report.
func (s *PostgresReportStore) Save(ctx context.Context, report *compliance.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO compliance_reports (report_id, generated_at, content_hash, body)
		 VALUES ($1, $2, $3, $4)`,
		report.ReportID, report.GeneratedAt, report.ContentHash, body)
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ReportID, err)
	}
	return nil
}

// Get returns one archived report or ErrNotFound.
func (s *PostgresReportStore) Get(ctx context.Context, reportID string) (*compliance.Report, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT body FROM compliance_reports WHERE report_id = $1", reportID)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
		}
		return nil, err
	}
	var report compliance.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", reportID, err)
	}
	return &report, nil
}

// ReportRef identifies one archived report without its body.
type ReportRef struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ContentHash string    `json:"content_hash"`
}

// List returns the most recent report refs, newest first.
func (s *PostgresReportStore) List(ctx context.Context, limit int) ([]ReportRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, generated_at, content_hash FROM compliance_reports
		 ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var refs []ReportRef
	for rows.Next() {
		var ref ReportRef
		if err := rows.Scan(&ref.ReportID, &ref.GeneratedAt, &ref.ContentHash); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
