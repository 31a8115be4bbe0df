package artifacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medalign-labs/conformance/pkg/compliance"
)

// Archive stores generated report bodies and uploaded source documents in a
// content-addressed Store.
type Archive struct {
	store Store
}

// NewArchive wraps store.
func NewArchive(store Store) *Archive {
	return &Archive{store: store}
}

// SaveReport archives the JSON body of a report and returns its blob hash.
// The blob hash covers the full body including report id and timestamp, so it
// differs from the report's own ContentHash, which skips volatile fields.
func (a *Archive) SaveReport(ctx context.Context, report *compliance.Report) (string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	hash, err := a.store.Put(ctx, body)
	if err != nil {
		return "", fmt.Errorf("archive report %s: %w", report.ReportID, err)
	}
	return hash, nil
}

// LoadReport retrieves an archived report by its blob hash.
func (a *Archive) LoadReport(ctx context.Context, hash string) (*compliance.Report, error) {
	body, err := a.store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	var report compliance.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode archived report %s: %w", hash, err)
	}
	return &report, nil
}

// SaveDocument archives the raw bytes of an uploaded source document.
func (a *Archive) SaveDocument(ctx context.Context, data []byte) (string, error) {
	return a.store.Put(ctx, data)
}

// LoadDocument retrieves an archived source document by its blob hash.
func (a *Archive) LoadDocument(ctx context.Context, hash string) ([]byte, error) {
	return a.store.Get(ctx, hash)
}
