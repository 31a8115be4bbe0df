// Domain-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes used across spans and metrics.
var (
	AttrItemID   = attribute.Key("conformance.item.id")
	AttrItemType = attribute.Key("conformance.item.type")

	AttrStandard = attribute.Key("conformance.standard")
	AttrRuleID   = attribute.Key("conformance.rule.id")
	AttrLevel    = attribute.Key("conformance.level")
	AttrScore    = attribute.Key("conformance.score")

	AttrReportID       = attribute.Key("conformance.report.id")
	AttrReportReqCount = attribute.Key("conformance.report.requirements")
	AttrReportTCCount  = attribute.Key("conformance.report.test_cases")

	AttrDocumentFormat = attribute.Key("conformance.document.format")
	AttrALMPlatform    = attribute.Key("conformance.alm.platform")
)

// AssessmentAttrs creates attributes for one item assessment.
func AssessmentAttrs(itemType, itemID, standard, level string, score float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrItemType.String(itemType),
		AttrItemID.String(itemID),
		AttrStandard.String(standard),
		AttrLevel.String(level),
		AttrScore.Float64(score),
	}
}

// ReportAttrs creates attributes for report generation.
func ReportAttrs(reportID string, requirements, testCases int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrReportID.String(reportID),
		AttrReportReqCount.Int(requirements),
		AttrReportTCCount.Int(testCases),
	}
}

// UploadAttrs creates attributes for document ingestion.
func UploadAttrs(format string, itemCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDocumentFormat.String(format),
		AttrItemType.String("requirement"),
		AttrReportReqCount.Int(itemCount),
	}
}

// ALMAttrs creates attributes for ALM platform calls.
func ALMAttrs(platform, itemType, itemID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrALMPlatform.String(platform),
		AttrItemType.String(itemType),
		AttrItemID.String(itemID),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the current span when non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
