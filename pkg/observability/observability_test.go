package observability

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func disabledProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	return p
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "conformance-engine", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.True(t, config.Enabled)
	require.False(t, config.Insecure)
}

func TestNewProviderDisabled(t *testing.T) {
	p := disabledProvider(t)
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
}

func TestTrackAssessment(t *testing.T) {
	p := disabledProvider(t)

	attrs := AssessmentAttrs("requirement", "REQ-001", "HIPAA", "compliant", 0.9)
	ctx, finish := p.TrackAssessment(context.Background(), "assess.requirement", attrs...)
	require.NotNil(t, ctx)

	time.Sleep(time.Millisecond)
	finish(nil)
}

func TestTrackAssessmentWithError(t *testing.T) {
	p := disabledProvider(t)

	_, finish := p.TrackAssessment(context.Background(), "assess.requirement")
	finish(errors.New("rule catalog unavailable"))
}

func TestRecordMetricsDisabled(t *testing.T) {
	p := disabledProvider(t)
	ctx := context.Background()

	// No-ops when the provider is disabled.
	p.RecordAssessment(ctx, AttrStandard.String("GDPR"))
	p.RecordError(ctx, errors.New("boom"), AttrStandard.String("GDPR"))
	p.RecordDuration(ctx, 100*time.Millisecond)
}

func TestStartSpan(t *testing.T) {
	p := disabledProvider(t)

	ctx, span := p.StartSpan(context.Background(), "report.generate")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestShutdown(t *testing.T) {
	p := disabledProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestAssessmentAttrs(t *testing.T) {
	attrs := AssessmentAttrs("test_case", "TC-001", "ISO 27001", "partially_compliant", 0.71)
	require.Len(t, attrs, 5)
	require.Equal(t, "conformance.item.type", string(attrs[0].Key))
	require.Equal(t, "TC-001", attrs[1].Value.AsString())
	require.Equal(t, 0.71, attrs[4].Value.AsFloat64())
}

func TestReportAttrs(t *testing.T) {
	attrs := ReportAttrs("rep-1", 12, 30)
	require.Len(t, attrs, 3)
	require.Equal(t, "conformance.report.id", string(attrs[0].Key))
	require.Equal(t, int64(12), attrs[1].Value.AsInt64())
}

func TestSpanHelpers(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, SpanFromContext(ctx))

	AddSpanEvent(ctx, "pattern.matched", attribute.String("pattern", "design control"))
	SetSpanStatus(ctx, errors.New("bad input"))
	SetSpanStatus(ctx, nil)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	require.Equal(t, slog.LevelError, parseLevel(" ERROR "))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
