package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("feature", "summary"),
		attribute.String("user_id", "123"),
		attribute.String("outcome", "cache_hit"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatal("expected user_id to be dropped")
		}
	}
}

func TestNilMetricsRecordersAreSafe(t *testing.T) {
	var m *Metrics
	ctx := t.Context()
	m.RecordAssistRequest(ctx, "summary", "generated")
	m.RecordCacheHit(ctx, "summary")
	m.RecordQuotaDenied(ctx, "summary", "minute")
	m.RecordUpstreamFailure(ctx, "summary")
	m.RecordRateLimitDenied(ctx, "/api", "user-rate")
}
