package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments for the assist gateway.
type Metrics struct {
	assistRequests   metric.Int64Counter
	assistCacheHits  metric.Int64Counter
	quotaDenied      metric.Int64Counter
	upstreamFailures metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "beacon"
	}
	meter := provider.Meter(name)

	assistRequests, err := meter.Int64Counter("beacon_assist_requests_total")
	if err != nil {
		return nil, err
	}
	assistCacheHits, err := meter.Int64Counter("beacon_assist_cache_hits_total")
	if err != nil {
		return nil, err
	}
	quotaDenied, err := meter.Int64Counter("beacon_assist_quota_denied_total")
	if err != nil {
		return nil, err
	}
	upstreamFailures, err := meter.Int64Counter("beacon_assist_upstream_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("beacon_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		assistRequests:   assistRequests,
		assistCacheHits:  assistCacheHits,
		quotaDenied:      quotaDenied,
		upstreamFailures: upstreamFailures,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordAssistRequest counts one gateway invocation per feature and outcome.
func (m *Metrics) RecordAssistRequest(ctx context.Context, feature, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature", strings.TrimSpace(feature)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.assistRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit counts responses served from a populated artifact slot.
func (m *Metrics) RecordCacheHit(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.assistCacheHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordQuotaDenied counts requests rejected by the quota policy.
func (m *Metrics) RecordQuotaDenied(ctx context.Context, feature, window string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature", strings.TrimSpace(feature)),
		attribute.String("window", strings.TrimSpace(window)),
	)
	m.quotaDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUpstreamFailure counts failed external generation calls.
func (m *Metrics) RecordUpstreamFailure(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.upstreamFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts requests rejected by the ingress limiter.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature":  {},
	"outcome":  {},
	"window":   {},
	"endpoint": {},
	"reason":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
