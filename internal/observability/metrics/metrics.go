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

// Metrics exposes application-level instruments.
type Metrics struct {
	leadTransitions    metric.Int64Counter
	leadsCreated       metric.Int64Counter
	notifications      metric.Int64Counter
	onboardingSteps    metric.Int64Counter
	eventsDispatched   metric.Int64Counter
	eventsFailed       metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	transitionConflict metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "partnerhub"
	}
	meter := provider.Meter(name)

	counters := map[string]*metric.Int64Counter{}
	m := &Metrics{}
	counters["partnerhub_lead_transitions_total"] = &m.leadTransitions
	counters["partnerhub_leads_created_total"] = &m.leadsCreated
	counters["partnerhub_notifications_emitted_total"] = &m.notifications
	counters["partnerhub_onboarding_steps_total"] = &m.onboardingSteps
	counters["partnerhub_events_dispatched_total"] = &m.eventsDispatched
	counters["partnerhub_events_failed_total"] = &m.eventsFailed
	counters["partnerhub_rate_limit_denied_total"] = &m.rateLimitDenied
	counters["partnerhub_transition_conflicts_total"] = &m.transitionConflict

	for counterName, target := range counters {
		counter, err := meter.Int64Counter(counterName)
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", counterName, err)
		}
		*target = counter
	}
	return m, nil
}

// RecordLeadTransition counts applied lead status changes.
func (m *Metrics) RecordLeadTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.leadTransitions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("from_status", from),
		attribute.String("to_status", to),
	)...))
}

func (m *Metrics) RecordLeadCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.leadsCreated.Add(ctx, 1)
}

// RecordTransitionConflict counts optimistic-lock losers per aggregate.
func (m *Metrics) RecordTransitionConflict(ctx context.Context, aggregate string) {
	if m == nil {
		return
	}
	m.transitionConflict.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("aggregate", aggregate),
	)...))
}

func (m *Metrics) RecordNotification(ctx context.Context, notificationType string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("notification_type", notificationType),
	)...))
}

func (m *Metrics) RecordOnboardingStep(ctx context.Context, phase string) {
	if m == nil {
		return
	}
	m.onboardingSteps.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("phase", phase),
	)...))
}

// RecordEventDispatch counts outbox deliveries by outcome.
func (m *Metrics) RecordEventDispatch(ctx context.Context, eventType string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("event_type", eventType))...)
	if err != nil {
		m.eventsFailed.Add(ctx, 1, attrs)
		return
	}
	m.eventsDispatched.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	)...))
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
	"from_status":       {},
	"to_status":         {},
	"aggregate":         {},
	"notification_type": {},
	"phase":             {},
	"event_type":        {},
	"endpoint":          {},
	"reason":            {},
	"status_code":       {},
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
