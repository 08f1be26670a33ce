// Package metrics records dynroute request and route-table metrics with
// OpenTelemetry and exposes them in Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/pario-ai/dynroute"

// Outcome classifies how a dynamic request was answered.
type Outcome string

const (
	OutcomeUncached Outcome = "uncached"
	OutcomeHit      Outcome = "hit"
	OutcomeMiss     Outcome = "miss"
	OutcomeFault    Outcome = "fault"
	OutcomeBypass   Outcome = "bypass"
)

// Recorder is safe for concurrent use. The zero value is not usable; see New and NewNoop.
type Recorder struct {
	requests     metric.Int64Counter
	routeChanges metric.Int64Counter
	provider     *sdkmetric.MeterProvider
	handler      http.Handler
}

// New creates a Recorder backed by a private Prometheus registry.
func New() (*Recorder, error) {
	reg := promclient.NewRegistry()
	exp, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	r, err := newRecorder(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	r.provider = provider
	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r, nil
}

// NewNoop returns a Recorder that discards everything.
func NewNoop() *Recorder {
	r, _ := newRecorder(noop.NewMeterProvider().Meter(meterName))
	r.handler = http.NotFoundHandler()
	return r
}

func newRecorder(meter metric.Meter) (*Recorder, error) {
	requests, err := meter.Int64Counter(
		"dynroute.requests",
		metric.WithDescription("Dynamic endpoint requests by route and cache outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	routeChanges, err := meter.Int64Counter(
		"dynroute.routes.changes",
		metric.WithDescription("Route table changes by operation"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{requests: requests, routeChanges: routeChanges}, nil
}

// RecordRequest counts one answered request.
func (r *Recorder) RecordRequest(ctx context.Context, route string, outcome Outcome) {
	r.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("outcome", string(outcome)),
	))
}

// RecordRouteChange counts a route table operation (map, remove, clear).
func (r *Recorder) RecordRouteChange(ctx context.Context, op string) {
	r.routeChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// Handler serves the Prometheus exposition.
func (r *Recorder) Handler() http.Handler {
	return r.handler
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.provider == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
