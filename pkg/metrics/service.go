// Package metrics wires job and stage execution instruments through an
// OpenTelemetry meter backed by a Prometheus exporter, exposed over the
// standard exposition HTTP handler.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/flowforge/flowforge/pkg/logger"
)

const meterName = "flowforge"

// Service owns the meter provider and Prometheus registry, and exposes
// the instrument bundles the scheduler and stage packages record against.
type Service struct {
	meter       metric.Meter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	config      *Config
	initialized bool

	jobMetrics   *JobMetrics
	stageMetrics *StageMetrics
}

func newDisabledService(cfg *Config) *Service {
	meter := noop.NewMeterProvider().Meter(meterName)
	job, _ := newJobMetrics(meter)
	stage, _ := newStageMetrics(meter)
	return &Service{config: cfg, meter: meter, jobMetrics: job, stageMetrics: stage}
}

// NewService builds a Service. When cfg.Enabled is false (or cfg is nil),
// it returns a disabled service backed by a no-op meter — every recording
// call site stays safe to call unconditionally.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("metrics disabled, using no-op meter")
		return newDisabledService(cfg), nil
	}

	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("initializing prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	job, err := newJobMetrics(meter)
	if err != nil {
		return nil, err
	}
	stage, err := newStageMetrics(meter)
	if err != nil {
		return nil, err
	}

	log.Info("metrics service initialized", "path", cfg.Path)
	return &Service{
		meter:        meter,
		provider:     provider,
		registry:     registry,
		config:       cfg,
		initialized:  true,
		jobMetrics:   job,
		stageMetrics: stage,
	}, nil
}

// Meter returns the OpenTelemetry meter for ad hoc instrumentation beyond
// the bundled JobMetrics/StageMetrics.
func (s *Service) Meter() metric.Meter { return s.meter }

// JobMetrics exposes the job-execution instrument bundle.
func (s *Service) JobMetrics() *JobMetrics {
	if s == nil {
		return nil
	}
	return s.jobMetrics
}

// StageMetrics exposes the stage-execution instrument bundle.
func (s *Service) StageMetrics() *StageMetrics {
	if s == nil {
		return nil
	}
	return s.stageMetrics
}

// ExporterHandler returns the Prometheus exposition HTTP handler. It
// answers 503 when the service was constructed disabled.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics service not initialized"))
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Path returns the configured exposition path.
func (s *Service) Path() string { return s.config.Path }

// IsInitialized reports whether metrics collection is actually active.
func (s *Service) IsInitialized() bool { return s.initialized }

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}
