/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Author: Sergei Parshev (@sparshev)

// Package monitoring provides OpenTelemetry-based observability for the drivers
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	otellog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adobe/aquarium-gce/lib/build"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/util"
)

const serviceName = "aquarium-gce"

// Config defines monitoring configuration
type Config struct {
	Enabled         bool          `json:"enabled"`          // Enable/disable monitoring
	OTLPEndpoint    string        `json:"otlp_endpoint"`    // OTLP grpc endpoint for traces, metrics, logs
	ServiceName     string        `json:"service_name"`     // Service name for telemetry
	ServiceVersion  string        `json:"service_version"`  // Service version
	SampleRate      float64       `json:"sample_rate"`      // Trace sampling rate (0.0 to 1.0)
	MetricsInterval util.Duration `json:"metrics_interval"` // Metrics export & system collection interval
	EnableTracing   bool          `json:"enable_tracing"`   // Enable tracing
	EnableMetrics   bool          `json:"enable_metrics"`   // Enable metrics
	EnableLogs      bool          `json:"enable_logs"`      // Enable logs export
	EnableSystem    bool          `json:"enable_system"`    // Collect host cpu/mem while running
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		OTLPEndpoint:    "localhost:4317",
		ServiceName:     serviceName,
		ServiceVersion:  build.Version,
		SampleRate:      1.0,
		MetricsInterval: util.Duration(15 * time.Second),
		EnableTracing:   true,
		EnableMetrics:   true,
		EnableLogs:      true,
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	config        *Config
	conn          *grpc.ClientConn
	metrics       *Metrics
	shutdownFuncs []func(context.Context) error
}

// Initialize sets up OpenTelemetry providers, the instruments created through
// the otel globals before this call are switched to the real providers automatically
func Initialize(ctx context.Context, config *Config) (*Monitor, error) {
	logger := log.WithFunc("monitoring", "Initialize")
	if config == nil || !config.Enabled {
		logger.Debug("Monitoring disabled")
		return &Monitor{config: &Config{}}, nil
	}

	logger.Info("Initializing OpenTelemetry", "endpoint", config.OTLPEndpoint)

	m := &Monitor{config: config}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// One connection is shared by all the exporters
	m.conn, err = grpc.NewClient(config.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	m.shutdownFuncs = append(m.shutdownFuncs, func(context.Context) error { return m.conn.Close() })

	if config.EnableTracing {
		if err := m.initTracing(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		logger.Debug("Tracing initialized")
	}

	if config.EnableMetrics {
		if err := m.initMetrics(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		logger.Debug("Metrics initialized")
	}

	if config.EnableLogs {
		if err := m.initLogging(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.Debug("Logs export initialized")
	}

	m.metrics = Default()
	if config.EnableMetrics && config.EnableSystem {
		m.metrics.StartCollection(ctx, time.Duration(config.MetricsInterval))
		m.shutdownFuncs = append(m.shutdownFuncs, func(context.Context) error {
			m.metrics.StopCollection()
			return nil
		})
	}

	return m, nil
}

func (m *Monitor) initTracing(ctx context.Context, res *resource.Resource) error {
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(m.conn))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(m.config.SampleRate))),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.shutdownFuncs = append(m.shutdownFuncs, tracerProvider.Shutdown)
	return nil
}

func (m *Monitor) initMetrics(ctx context.Context, res *resource.Resource) error {
	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(m.conn))
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter,
			metric.WithInterval(time.Duration(m.config.MetricsInterval)))),
	)

	otel.SetMeterProvider(meterProvider)

	m.shutdownFuncs = append(m.shutdownFuncs, meterProvider.Shutdown)
	return nil
}

func (m *Monitor) initLogging(ctx context.Context, res *resource.Resource) error {
	logExporter, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(m.conn))
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}

	loggerProvider := otellog.NewLoggerProvider(
		otellog.WithProcessor(otellog.NewBatchProcessor(logExporter)),
		otellog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)

	m.shutdownFuncs = append(m.shutdownFuncs, loggerProvider.Shutdown)

	return log.SetupOtelIntegration()
}

// GetMetrics returns the metrics collection
func (m *Monitor) GetMetrics() *Metrics {
	if m.metrics == nil {
		return Default()
	}
	return m.metrics
}

// IsEnabled returns whether monitoring is enabled
func (m *Monitor) IsEnabled() bool {
	return m.config.Enabled
}

// Shutdown flushes the exporters, should be called before the process exit
func (m *Monitor) Shutdown(ctx context.Context) error {
	var errs []error
	// Reverse order, the connection is closed last
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		if err := m.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.shutdownFuncs = nil
	return errors.Join(errs...)
}
