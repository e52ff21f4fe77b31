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

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/adobe/aquarium-gce/lib/log"
)

// Metrics holds the instruments of the drivers
type Metrics struct {
	// Operation poller
	operationPolls    metric.Int64Counter
	operations        metric.Int64Counter
	operationDuration metric.Float64Histogram

	// Provider API
	apiErrors metric.Int64Counter

	// Resources
	launches        metric.Int64Counter
	driverOperation metric.Int64Counter

	// System
	cpuUsage    metric.Float64Gauge
	memoryUsage metric.Float64Gauge
	goroutines  metric.Int64Gauge
	heapBytes   metric.Int64Gauge

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the process-wide metrics created on the otel global meter, which
// is noop until Initialize sets the real meter provider
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.Meter(serviceName)); err != nil {
			log.WithFunc("monitoring", "Default").Warn("Unable to create metrics, using noop", "err", err)
			defaultMetrics, _ = NewMetrics(noop.NewMeterProvider().Meter(serviceName))
		}
	})
	return defaultMetrics
}

// NewMetrics creates the instruments on the provided meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{stopCh: make(chan struct{})}

	var err error
	if m.operationPolls, err = meter.Int64Counter(
		"aquarium_gce_operation_polls_total",
		metric.WithDescription("Number of operation status fetches"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation_polls metric: %w", err)
	}

	if m.operations, err = meter.Int64Counter(
		"aquarium_gce_operations_total",
		metric.WithDescription("Number of awaited operations by scope and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operations metric: %w", err)
	}

	if m.operationDuration, err = meter.Float64Histogram(
		"aquarium_gce_operation_duration_seconds",
		metric.WithDescription("Time spent awaiting the operations"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation_duration metric: %w", err)
	}

	if m.apiErrors, err = meter.Int64Counter(
		"aquarium_gce_api_errors_total",
		metric.WithDescription("Provider errors by kind and http status"),
	); err != nil {
		return nil, fmt.Errorf("failed to create api_errors metric: %w", err)
	}

	if m.launches, err = meter.Int64Counter(
		"aquarium_gce_launches_total",
		metric.WithDescription("Virtual machine launches by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create launches metric: %w", err)
	}

	if m.driverOperation, err = meter.Int64Counter(
		"aquarium_driver_operations_total",
		metric.WithDescription("Driver operations by resource and action"),
	); err != nil {
		return nil, fmt.Errorf("failed to create driver_operations metric: %w", err)
	}

	if m.cpuUsage, err = meter.Float64Gauge("aquarium_system_cpu_usage_percent", metric.WithUnit("%")); err != nil {
		return nil, fmt.Errorf("failed to create cpu_usage metric: %w", err)
	}

	if m.memoryUsage, err = meter.Float64Gauge("aquarium_system_memory_usage_percent", metric.WithUnit("%")); err != nil {
		return nil, fmt.Errorf("failed to create memory_usage metric: %w", err)
	}

	if m.goroutines, err = meter.Int64Gauge("aquarium_go_goroutines"); err != nil {
		return nil, fmt.Errorf("failed to create goroutines metric: %w", err)
	}

	if m.heapBytes, err = meter.Int64Gauge("aquarium_go_memory_heap_bytes", metric.WithUnit("bytes")); err != nil {
		return nil, fmt.Errorf("failed to create heap metric: %w", err)
	}

	return m, nil
}

// RecordOperationPoll counts one status fetch of the operation in scope
func (m *Metrics) RecordOperationPoll(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.operationPolls.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordOperationComplete records the await outcome: done, failed, timeout or error
func (m *Metrics) RecordOperationComplete(ctx context.Context, scope, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAPIError counts the mapped provider error
func (m *Metrics) RecordAPIError(ctx context.Context, kind string, httpStatus int) {
	if m == nil {
		return
	}
	m.apiErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("http_status", httpStatus),
	))
}

// RecordLaunch counts the virtual machine launch with "success" or "failure" status
func (m *Metrics) RecordLaunch(ctx context.Context, driver, status string) {
	if m == nil {
		return
	}
	m.launches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("driver", driver),
		attribute.String("status", status),
	))
}

// RecordDriverOperation counts the resource action executed by the driver
func (m *Metrics) RecordDriverOperation(ctx context.Context, driver, resource, action string) {
	if m == nil {
		return
	}
	m.driverOperation.Add(ctx, 1, metric.WithAttributes(
		attribute.String("driver", driver),
		attribute.String("resource", resource),
		attribute.String("action", action),
	))
}

// StartCollection starts the periodic system metrics collection
func (m *Metrics) StartCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m.wg.Add(1)
	go m.collectLoop(ctx, interval)
}

// StopCollection stops the collection and waits for the loop to exit
func (m *Metrics) StopCollection() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

func (m *Metrics) collectLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Metrics) collect(ctx context.Context) {
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		m.cpuUsage.Record(ctx, cpuPercent[0])
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.memoryUsage.Record(ctx, memInfo.UsedPercent)
	}

	m.goroutines.Record(ctx, int64(runtime.NumGoroutine()))

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.heapBytes.Record(ctx, int64(stats.HeapAlloc))
}
