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

package monitoring

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func Test_metrics_record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordOperationPoll(ctx, "zonal")
	m.RecordOperationPoll(ctx, "zonal")
	m.RecordOperationComplete(ctx, "zonal", "done", time.Second)
	m.RecordAPIError(ctx, "NotFound", 404)
	m.RecordLaunch(ctx, "gce", "success")
	m.RecordDriverOperation(ctx, "gce", "volume", "create")

	sums := collectSums(t, reader)
	for name, want := range map[string]int64{
		"aquarium_gce_operation_polls_total": 2,
		"aquarium_gce_operations_total":      1,
		"aquarium_gce_api_errors_total":      1,
		"aquarium_gce_launches_total":        1,
		"aquarium_driver_operations_total":   1,
	} {
		if sums[name] != want {
			t.Errorf("%s = %d; want: %d", name, sums[name], want)
		}
	}
}

func Test_metrics_nil_safe(t *testing.T) {
	var m *Metrics
	// Should not panic
	m.RecordOperationPoll(context.Background(), "global")
	m.RecordOperationComplete(context.Background(), "global", "done", 0)
	m.RecordAPIError(context.Background(), "General", 500)
	m.RecordLaunch(context.Background(), "gce", "failure")
}

func Test_monitor_disabled(t *testing.T) {
	mon, err := Initialize(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if mon.IsEnabled() {
		t.Fatal("Monitoring should be disabled by default")
	}
	if mon.GetMetrics() == nil {
		t.Fatal("GetMetrics should return default metrics")
	}
	if err := mon.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}
