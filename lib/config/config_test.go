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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func Test_read_config_file(t *testing.T) {
	t.Setenv("TEST_GCE_PROJECT", "my-project")
	path := writeConfig(t, `---
log:
  level: debug
  format: json
monitoring:
  enabled: true
  metrics_interval: 30s
default_provider: gce/eu
drivers:
  providers:
    gce/eu:
      project_id: ${TEST_GCE_PROJECT}
      zone: ${TEST_GCE_ZONE:europe-west1-b}
      operation_timeout: 5m
      instance_labels:
        team: ci
    test: {}
`)

	var cfg Config
	if err := cfg.ReadConfigFile(path); err != nil {
		t.Fatalf("ReadConfigFile() error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	if !cfg.Monitoring.Enabled || time.Duration(cfg.Monitoring.MetricsInterval) != 30*time.Second {
		t.Fatalf("Monitoring = %+v", cfg.Monitoring)
	}
	if cfg.DefaultProvider != "gce/eu" || len(cfg.Drivers.Providers) != 2 {
		t.Fatalf("Drivers = %+v", cfg.Drivers)
	}

	var gce map[string]any
	if err := json.Unmarshal(cfg.Drivers.Providers["gce/eu"].Bytes(), &gce); err != nil {
		t.Fatalf("Driver config is not json: %v", err)
	}
	if gce["project_id"] != "my-project" || gce["zone"] != "europe-west1-b" || gce["operation_timeout"] != "5m" {
		t.Fatalf("Driver config = %v", gce)
	}
}

func Test_read_config_defaults(t *testing.T) {
	var cfg Config
	if err := cfg.ReadConfigFile(""); err != nil {
		t.Fatalf("ReadConfigFile() error: %v", err)
	}
	if cfg.Log == nil || cfg.Log.Level != "info" || cfg.Monitoring == nil || cfg.Monitoring.Enabled {
		t.Fatalf("Defaults are not set: %+v", cfg)
	}
	if cfg.DefaultProvider != "gce" {
		t.Fatalf("DefaultProvider = %q; want gce", cfg.DefaultProvider)
	}
}

func Test_read_config_errors(t *testing.T) {
	tests := map[string]string{
		"Unable to parse":   "drivers: [1, 2",
		"is not configured": "default_provider: gce/us\ndrivers:\n  providers:\n    gce: {}\n",
		"Unable to read":    "",
	}
	for want, data := range tests {
		t.Run(want, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yml")
			if data != "" {
				path = writeConfig(t, data)
			}
			var cfg Config
			if err := cfg.ReadConfigFile(path); err == nil || !strings.Contains(err.Error(), want) {
				t.Fatalf("ReadConfigFile() error = %v; want %q", err, want)
			}
		})
	}
}
