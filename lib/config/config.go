/**
 * Copyright 2021-2025 Adobe. All rights reserved.
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

// Package config reads the yaml configuration of the cli
package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/adobe/aquarium-gce/lib/drivers"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/monitoring"
	"github.com/adobe/aquarium-gce/lib/util"
)

// Config is the whole configuration file
type Config struct {
	Log        *log.Config        `json:"log"`
	Monitoring *monitoring.Config `json:"monitoring"`

	// Provider instance used when the command does not specify one
	DefaultProvider string `json:"default_provider"`

	Drivers drivers.ConfigDrivers `json:"drivers"`
}

// ReadConfigFile loads the yaml file, ${VAR} and ${VAR:default} are expanded from the environment
func (c *Config) ReadConfigFile(cfgPath string) error {
	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("Config: Unable to read config file %q: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal([]byte(util.ExpandEnv(string(data))), c); err != nil {
			return fmt.Errorf("Config: Unable to parse config file %q: %w", cfgPath, err)
		}
	}

	// Set defaults
	if c.Log == nil {
		c.Log = log.DefaultConfig()
	}
	if c.Monitoring == nil {
		c.Monitoring = monitoring.DefaultConfig()
	}
	if c.Drivers.Providers == nil {
		c.Drivers.Providers = map[string]util.UnparsedJSON{"gce": ""}
	}
	if c.DefaultProvider == "" && len(c.Drivers.Providers) == 1 {
		for name := range c.Drivers.Providers {
			c.DefaultProvider = name
		}
	}
	if c.DefaultProvider != "" {
		if _, ok := c.Drivers.Providers[c.DefaultProvider]; !ok {
			return fmt.Errorf("Config: Default provider %q is not configured", c.DefaultProvider)
		}
	}

	return nil
}
