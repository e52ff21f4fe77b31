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

// Package test implements in-memory provider driver to check the callers without the cloud
package test

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adobe/aquarium-gce/lib/util"
)

// Config - test driver configuration
type Config struct {
	Location          string   `json:"location"`           // Default zone of the machines
	Products          []string `json:"products"`           // Available machine types, "small" & "large" by default
	LaunchConcurrency int      `json:"launch_concurrency"` // Parallel launches of LaunchMany

	FailConfigApply    uint8 `json:"fail_config_apply"`    // Fail on config Apply (0 - not, 1-254 random, 255-yes)
	FailConfigValidate uint8 `json:"fail_config_validate"` // Fail on config Validation (0 - not, 1-254 random, 255-yes)
	FailLaunch         uint8 `json:"fail_launch"`          // Fail on Launch (0 - not, 1-254 random, 255-yes)
	FailTerminate      uint8 `json:"fail_terminate"`       // Fail on Terminate (0 - not, 1-254 random, 255-yes)

	FailLaunchNames []string      `json:"fail_launch_names"` // Machines with those names are always failed to launch
	DelayLaunch     util.Duration `json:"delay_launch"`      // Time to pretend the machine is booting
}

// Apply takes json and applies it to the config structure
func (c *Config) Apply(config []byte) error {
	// Parse json
	if len(config) > 0 {
		if err := json.Unmarshal(config, c); err != nil {
			return fmt.Errorf("TEST: Unable to apply the driver config: %w", err)
		}
	}

	return randomFail("ConfigApply", c.FailConfigApply)
}

// Validate makes sure the config have the required defaults & that the required fields are set
func (c *Config) Validate() error {
	if c.Location == "" {
		c.Location = "test-zone-a"
	}
	if len(c.Products) == 0 {
		c.Products = []string{"small", "large"}
	}
	if c.LaunchConcurrency <= 0 {
		c.LaunchConcurrency = 4
	}
	if c.DelayLaunch < 0 {
		return fmt.Errorf("TEST: Launch delay can't be negative: %s", time.Duration(c.DelayLaunch))
	}
	return randomFail("ConfigValidate", c.FailConfigValidate)
}
