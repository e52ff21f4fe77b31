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

// Package gce implements driver for Google Compute Engine
package gce

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/adobe/aquarium-gce/lib/util"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"

	defaultOperationTimeout  = 20 * time.Minute
	defaultPollInterval      = time.Second
	defaultImagePollInterval = 30 * time.Second
	defaultLaunchConcurrency = 8
	defaultVerifyRetries     = 6
	defaultVerifyRetryDelay  = 10 * time.Second
)

// Config - driver configuration
type Config struct {
	ProjectID string `json:"project_id"` // Project to manage resources in
	Region    string `json:"region"`     // Default region for regional resources, derived from zone if empty
	Zone      string `json:"zone"`       // Default zone for zonal resources

	// Service account credentials, could be set directly or through the key file
	KeyFile      string `json:"key_file"` // Path to service account json key
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`

	// Optional
	ProxyHost string `json:"proxy_host"`
	ProxyPort int    `json:"proxy_port"`

	InstanceLabels    map[string]string `json:"instance_labels"`     // Labels to set on every created resource
	RequestsPerSecond float64           `json:"requests_per_second"` // Client-side API rate limit, 0 - unlimited
	LaunchConcurrency int               `json:"launch_concurrency"`  // How many machines LaunchMany creates in parallel

	// Various options to not hardcode the important numbers
	OperationTimeout  util.Duration `json:"operation_timeout"`   // Maximum wait for operation completion, default: 20m
	PollInterval      util.Duration `json:"poll_interval"`       // Delay between operation status fetches, default: 1s
	ImagePollInterval util.Duration `json:"image_poll_interval"` // Same for the image operations, default: 30s
	VerifyRetries     int           `json:"verify_retries"`      // Attempts to verify the credentials on prepare, default: 6
	VerifyRetryDelay  util.Duration `json:"verify_retry_delay"`  // Delay between verify attempts, default: 10s

	// Endpoints override, used to point the driver to the emulator or mock
	ComputeEndpoint string `json:"compute_endpoint"`
	StorageEndpoint string `json:"storage_endpoint"`
	AdminEndpoint   string `json:"admin_endpoint"`
	Anonymous       bool   `json:"anonymous"` // Do not authenticate requests
}

// serviceAccountKey is the json key file issued by the provider
type serviceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// Apply takes json and applies it to the config structure
func (c *Config) Apply(config []byte) error {
	if len(config) > 0 {
		if err := json.Unmarshal(config, c); err != nil {
			return fmt.Errorf("GCE: Unable to apply the driver config: %w", err)
		}
	}
	return nil
}

// Validate makes sure the config have the required defaults & that the required fields are set
func (c *Config) Validate() error {
	if c.KeyFile != "" {
		if err := c.loadKeyFile(); err != nil {
			return err
		}
	}

	if c.ProjectID == "" {
		return fmt.Errorf("GCE: Project ID is not set")
	}
	if !c.Anonymous {
		if c.ClientEmail == "" {
			return fmt.Errorf("GCE: Credentials client email is not set")
		}
		if c.PrivateKey == "" {
			return fmt.Errorf("GCE: Credentials private key is not set")
		}
	}
	if c.Region == "" && c.Zone != "" {
		c.Region = regionFromZone(c.Zone)
	}
	if c.Zone != "" && regionFromZone(c.Zone) != c.Region {
		return fmt.Errorf("GCE: Zone %q is not in region %q", c.Zone, c.Region)
	}
	if (c.ProxyHost == "") != (c.ProxyPort == 0) {
		return fmt.Errorf("GCE: Both proxy host and port should be set")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("GCE: Requests per second can't be negative: %v", c.RequestsPerSecond)
	}

	// Set defaults
	if c.TokenURI == "" {
		c.TokenURI = defaultTokenURI
	}
	if c.InstanceLabels == nil {
		c.InstanceLabels = make(map[string]string)
	}
	if c.LaunchConcurrency <= 0 {
		c.LaunchConcurrency = defaultLaunchConcurrency
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = util.Duration(defaultOperationTimeout)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = util.Duration(defaultPollInterval)
	}
	if c.ImagePollInterval <= 0 {
		c.ImagePollInterval = util.Duration(defaultImagePollInterval)
	}
	if c.VerifyRetries <= 0 {
		c.VerifyRetries = defaultVerifyRetries
	}
	if c.VerifyRetryDelay <= 0 {
		c.VerifyRetryDelay = util.Duration(defaultVerifyRetryDelay)
	}

	return nil
}

// loadKeyFile fills the credentials which were not set directly
func (c *Config) loadKeyFile() error {
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return fmt.Errorf("GCE: Unable to read key file %q: %w", c.KeyFile, err)
	}
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("GCE: Unable to parse key file %q: %w", c.KeyFile, err)
	}
	if key.Type != "" && key.Type != "service_account" {
		return fmt.Errorf("GCE: Key file %q has unsupported type %q", c.KeyFile, key.Type)
	}

	if c.ProjectID == "" {
		c.ProjectID = key.ProjectID
	}
	if c.ClientEmail == "" {
		c.ClientEmail = key.ClientEmail
	}
	if c.PrivateKey == "" {
		c.PrivateKey = key.PrivateKey
	}
	if c.PrivateKeyID == "" {
		c.PrivateKeyID = key.PrivateKeyID
	}
	if c.TokenURI == "" {
		c.TokenURI = key.TokenURI
	}
	return nil
}

// account returns the identity used to get the api clients
func (c *Config) account() Account {
	return Account{
		ProjectID:         c.ProjectID,
		ClientEmail:       c.ClientEmail,
		PrivateKey:        c.PrivateKey,
		PrivateKeyID:      c.PrivateKeyID,
		TokenURI:          c.TokenURI,
		ProxyHost:         c.ProxyHost,
		ProxyPort:         c.ProxyPort,
		RequestsPerSecond: c.RequestsPerSecond,
		ComputeEndpoint:   c.ComputeEndpoint,
		StorageEndpoint:   c.StorageEndpoint,
		AdminEndpoint:     c.AdminEndpoint,
		Anonymous:         c.Anonymous,
	}
}
