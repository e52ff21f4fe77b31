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

// Package drivers loads & prepares the configured provider driver instances
package drivers

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/util"

	// Load all the available provider drivers
	_ "github.com/adobe/aquarium-gce/lib/drivers/provider/gce"
	_ "github.com/adobe/aquarium-gce/lib/drivers/provider/test"
)

// ConfigDrivers is used in the config definition
type ConfigDrivers struct {
	Providers map[string]util.UnparsedJSON `json:"providers"`
}

var (
	providerDriversMu sync.RWMutex
	providerDrivers   map[string]provider.Driver
)

// Init loads and prepares the configured drivers, all of them should be prepared successfully
func Init(ctx context.Context, configs ConfigDrivers) error {
	logger := log.WithFunc("drivers", "Init")
	logger.Debug("Running init...")
	defer logger.Debug("Init completed")

	instances, err := load(configs)
	if err != nil {
		logger.Error("Unable to load drivers", "err", err)
		return err
	}
	activated, errs := prepare(ctx, instances, configs)

	providerDriversMu.Lock()
	providerDrivers = activated
	providerDriversMu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("Drivers: Failed to prepare drivers: %w", errors.Join(errs...))
	}
	return nil
}

// load making the drivers instances map with specified names
func load(configs ConfigDrivers) (map[string]provider.Driver, error) {
	logger := log.WithFunc("drivers", "load")

	instances := make(map[string]provider.Driver)
	for _, fbr := range provider.FactoryList {
		// One provider could be used multiple times by utilizing config suffixes
		for name := range configs.Providers {
			if name == fbr.Name() || strings.HasPrefix(name, fbr.Name()+"/") {
				instances[name] = fbr.New()
				instances[name].SetName(name)
				logger.Info("Provider driver loaded", "provider.type", fbr.Name(), "provider.name", name)
			}
		}
	}

	if len(configs.Providers) > len(instances) {
		var missing []string
		for name := range configs.Providers {
			if _, ok := instances[name]; !ok {
				missing = append(missing, name)
			}
		}
		slices.Sort(missing)
		return nil, fmt.Errorf("Drivers: Unable to find provider drivers for %s", strings.Join(missing, ", "))
	}
	return instances, nil
}

// prepare initializes the drivers with provided configs, returns only the successfully prepared ones
func prepare(ctx context.Context, instances map[string]provider.Driver, configs ConfigDrivers) (map[string]provider.Driver, []error) {
	logger := log.WithFunc("drivers", "prepare")

	activated := make(map[string]provider.Driver)
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(instances)) {
		drv := instances[name]
		if err := drv.Prepare(ctx, configs.Providers[name].Bytes()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			logger.Error("Provider driver prepare failed", "provider.name", name, "err", err)
			continue
		}
		activated[name] = drv
		logger.Info("Provider driver activated", "provider.name", name)
	}
	return activated, errs
}

// GetProvider returns specific provider driver by name
func GetProvider(name string) provider.Driver {
	providerDriversMu.RLock()
	defer providerDriversMu.RUnlock()
	if providerDrivers == nil {
		log.WithFunc("drivers", "GetProvider").Error("Provider drivers are not initialized to request the driver instance", "provider.name", name)
		return nil
	}
	return providerDrivers[name]
}

// ProviderNames lists the activated driver instances
func ProviderNames() []string {
	providerDriversMu.RLock()
	defer providerDriversMu.RUnlock()
	return slices.Sorted(maps.Keys(providerDrivers))
}
