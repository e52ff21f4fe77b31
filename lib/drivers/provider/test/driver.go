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

package test

// Test driver for tests - keeps the machines in memory and just pretend to be a real driver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

// Factory implements provider.DriverFactory interface
type Factory struct{}

// Name shows name of the driver factory
func (*Factory) Name() string {
	return "test"
}

// New creates new provider driver
func (f *Factory) New() provider.Driver {
	return &Driver{name: f.Name()}
}

func init() {
	provider.FactoryList = append(provider.FactoryList, &Factory{})
}

// Driver implements provider.Driver interface
type Driver struct {
	name string
	cfg  Config

	mu      sync.Mutex
	vms     map[string]*provider.VirtualMachine
	console map[string][]string
	counter int
}

// Name returns name of the driver
func (d *Driver) Name() string {
	return d.name
}

// SetName sets name for the driver instance
func (d *Driver) SetName(name string) {
	d.name = name
}

// Prepare initializes the driver
func (d *Driver) Prepare(_ context.Context, config []byte) error {
	if err := d.cfg.Apply(config); err != nil {
		return err
	}
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.vms = make(map[string]*provider.VirtualMachine)
	d.console = make(map[string][]string)
	d.mu.Unlock()

	log.WithFunc("test", "Prepare").Debug("Driver prepared", "provider.name", d.name, "location", d.cfg.Location)
	return nil
}

// VirtualMachines returns the in-memory machines service
func (d *Driver) VirtualMachines() provider.VirtualMachineService {
	return &vmService{d: d}
}

// Volumes are not supported by the test driver
func (*Driver) Volumes() provider.VolumeService { return nil }

// Snapshots are not supported by the test driver
func (*Driver) Snapshots() provider.SnapshotService { return nil }

// Images are not supported by the test driver
func (*Driver) Images() provider.ImageService { return nil }

// VLANs are not supported by the test driver
func (*Driver) VLANs() provider.VLANService { return nil }

// Firewalls are not supported by the test driver
func (*Driver) Firewalls() provider.FirewallService { return nil }

// LoadBalancers are not supported by the test driver
func (*Driver) LoadBalancers() provider.LoadBalancerService { return nil }

// IPAddresses are not supported by the test driver
func (*Driver) IPAddresses() provider.IPAddressService { return nil }

func randomFail(name string, probability uint8) error {
	// Do not fail on 0
	if probability == 0 {
		return nil
	}

	// Certainly fail on 255
	if probability == 255 {
		return provider.NewError(provider.KindRemoteOperation, fmt.Sprintf("TEST: %s failed (%d)", name, probability))
	}

	// Fail on probability 1 - low, 254 - high (but still can not fail)
	if uint8(rand.Intn(254)) < probability { //nolint:gosec // G404 -- fine for test driver
		return provider.NewError(provider.KindRemoteOperation, fmt.Sprintf("TEST: %s failed (%d)", name, probability))
	}

	return nil
}
