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

package gce

// Google Compute Engine (GCE) driver to manage the cloud resources

import (
	"context"
	"time"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/storage/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/monitoring"
)

// Factory implements provider.DriverFactory interface
type Factory struct{}

// Name shows name of the driver factory
func (*Factory) Name() string {
	return "gce"
}

// New creates new provider driver
func (f *Factory) New() provider.Driver {
	return &Driver{name: f.Name(), clients: DefaultClientFactory()}
}

func init() {
	provider.FactoryList = append(provider.FactoryList, &Factory{})
}

// Driver implements provider.Driver interface
type Driver struct {
	name    string
	cfg     Config
	clients *ClientFactory
}

// Name returns name of the driver
func (d *Driver) Name() string {
	return d.name
}

// SetName sets name for the driver instance
func (d *Driver) SetName(name string) {
	d.name = name
}

// Prepare initializes the driver and verifies the credentials have access to the project
func (d *Driver) Prepare(ctx context.Context, config []byte) error {
	if err := d.cfg.Apply(config); err != nil {
		return err
	}
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	if d.clients == nil {
		d.clients = DefaultClientFactory()
	}

	logger := log.WithFunc("gce", "Prepare").With("provider.name", d.name, "project", d.cfg.ProjectID)

	acc := d.cfg.account()
	admin, err := d.clients.Admin(ctx, acc)
	if err != nil {
		return mapError(ctx, "Unable to create admin client", err)
	}

	// Freshly created service account could need some time to be propagated
	var lastErr error
	for attempt := 1; attempt <= d.cfg.VerifyRetries; attempt++ {
		_, err = admin.Projects.Get(d.cfg.ProjectID).Context(ctx).Do()
		if err == nil {
			logger.Info("Project access verified", "attempt", attempt)
			return nil
		}
		lastErr = mapError(ctx, "Unable to verify project access", err)
		if !provider.IsKind(lastErr, provider.KindCommunication) && !provider.IsKind(lastErr, provider.KindAuthentication) {
			break
		}
		logger.Warn("Project access verification failed", "attempt", attempt, "err", lastErr)
		if attempt < d.cfg.VerifyRetries {
			if err = sleepContext(ctx, time.Duration(d.cfg.VerifyRetryDelay)); err != nil {
				lastErr = mapError(ctx, "Project access verification interrupted", err)
				break
			}
		}
	}

	// Next attempt will start from the clean clients
	d.clients.Invalidate(acc)
	logger.Error("Unable to verify project access", "err", lastErr)
	return lastErr
}

// VirtualMachines returns the instances adapter
func (d *Driver) VirtualMachines() provider.VirtualMachineService {
	return &vmService{d: d}
}

// Volumes returns the disks adapter
func (d *Driver) Volumes() provider.VolumeService {
	return &volumeService{d: d}
}

// Snapshots returns the disk snapshots adapter
func (d *Driver) Snapshots() provider.SnapshotService {
	return &snapshotService{d: d}
}

// Images returns the images adapter
func (d *Driver) Images() provider.ImageService {
	return &imageService{d: d}
}

// VLANs returns the networks adapter
func (d *Driver) VLANs() provider.VLANService {
	return &networkService{d: d}
}

// Firewalls returns the firewall rules adapter
func (d *Driver) Firewalls() provider.FirewallService {
	return &firewallService{d: d}
}

// LoadBalancers returns the network load balancers adapter
func (d *Driver) LoadBalancers() provider.LoadBalancerService {
	return &loadBalancerService{d: d}
}

// IPAddresses returns the static addresses adapter
func (d *Driver) IPAddresses() provider.IPAddressService {
	return &ipAddressService{d: d}
}

// computeService returns the memoized compute client for the driver account
func (d *Driver) computeService(ctx context.Context) (*compute.Service, error) {
	svc, err := d.clients.Compute(ctx, d.cfg.account())
	if err != nil {
		return nil, mapError(ctx, "Unable to create compute client", err)
	}
	return svc, nil
}

// storageService returns the memoized object storage client
func (d *Driver) storageService(ctx context.Context) (*storage.Service, error) {
	svc, err := d.clients.Storage(ctx, d.cfg.account())
	if err != nil {
		return nil, mapError(ctx, "Unable to create storage client", err)
	}
	return svc, nil
}

// poller creates the operations poller with the configured interval and timeout
func (d *Driver) poller(svc *compute.Service) *Poller {
	return NewPoller(computeOperations{svc: svc}, d.cfg.ProjectID,
		time.Duration(d.cfg.PollInterval), time.Duration(d.cfg.OperationTimeout))
}

// await waits for the operation in the scope, mapping the call error if there is one
func (d *Driver) await(ctx context.Context, svc *compute.Service, scope OperationScope, op *compute.Operation, callErr error, msg string) error {
	if callErr != nil {
		return mapError(ctx, msg, callErr)
	}
	_, err := d.poller(svc).Await(ctx, op, scope)
	return err
}

// record counts the action on the resource kind
func (d *Driver) record(ctx context.Context, resource, action string) {
	monitoring.Default().RecordDriverOperation(ctx, d.name, resource, action)
}
