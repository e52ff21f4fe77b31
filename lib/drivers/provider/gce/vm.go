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

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"

	"github.com/adobe/aquarium-gce/lib/crypt"
	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
	"github.com/adobe/aquarium-gce/lib/monitoring"
	"github.com/adobe/aquarium-gce/lib/util"
)

const (
	defaultNetwork    = "default"
	metadataEnvKey    = "aquarium-env"
	metadataEnvPrefix = "AQUARIUM"
)

var defaultInstanceScopes = []string{"https://www.googleapis.com/auth/cloud-platform"}

type vmService struct {
	d *Driver
}

// Get returns the instance by "<zone>/<name>" id, nil if it's not exists
func (s *vmService) Get(ctx context.Context, id string) (*provider.VirtualMachine, error) {
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	inst, err := svc.Instances.Get(s.d.cfg.ProjectID, zone, name).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get instance %q", id), err)
	}
	return vmFromInstance(inst), nil
}

// List returns instances of the zone or of the whole project if location is empty
func (s *vmService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.VirtualMachine, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	var out []*provider.VirtualMachine
	add := func(items []*compute.Instance) {
		for _, inst := range items {
			if filter.Matches(inst.Name, inst.Labels) {
				out = append(out, vmFromInstance(inst))
			}
		}
	}
	if filter.Location != "" {
		err = svc.Instances.List(s.d.cfg.ProjectID, filter.Location).Pages(ctx, func(page *compute.InstanceList) error {
			add(page.Items)
			return nil
		})
	} else {
		err = svc.Instances.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.InstanceAggregatedList) error {
			for _, scoped := range page.Items {
				add(scoped.Instances)
			}
			return nil
		})
	}
	if err != nil {
		return nil, mapError(ctx, "Unable to list instances", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListProducts returns the machine types of the zone
func (s *vmService) ListProducts(ctx context.Context, location string) ([]*provider.VMProduct, error) {
	zone, err := s.d.zoneOrDefault(location)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	var out []*provider.VMProduct
	err = svc.MachineTypes.List(s.d.cfg.ProjectID, zone).Pages(ctx, func(page *compute.MachineTypeList) error {
		for _, mt := range page.Items {
			out = append(out, &provider.VMProduct{
				ID:          mt.Name,
				Location:    zone,
				CPUs:        mt.GuestCpus,
				MemoryMB:    mt.MemoryMb,
				SharedCPU:   mt.IsSharedCpu,
				Description: mt.Description,
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to list machine types of zone %q", zone), err)
	}
	return out, nil
}

// Launch creates the instance and waits for the creation to complete
func (s *vmService) Launch(ctx context.Context, opts provider.VMLaunchOptions) (*provider.VirtualMachine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	zone, err := s.d.zoneOrDefault(opts.Location)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "vm-" + crypt.RandStringCharset(8, crypt.RandStringCharsetName)
	}

	logger := log.WithFunc("gce", "Launch").With("provider.name", s.d.name, "zone", zone, "instance", opts.Name)

	inst, privateKey, err := s.d.buildInstance(zone, &opts)
	if err != nil {
		return nil, err
	}

	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("Launching instance", "machine_type", opts.ProductID, "image", opts.ImageID)
	op, err := svc.Instances.Insert(s.d.cfg.ProjectID, zone, inst).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to launch instance %q", opts.Name)); err != nil {
		monitoring.Default().RecordLaunch(ctx, s.d.name, "failure")
		logger.Error("Unable to launch instance", "err", err)
		return nil, err
	}
	monitoring.Default().RecordLaunch(ctx, s.d.name, "success")
	s.d.record(ctx, "vm", "launch")

	vm, err := s.Get(ctx, scopedID(zone, opts.Name))
	if err != nil {
		return nil, err
	}
	if vm == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Instance %q is not found after launch", opts.Name))
	}
	vm.SSHPrivateKey = string(privateKey)
	logger.Info("Instance launched", "state", vm.State)
	return vm, nil
}

// LaunchMany creates count instances named "<name>-<index>"
func (s *vmService) LaunchMany(ctx context.Context, opts provider.VMLaunchOptions, count int) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.GenerateSSHKey {
		return nil, provider.NewError(provider.KindBadArgument, "Generated ssh keys can't be returned by the batch launch, use ssh_public_key instead")
	}
	prefix := opts.Name
	if prefix == "" {
		prefix = "vm-" + crypt.RandStringCharset(6, crypt.RandStringCharsetName)
	}

	return provider.LaunchBatch(ctx, s.d.cfg.LaunchConcurrency, count, func(ctx context.Context, index int) (string, error) {
		item := opts
		item.Name = fmt.Sprintf("%s-%d", prefix, index)
		vm, err := s.Launch(ctx, item)
		if err != nil {
			return "", err
		}
		return vm.ID, nil
	})
}

// Start powers on the stopped instance
func (s *vmService) Start(ctx context.Context, id string) error {
	return s.action(ctx, id, "start", func(svc *compute.Service, zone, name string) (*compute.Operation, error) {
		return svc.Instances.Start(s.d.cfg.ProjectID, zone, name).RequestId(newRequestID()).Context(ctx).Do()
	})
}

// Stop powers off the instance, the disks are kept
func (s *vmService) Stop(ctx context.Context, id string) error {
	return s.action(ctx, id, "stop", func(svc *compute.Service, zone, name string) (*compute.Operation, error) {
		return svc.Instances.Stop(s.d.cfg.ProjectID, zone, name).RequestId(newRequestID()).Context(ctx).Do()
	})
}

// Reboot does hard reset of the instance
func (s *vmService) Reboot(ctx context.Context, id string) error {
	return s.action(ctx, id, "reboot", func(svc *compute.Service, zone, name string) (*compute.Operation, error) {
		return svc.Instances.Reset(s.d.cfg.ProjectID, zone, name).RequestId(newRequestID()).Context(ctx).Do()
	})
}

func (*vmService) Pause(_ context.Context, _ string) error {
	return provider.ErrNotSupported("pause")
}

func (*vmService) Unpause(_ context.Context, _ string) error {
	return provider.ErrNotSupported("unpause")
}

// Terminate deletes the instance with the auto-delete disks
func (s *vmService) Terminate(ctx context.Context, id string) error {
	return s.action(ctx, id, "terminate", func(svc *compute.Service, zone, name string) (*compute.Operation, error) {
		return svc.Instances.Delete(s.d.cfg.ProjectID, zone, name).RequestId(newRequestID()).Context(ctx).Do()
	})
}

// AlterProduct changes machine type, the instance should be stopped
func (s *vmService) AlterProduct(ctx context.Context, id, productID string) (*provider.VirtualMachine, error) {
	if productID == "" {
		return nil, provider.NewError(provider.KindBadArgument, "Product (machine type) is not set")
	}
	err := s.action(ctx, id, "alter_product", func(svc *compute.Service, zone, name string) (*compute.Operation, error) {
		req := &compute.InstancesSetMachineTypeRequest{MachineType: machineTypeURL(zone, productID)}
		return svc.Instances.SetMachineType(s.d.cfg.ProjectID, zone, name, req).RequestId(newRequestID()).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ConsoleOutput returns the content of the first serial port
func (s *vmService) ConsoleOutput(ctx context.Context, id string) (string, error) {
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return "", err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return "", err
	}
	out, err := svc.Instances.GetSerialPortOutput(s.d.cfg.ProjectID, zone, name).Port(1).Context(ctx).Do()
	if err != nil {
		return "", mapError(ctx, fmt.Sprintf("Unable to get console output of instance %q", id), err)
	}
	return out.Contents, nil
}

// action runs the zonal instance operation and waits for it
func (s *vmService) action(ctx context.Context, id, action string, call func(svc *compute.Service, zone, name string) (*compute.Operation, error)) error {
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}

	logger := log.WithFunc("gce", "vmAction").With("provider.name", s.d.name, "instance", id, "action", action)
	logger.Debug("Executing instance action")

	op, err := call(svc, zone, name)
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to %s instance %q", action, id)); err != nil {
		logger.Error("Instance action failed", "err", err)
		return err
	}
	s.d.record(ctx, "vm", action)
	logger.Info("Instance action completed")
	return nil
}

// buildInstance prepares the insert payload, returns generated private key if requested
func (d *Driver) buildInstance(zone string, opts *provider.VMLaunchOptions) (*compute.Instance, []byte, error) {
	boot := &compute.AttachedDisk{
		Boot:       true,
		AutoDelete: true,
		Type:       "PERSISTENT",
		InitializeParams: &compute.AttachedDiskInitializeParams{
			SourceImage: d.imageURL(opts.ImageID),
			DiskSizeGb:  opts.VolumeSize.Gigabytes(),
			Labels:      d.labels(opts.Labels),
		},
	}
	if opts.VolumeType != "" {
		boot.InitializeParams.DiskType = diskTypeURL(zone, opts.VolumeType)
	}

	network := opts.VLANID
	if network == "" {
		network = defaultNetwork
	}
	nic := &compute.NetworkInterface{Network: d.networkURL(network)}
	if opts.SubnetID != "" {
		nic.Subnetwork = d.subnetworkURL(regionFromZone(zone), opts.SubnetID)
	}
	if opts.PublicIP {
		nic.AccessConfigs = []*compute.AccessConfig{{Name: "External NAT", Type: "ONE_TO_ONE_NAT"}}
	}

	inst := &compute.Instance{
		Name:              opts.Name,
		MachineType:       machineTypeURL(zone, opts.ProductID),
		Disks:             []*compute.AttachedDisk{boot},
		NetworkInterfaces: []*compute.NetworkInterface{nic},
		Labels:            d.labels(opts.Labels),
	}
	if len(opts.NetworkTags) > 0 {
		inst.Tags = &compute.Tags{Items: opts.NetworkTags}
	}
	if opts.Preemptible {
		inst.Scheduling = &compute.Scheduling{
			Preemptible:       true,
			AutomaticRestart:  googleapi.Bool(false),
			OnHostMaintenance: "TERMINATE",
		}
	}
	if opts.ServiceAccount != "" {
		scopes := opts.Scopes
		if len(scopes) == 0 {
			scopes = defaultInstanceScopes
		}
		inst.ServiceAccounts = []*compute.ServiceAccount{{Email: opts.ServiceAccount, Scopes: scopes}}
	}

	metadata, privateKey, err := buildMetadata(opts)
	if err != nil {
		return nil, nil, err
	}
	if len(metadata.Items) > 0 {
		inst.Metadata = metadata
	}
	return inst, privateKey, nil
}

// buildMetadata fills startup script, serialized user metadata and ssh key of the instance
func buildMetadata(opts *provider.VMLaunchOptions) (*compute.Metadata, []byte, error) {
	md := &compute.Metadata{}
	if opts.StartupScript != "" {
		md.Items = append(md.Items, &compute.MetadataItems{Key: "startup-script", Value: googleapi.String(opts.StartupScript)})
	}
	if len(opts.Metadata) > 0 {
		data, err := util.SerializeMetadata(opts.MetadataFormat, metadataEnvPrefix, opts.Metadata)
		if err != nil {
			return nil, nil, provider.WrapError(provider.KindBadArgument, "Unable to serialize metadata", err)
		}
		md.Items = append(md.Items, &compute.MetadataItems{Key: metadataEnvKey, Value: googleapi.String(string(data))})
	}

	var privateKey []byte
	pubKey := []byte(opts.SSHPublicKey)
	if opts.GenerateSSHKey {
		var err error
		if privateKey, err = crypt.GenerateSSHKey(); err != nil {
			return nil, nil, provider.WrapError(provider.KindGeneral, "Unable to generate ssh key", err)
		}
		if pubKey, err = crypt.GetSSHPubKeyFromPem(privateKey); err != nil {
			return nil, nil, provider.WrapError(provider.KindGeneral, "Unable to get public ssh key", err)
		}
	}
	if len(pubKey) > 0 {
		entry, err := crypt.SSHKeysMetadataEntry(opts.SSHUser, pubKey)
		if err != nil {
			return nil, nil, provider.WrapError(provider.KindBadArgument, "Invalid ssh public key", err)
		}
		md.Items = append(md.Items, &compute.MetadataItems{Key: "ssh-keys", Value: googleapi.String(entry)})
	}
	return md, privateKey, nil
}

func vmFromInstance(inst *compute.Instance) *provider.VirtualMachine {
	zone := lastComponent(inst.Zone)
	vm := &provider.VirtualMachine{
		ID:        scopedID(zone, inst.Name),
		Name:      inst.Name,
		Location:  zone,
		ProductID: lastComponent(inst.MachineType),
		State:     vmState(inst.Status),
		Labels:    inst.Labels,
		Created:   parseTimestamp(inst.CreationTimestamp),
		Tags:      map[string]string{"status": inst.Status},
	}
	if inst.SelfLink != "" {
		vm.Tags["self_link"] = inst.SelfLink
	}
	if inst.StatusMessage != "" {
		vm.Tags["status_message"] = inst.StatusMessage
	}
	if inst.Scheduling != nil && inst.Scheduling.Preemptible {
		vm.Tags["preemptible"] = "true"
	}
	for _, nic := range inst.NetworkInterfaces {
		if nic.NetworkIP != "" {
			vm.Private = append(vm.Private, nic.NetworkIP)
		}
		if nic.Network != "" {
			vm.VLANIDs = append(vm.VLANIDs, lastComponent(nic.Network))
		}
		for _, ac := range nic.AccessConfigs {
			if ac.NatIP != "" {
				vm.Public = append(vm.Public, ac.NatIP)
			}
		}
	}
	for _, disk := range inst.Disks {
		if disk.Source != "" {
			vm.VolumeIDs = append(vm.VolumeIDs, zonalIDFromURL(disk.Source))
		}
	}
	return vm
}

// vmState maps the instance status, unknown ones are pending
func vmState(status string) provider.VMState {
	switch status {
	case "RUNNING":
		return provider.VMRunning
	case "STOPPING", "SUSPENDING":
		return provider.VMStopping
	case "STOPPED", "TERMINATED":
		return provider.VMStopped
	case "SUSPENDED":
		return provider.VMSuspended
	}
	return provider.VMPending
}
