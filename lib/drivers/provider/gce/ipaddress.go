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

package gce

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

const (
	addressTypeInternal = "INTERNAL"
	natAccessConfigName = "External NAT"
	natAccessConfigType = "ONE_TO_ONE_NAT"
)

type ipAddressService struct {
	d *Driver
}

func (s *ipAddressService) Get(ctx context.Context, id string) (*provider.IPAddress, error) {
	addr, err := s.get(ctx, id)
	if err != nil || addr == nil {
		return nil, err
	}
	return ipAddressFromCompute(addr), nil
}

func (s *ipAddressService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.IPAddress, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	var out []*provider.IPAddress
	add := func(items []*compute.Address) {
		for _, addr := range items {
			if filter.Matches(addr.Name, addr.Labels) {
				out = append(out, ipAddressFromCompute(addr))
			}
		}
	}
	if filter.Location != "" {
		err = svc.Addresses.List(s.d.cfg.ProjectID, filter.Location).Pages(ctx, func(page *compute.AddressList) error {
			add(page.Items)
			return nil
		})
	} else {
		err = svc.Addresses.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.AddressAggregatedList) error {
			for _, scoped := range page.Items {
				add(scoped.Addresses)
			}
			return nil
		})
	}
	if err != nil {
		return nil, mapError(ctx, "Unable to list addresses", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Request reserves the static address in the region
func (s *ipAddressService) Request(ctx context.Context, opts provider.IPAddressRequestOptions) (*provider.IPAddress, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	region, err := s.d.regionOrDefault(opts.Location)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	addr := &compute.Address{
		Name:        opts.Name,
		Description: opts.Description,
	}
	if opts.Internal {
		addr.AddressType = addressTypeInternal
		addr.Subnetwork = s.d.subnetworkURL(region, opts.SubnetID)
	}
	log.WithFunc("gce", "RequestIPAddress").Info("Reserving address", "provider.name", s.d.name, "region", region, "address", opts.Name, "internal", opts.Internal)

	op, err := svc.Addresses.Insert(s.d.cfg.ProjectID, region, addr).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to reserve address %q", opts.Name)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "ip", "request")
	return s.mustGet(ctx, scopedID(region, opts.Name))
}

// Release frees the reserved address
func (s *ipAddressService) Release(ctx context.Context, id string) error {
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Addresses.Delete(s.d.cfg.ProjectID, region, name).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to release address %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "ip", "release")
	return nil
}

// Assign replaces the external access config of the instance first interface with the reserved address
func (s *ipAddressService) Assign(ctx context.Context, id, vmID string) (*provider.IPAddress, error) {
	addr, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	if addr.AddressType == addressTypeInternal {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Internal address %q can't be assigned as external", id))
	}
	zone, instance, err := s.d.parseZonalID(vmID)
	if err != nil {
		return nil, err
	}
	if region := lastComponent(addr.Region); region != "" && regionFromZone(zone) != region {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Address %q and instance %q are in different regions", id, vmID))
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithFunc("gce", "AssignIPAddress").With("provider.name", s.d.name, "address", id, "instance", vmID)

	inst, err := svc.Instances.Get(s.d.cfg.ProjectID, zone, instance).Context(ctx).Do()
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get instance %q", vmID), err)
	}
	if len(inst.NetworkInterfaces) == 0 {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Instance %q has no network interfaces", vmID))
	}
	nic := inst.NetworkInterfaces[0]

	// Only one access config per interface is allowed, so the ephemeral one is removed first
	for _, ac := range nic.AccessConfigs {
		logger.Debug("Removing existing access config", "access_config", ac.Name, "nat_ip", ac.NatIP)
		op, err := svc.Instances.DeleteAccessConfig(s.d.cfg.ProjectID, zone, instance, ac.Name, nic.Name).RequestId(newRequestID()).Context(ctx).Do()
		if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to remove access config of instance %q", vmID)); err != nil {
			return nil, err
		}
	}

	ac := &compute.AccessConfig{Name: natAccessConfigName, Type: natAccessConfigType, NatIP: addr.Address}
	op, err := svc.Instances.AddAccessConfig(s.d.cfg.ProjectID, zone, instance, nic.Name, ac).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to assign address %q to instance %q", id, vmID)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "ip", "assign")
	logger.Info("Address assigned", "address", addr.Address)
	return s.mustGet(ctx, id)
}

// Unassign removes the access configs using the address from the instances
func (s *ipAddressService) Unassign(ctx context.Context, id string) (*provider.IPAddress, error) {
	addr, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(addr.Users) == 0 {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Address %q is not assigned", id))
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	for _, user := range addr.Users {
		zone, instance, err := s.d.parseZonalID(zonalIDFromURL(user))
		if err != nil {
			return nil, err
		}
		inst, err := svc.Instances.Get(s.d.cfg.ProjectID, zone, instance).Context(ctx).Do()
		if notFound(err) {
			continue
		}
		if err != nil {
			return nil, mapError(ctx, fmt.Sprintf("Unable to get instance %q", user), err)
		}
		for _, nic := range inst.NetworkInterfaces {
			for _, ac := range nic.AccessConfigs {
				if ac.NatIP != addr.Address {
					continue
				}
				op, err := svc.Instances.DeleteAccessConfig(s.d.cfg.ProjectID, zone, instance, ac.Name, nic.Name).RequestId(newRequestID()).Context(ctx).Do()
				if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to unassign address %q", id)); err != nil {
					return nil, err
				}
			}
		}
	}
	s.d.record(ctx, "ip", "unassign")
	return s.mustGet(ctx, id)
}

func (s *ipAddressService) get(ctx context.Context, id string) (*compute.Address, error) {
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := svc.Addresses.Get(s.d.cfg.ProjectID, region, name).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get address %q", id), err)
	}
	return addr, nil
}

func (s *ipAddressService) mustGetCompute(ctx context.Context, id string) (*compute.Address, error) {
	addr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, provider.NewError(provider.KindNotFound, fmt.Sprintf("Address %q is not found", id))
	}
	return addr, nil
}

func (s *ipAddressService) mustGet(ctx context.Context, id string) (*provider.IPAddress, error) {
	addr, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	return ipAddressFromCompute(addr), nil
}

func ipAddressFromCompute(addr *compute.Address) *provider.IPAddress {
	region := lastComponent(addr.Region)
	out := &provider.IPAddress{
		ID:       scopedID(region, addr.Name),
		Name:     addr.Name,
		Location: region,
		Address:  addr.Address,
		State:    resourceState(addr.Status),
		Internal: addr.AddressType == addressTypeInternal,
		Created:  parseTimestamp(addr.CreationTimestamp),
	}
	if len(addr.Users) > 0 {
		out.VMID = zonalIDFromURL(addr.Users[0])
	}
	return out
}
