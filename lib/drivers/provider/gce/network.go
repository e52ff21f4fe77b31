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

// networkService maps VLANs to the VPC networks and their subnetworks
type networkService struct {
	d *Driver
}

func (s *networkService) Get(ctx context.Context, id string) (*provider.VLAN, error) {
	if err := globalName("network", id); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	network, err := svc.Networks.Get(s.d.cfg.ProjectID, id).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get network %q", id), err)
	}
	return vlanFromNetwork(network), nil
}

func (s *networkService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.VLAN, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	var out []*provider.VLAN
	err = svc.Networks.List(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.NetworkList) error {
		for _, network := range page.Items {
			if filter.Matches(network.Name, nil) {
				out = append(out, vlanFromNetwork(network))
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, "Unable to list networks", err)
	}
	return out, nil
}

// Create makes the network in auto or custom subnet mode
func (s *networkService) Create(ctx context.Context, opts provider.VLANCreateOptions) (*provider.VLAN, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	network := &compute.Network{
		Name:                  opts.Name,
		Description:           opts.Description,
		AutoCreateSubnetworks: opts.AutoSubnets,
		Mtu:                   opts.MTU,
		// False value should be sent explicitly, otherwise the legacy network is created
		ForceSendFields: []string{"AutoCreateSubnetworks"},
	}
	log.WithFunc("gce", "CreateVLAN").Info("Creating network", "provider.name", s.d.name, "network", opts.Name, "auto_subnets", opts.AutoSubnets)

	op, err := svc.Networks.Insert(s.d.cfg.ProjectID, network).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to create network %q", opts.Name)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "vlan", "create")

	out, err := s.Get(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Network %q is not found after creation", opts.Name))
	}
	return out, nil
}

func (s *networkService) Delete(ctx context.Context, id string) error {
	if err := globalName("network", id); err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Networks.Delete(s.d.cfg.ProjectID, id).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to delete network %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "vlan", "delete")
	return nil
}

// ListSubnets returns the subnetworks of the network in all the regions
func (s *networkService) ListSubnets(ctx context.Context, vlanID string) ([]*provider.Subnet, error) {
	if err := globalName("network", vlanID); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	var out []*provider.Subnet
	err = svc.Subnetworks.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.SubnetworkAggregatedList) error {
		for _, scoped := range page.Items {
			for _, sub := range scoped.Subnetworks {
				if lastComponent(sub.Network) == vlanID {
					out = append(out, subnetFromCompute(sub))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to list subnetworks of network %q", vlanID), err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSubnet adds the regional address range to the custom mode network
func (s *networkService) CreateSubnet(ctx context.Context, opts provider.SubnetCreateOptions) (*provider.Subnet, error) {
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

	sub := &compute.Subnetwork{
		Name:        opts.Name,
		Network:     s.d.networkURL(opts.VLANID),
		IpCidrRange: opts.CIDR,
	}
	op, err := svc.Subnetworks.Insert(s.d.cfg.ProjectID, region, sub).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to create subnetwork %q", opts.Name)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "subnet", "create")

	created, err := svc.Subnetworks.Get(s.d.cfg.ProjectID, region, opts.Name).Context(ctx).Do()
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get subnetwork %q", opts.Name), err)
	}
	return subnetFromCompute(created), nil
}

// DeleteSubnet removes the subnetwork by "<region>/<name>" id
func (s *networkService) DeleteSubnet(ctx context.Context, id string) error {
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Subnetworks.Delete(s.d.cfg.ProjectID, region, name).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to delete subnetwork %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "subnet", "delete")
	return nil
}

func vlanFromNetwork(network *compute.Network) *provider.VLAN {
	out := &provider.VLAN{
		ID:          network.Name,
		Name:        network.Name,
		Description: network.Description,
		AutoSubnets: network.AutoCreateSubnetworks,
		MTU:         network.Mtu,
		Created:     parseTimestamp(network.CreationTimestamp),
	}
	for _, link := range network.Subnetworks {
		out.Subnets = append(out.Subnets, regionalIDFromURL(link))
	}
	return out
}

func subnetFromCompute(sub *compute.Subnetwork) *provider.Subnet {
	region := lastComponent(sub.Region)
	return &provider.Subnet{
		ID:       scopedID(region, sub.Name),
		Name:     sub.Name,
		Location: region,
		VLANID:   lastComponent(sub.Network),
		CIDR:     sub.IpCidrRange,
		Gateway:  sub.GatewayAddress,
	}
}
