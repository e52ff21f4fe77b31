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
	"strings"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

const (
	defaultLBProtocol    = "TCP"
	healthCheckSuffix    = "-hc"
	targetPoolCollection = "/targetPools/"
)

// loadBalancerService implements the network load balancer: forwarding rule -> target pool (+ health check)
// All three parts have the same name as the balancer, the health check has suffix
type loadBalancerService struct {
	d *Driver
}

func (s *loadBalancerService) Get(ctx context.Context, id string) (*provider.LoadBalancer, error) {
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	rule, err := svc.ForwardingRules.Get(s.d.cfg.ProjectID, region, name).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get forwarding rule %q", id), err)
	}
	pool, err := svc.TargetPools.Get(s.d.cfg.ProjectID, region, lastComponent(rule.Target)).Context(ctx).Do()
	if err != nil && !notFound(err) {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get target pool of %q", id), err)
	}
	return loadBalancerFromCompute(rule, pool), nil
}

func (s *loadBalancerService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.LoadBalancer, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	var rules []*compute.ForwardingRule
	pools := make(map[string]*compute.TargetPool)
	if filter.Location != "" {
		err = svc.ForwardingRules.List(s.d.cfg.ProjectID, filter.Location).Pages(ctx, func(page *compute.ForwardingRuleList) error {
			rules = append(rules, page.Items...)
			return nil
		})
		if err == nil {
			err = svc.TargetPools.List(s.d.cfg.ProjectID, filter.Location).Pages(ctx, func(page *compute.TargetPoolList) error {
				for _, pool := range page.Items {
					pools[regionalIDFromURL(pool.SelfLink)] = pool
				}
				return nil
			})
		}
	} else {
		err = svc.ForwardingRules.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.ForwardingRuleAggregatedList) error {
			for _, scoped := range page.Items {
				rules = append(rules, scoped.ForwardingRules...)
			}
			return nil
		})
		if err == nil {
			err = svc.TargetPools.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.TargetPoolAggregatedList) error {
				for _, scoped := range page.Items {
					for _, pool := range scoped.TargetPools {
						pools[regionalIDFromURL(pool.SelfLink)] = pool
					}
				}
				return nil
			})
		}
	}
	if err != nil {
		return nil, mapError(ctx, "Unable to list load balancers", err)
	}

	var out []*provider.LoadBalancer
	for _, rule := range rules {
		// Only the target pool based rules are the network load balancers
		if !strings.Contains(rule.Target, targetPoolCollection) || !filter.Matches(rule.Name, rule.Labels) {
			continue
		}
		out = append(out, loadBalancerFromCompute(rule, pools[regionalIDFromURL(rule.Target)]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create makes the health check (if requested), target pool and forwarding rule
// No rollback is done: on failure the created parts are left and could be removed by Delete
func (s *loadBalancerService) Create(ctx context.Context, opts provider.LoadBalancerCreateOptions) (*provider.LoadBalancer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	region, err := s.d.regionOrDefault(opts.Location)
	if err != nil {
		return nil, err
	}
	instances, err := s.instanceRefs(opts.Servers)
	if err != nil {
		return nil, err
	}
	address := ""
	if opts.AddressID != "" {
		addrRegion, addrName, err := s.d.parseRegionalID(opts.AddressID)
		if err != nil {
			return nil, err
		}
		if addrRegion != region {
			return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Address %q is not in region %q", opts.AddressID, region))
		}
		address = s.d.addressURL(addrRegion, addrName)
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithFunc("gce", "CreateLoadBalancer").With("provider.name", s.d.name, "region", region, "lb", opts.Name)
	project := s.d.cfg.ProjectID

	pool := &compute.TargetPool{Name: opts.Name}
	for _, ref := range instances {
		pool.Instances = append(pool.Instances, ref.Instance)
	}

	if opts.HealthCheckPath != "" || opts.HealthCheckPort != 0 {
		hc := &compute.HttpHealthCheck{
			Name:        opts.Name + healthCheckSuffix,
			RequestPath: opts.HealthCheckPath,
			Port:        opts.HealthCheckPort,
		}
		logger.Info("Creating health check", "health_check", hc.Name)
		op, err := svc.HttpHealthChecks.Insert(project, hc).RequestId(newRequestID()).Context(ctx).Do()
		if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to create health check %q", hc.Name)); err != nil {
			return nil, err
		}
		pool.HealthChecks = []string{fmt.Sprintf("projects/%s/global/httpHealthChecks/%s", project, hc.Name)}
	}

	logger.Info("Creating target pool", "servers", len(pool.Instances))
	op, err := svc.TargetPools.Insert(project, region, pool).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to create target pool %q", opts.Name)); err != nil {
		return nil, err
	}

	protocol := strings.ToUpper(opts.Protocol)
	if protocol == "" {
		protocol = defaultLBProtocol
	}
	rule := &compute.ForwardingRule{
		Name:       opts.Name,
		Target:     fmt.Sprintf("projects/%s/regions/%s/targetPools/%s", project, region, opts.Name),
		IPProtocol: protocol,
		PortRange:  opts.PortRange,
		IPAddress:  address,
	}
	logger.Info("Creating forwarding rule", "protocol", protocol, "port_range", opts.PortRange)
	op, err = svc.ForwardingRules.Insert(project, region, rule).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to create forwarding rule %q", opts.Name)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "lb", "create")

	return s.mustGet(ctx, scopedID(region, opts.Name))
}

// Delete removes all the parts of the balancer, the already missing ones are skipped
func (s *loadBalancerService) Delete(ctx context.Context, id string) error {
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	project := s.d.cfg.ProjectID
	logger := log.WithFunc("gce", "DeleteLoadBalancer").With("provider.name", s.d.name, "lb", id)

	var healthChecks []string
	pool, err := svc.TargetPools.Get(project, region, name).Context(ctx).Do()
	switch {
	case err == nil:
		healthChecks = pool.HealthChecks
	case !notFound(err):
		return mapError(ctx, fmt.Sprintf("Unable to get target pool %q", id), err)
	}

	found := false
	op, err := svc.ForwardingRules.Delete(project, region, name).RequestId(newRequestID()).Context(ctx).Do()
	if !notFound(err) {
		found = true
		if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to delete forwarding rule %q", id)); err != nil {
			return err
		}
	}
	op, err = svc.TargetPools.Delete(project, region, name).RequestId(newRequestID()).Context(ctx).Do()
	if !notFound(err) {
		found = true
		if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to delete target pool %q", id)); err != nil {
			return err
		}
	}
	for _, link := range healthChecks {
		hc := lastComponent(link)
		op, err = svc.HttpHealthChecks.Delete(project, hc).RequestId(newRequestID()).Context(ctx).Do()
		if notFound(err) {
			continue
		}
		if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to delete health check %q", hc)); err != nil {
			return err
		}
	}
	if !found {
		return provider.NewError(provider.KindNotFound, fmt.Sprintf("Load balancer %q is not found", id))
	}
	s.d.record(ctx, "lb", "delete")
	logger.Info("Load balancer deleted")
	return nil
}

func (s *loadBalancerService) AddServers(ctx context.Context, id string, vmIDs []string) (*provider.LoadBalancer, error) {
	return s.changeServers(ctx, id, vmIDs, "add_servers", func(svc *compute.Service, region, name string, refs []*compute.InstanceReference) (*compute.Operation, error) {
		req := &compute.TargetPoolsAddInstanceRequest{Instances: refs}
		return svc.TargetPools.AddInstance(s.d.cfg.ProjectID, region, name, req).RequestId(newRequestID()).Context(ctx).Do()
	})
}

func (s *loadBalancerService) RemoveServers(ctx context.Context, id string, vmIDs []string) (*provider.LoadBalancer, error) {
	return s.changeServers(ctx, id, vmIDs, "remove_servers", func(svc *compute.Service, region, name string, refs []*compute.InstanceReference) (*compute.Operation, error) {
		req := &compute.TargetPoolsRemoveInstanceRequest{Instances: refs}
		return svc.TargetPools.RemoveInstance(s.d.cfg.ProjectID, region, name, req).RequestId(newRequestID()).Context(ctx).Do()
	})
}

func (s *loadBalancerService) changeServers(ctx context.Context, id string, vmIDs []string, action string,
	call func(svc *compute.Service, region, name string, refs []*compute.InstanceReference) (*compute.Operation, error)) (*provider.LoadBalancer, error) {
	if len(vmIDs) == 0 {
		return nil, provider.NewError(provider.KindBadArgument, "No servers are provided")
	}
	region, name, err := s.d.parseRegionalID(id)
	if err != nil {
		return nil, err
	}
	refs, err := s.instanceRefs(vmIDs)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	op, err := call(svc, region, name, refs)
	if err = s.d.await(ctx, svc, RegionScope(region), op, err, fmt.Sprintf("Unable to %s of load balancer %q", action, id)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "lb", action)
	return s.mustGet(ctx, id)
}

func (s *loadBalancerService) instanceRefs(vmIDs []string) ([]*compute.InstanceReference, error) {
	refs := make([]*compute.InstanceReference, 0, len(vmIDs))
	for _, vmID := range vmIDs {
		zone, name, err := s.d.parseZonalID(vmID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, &compute.InstanceReference{Instance: s.d.instanceURL(zone, name)})
	}
	return refs, nil
}

func (s *loadBalancerService) mustGet(ctx context.Context, id string) (*provider.LoadBalancer, error) {
	lb, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Load balancer %q is not found after the operation", id))
	}
	return lb, nil
}

func loadBalancerFromCompute(rule *compute.ForwardingRule, pool *compute.TargetPool) *provider.LoadBalancer {
	region := lastComponent(rule.Region)
	out := &provider.LoadBalancer{
		ID:        scopedID(region, rule.Name),
		Name:      rule.Name,
		Location:  region,
		Address:   rule.IPAddress,
		Listeners: []provider.LBListener{{Protocol: rule.IPProtocol, PortRange: rule.PortRange}},
		Created:   parseTimestamp(rule.CreationTimestamp),
	}
	if pool != nil {
		for _, link := range pool.Instances {
			out.Servers = append(out.Servers, zonalIDFromURL(link))
		}
		if len(pool.HealthChecks) > 0 {
			out.HealthCheck = lastComponent(pool.HealthChecks[0])
		}
	}
	return out
}
