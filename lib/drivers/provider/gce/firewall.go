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
	"slices"
	"strings"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

const defaultFirewallDirection = "INGRESS"

type firewallService struct {
	d *Driver
}

func (s *firewallService) Get(ctx context.Context, id string) (*provider.Firewall, error) {
	fw, err := s.get(ctx, id)
	if err != nil || fw == nil {
		return nil, err
	}
	return firewallFromCompute(fw), nil
}

func (s *firewallService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.Firewall, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	var out []*provider.Firewall
	err = svc.Firewalls.List(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.FirewallList) error {
		for _, fw := range page.Items {
			if filter.Matches(fw.Name, nil) {
				out = append(out, firewallFromCompute(fw))
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, "Unable to list firewalls", err)
	}
	return out, nil
}

func (s *firewallService) Create(ctx context.Context, opts provider.FirewallCreateOptions) (*provider.Firewall, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	direction := strings.ToUpper(opts.Direction)
	if direction == "" {
		direction = defaultFirewallDirection
	}
	fw := &compute.Firewall{
		Name:         opts.Name,
		Network:      s.d.networkURL(opts.VLANID),
		Description:  opts.Description,
		Direction:    direction,
		Priority:     opts.Priority,
		Allowed:      allowedFromRules(opts.Rules),
		SourceRanges: opts.SourceRanges,
		TargetTags:   opts.TargetTags,
	}
	log.WithFunc("gce", "CreateFirewall").Info("Creating firewall", "provider.name", s.d.name, "firewall", opts.Name, "network", opts.VLANID)

	op, err := svc.Firewalls.Insert(s.d.cfg.ProjectID, fw).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to create firewall %q", opts.Name)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "firewall", "create")
	return s.mustGet(ctx, opts.Name)
}

func (s *firewallService) Delete(ctx context.Context, id string) error {
	if err := globalName("firewall", id); err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Firewalls.Delete(s.d.cfg.ProjectID, id).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to delete firewall %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "firewall", "delete")
	return nil
}

func (s *firewallService) Authorize(ctx context.Context, id string, rule provider.FirewallRule) (*provider.Firewall, error) {
	if rule.Protocol == "" {
		return nil, provider.NewError(provider.KindBadArgument, "Firewall rule protocol is not set")
	}
	fw, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, allowed := range fw.Allowed {
		if sameRule(allowed, rule) {
			return firewallFromCompute(fw), nil
		}
	}
	allowed := append(slices.Clone(fw.Allowed), allowedFromRules([]provider.FirewallRule{rule})...)
	return s.patchAllowed(ctx, id, allowed, "authorize")
}

// Revoke removes the rule, the last one can't be removed: the firewall should be deleted instead
func (s *firewallService) Revoke(ctx context.Context, id string, rule provider.FirewallRule) (*provider.Firewall, error) {
	fw, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := slices.DeleteFunc(slices.Clone(fw.Allowed), func(a *compute.FirewallAllowed) bool {
		return sameRule(a, rule)
	})
	if len(allowed) == len(fw.Allowed) {
		return nil, provider.NewError(provider.KindNotFound, fmt.Sprintf("Firewall %q has no rule %s %v", id, rule.Protocol, rule.Ports))
	}
	if len(allowed) == 0 {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Unable to revoke the last rule of firewall %q, delete it instead", id))
	}
	return s.patchAllowed(ctx, id, allowed, "revoke")
}

func (s *firewallService) patchAllowed(ctx context.Context, id string, allowed []*compute.FirewallAllowed, action string) (*provider.Firewall, error) {
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	patch := &compute.Firewall{Allowed: allowed}
	op, err := svc.Firewalls.Patch(s.d.cfg.ProjectID, id, patch).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to %s rule of firewall %q", action, id)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "firewall", action)
	return s.mustGet(ctx, id)
}

func (s *firewallService) get(ctx context.Context, id string) (*compute.Firewall, error) {
	if err := globalName("firewall", id); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	fw, err := svc.Firewalls.Get(s.d.cfg.ProjectID, id).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get firewall %q", id), err)
	}
	return fw, nil
}

func (s *firewallService) mustGetCompute(ctx context.Context, id string) (*compute.Firewall, error) {
	fw, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fw == nil {
		return nil, provider.NewError(provider.KindNotFound, fmt.Sprintf("Firewall %q is not found", id))
	}
	return fw, nil
}

func (s *firewallService) mustGet(ctx context.Context, id string) (*provider.Firewall, error) {
	fw, err := s.mustGetCompute(ctx, id)
	if err != nil {
		return nil, err
	}
	return firewallFromCompute(fw), nil
}

func allowedFromRules(rules []provider.FirewallRule) []*compute.FirewallAllowed {
	out := make([]*compute.FirewallAllowed, 0, len(rules))
	for _, r := range rules {
		out = append(out, &compute.FirewallAllowed{IPProtocol: strings.ToLower(r.Protocol), Ports: r.Ports})
	}
	return out
}

// sameRule compares protocol and the set of ports
func sameRule(a *compute.FirewallAllowed, rule provider.FirewallRule) bool {
	if !strings.EqualFold(a.IPProtocol, rule.Protocol) {
		return false
	}
	left, right := slices.Clone(a.Ports), slices.Clone(rule.Ports)
	slices.Sort(left)
	slices.Sort(right)
	return slices.Equal(left, right)
}

func firewallFromCompute(fw *compute.Firewall) *provider.Firewall {
	out := &provider.Firewall{
		ID:           fw.Name,
		Name:         fw.Name,
		VLANID:       lastComponent(fw.Network),
		Description:  fw.Description,
		Direction:    fw.Direction,
		Priority:     fw.Priority,
		SourceRanges: fw.SourceRanges,
		TargetTags:   fw.TargetTags,
		Created:      parseTimestamp(fw.CreationTimestamp),
	}
	for _, a := range fw.Allowed {
		out.Rules = append(out.Rules, provider.FirewallRule{Protocol: a.IPProtocol, Ports: a.Ports})
	}
	return out
}
