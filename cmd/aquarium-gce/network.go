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

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
)

func (a *app) vlanCommand() *cobra.Command {
	cmd := groupCommand(a, "vlan", "Manage networks and subnets", func(d provider.Driver) getLister[provider.VLAN] {
		return d.VLANs()
	})
	cmd.AddCommand(
		optionsCommand(a, "create", "Create network", func(ctx context.Context, opts provider.VLANCreateOptions) (any, error) {
			return a.drv.VLANs().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete network", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.VLANs().Delete(ctx, args[0]))
		}),
		idCommand(a, "subnets ID", "List subnets of the network", 1, func(ctx context.Context, args []string) (any, error) {
			return a.drv.VLANs().ListSubnets(ctx, args[0])
		}),
		optionsCommand(a, "subnet-create", "Create subnet in the network", func(ctx context.Context, opts provider.SubnetCreateOptions) (any, error) {
			return a.drv.VLANs().CreateSubnet(ctx, opts)
		}),
		idCommand(a, "subnet-delete ID", "Delete subnet", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.VLANs().DeleteSubnet(ctx, args[0]))
		}),
	)
	return cmd
}

func (a *app) firewallCommand() *cobra.Command {
	cmd := groupCommand(a, "firewall", "Manage firewall rules", func(d provider.Driver) getLister[provider.Firewall] {
		return d.Firewalls()
	})
	cmd.AddCommand(
		optionsCommand(a, "create", "Create firewall", func(ctx context.Context, opts provider.FirewallCreateOptions) (any, error) {
			return a.drv.Firewalls().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete firewall", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.Firewalls().Delete(ctx, args[0]))
		}),
		idCommand(a, "authorize ID RULE", "Add rule (like tcp:22,8080-8090) to the firewall", 2, func(ctx context.Context, args []string) (any, error) {
			return a.drv.Firewalls().Authorize(ctx, args[0], parseRule(args[1]))
		}),
		idCommand(a, "revoke ID RULE", "Remove rule (like tcp:22) from the firewall", 2, func(ctx context.Context, args []string) (any, error) {
			return a.drv.Firewalls().Revoke(ctx, args[0], parseRule(args[1]))
		}),
	)
	return cmd
}

// parseRule converts "proto[:port,port-range]" to the rule
func parseRule(in string) provider.FirewallRule {
	proto, ports, _ := strings.Cut(in, ":")
	rule := provider.FirewallRule{Protocol: strings.ToLower(proto)}
	if ports != "" {
		rule.Ports = strings.Split(ports, ",")
	}
	return rule
}

func (a *app) lbCommand() *cobra.Command {
	cmd := groupCommand(a, "lb", "Manage network load balancers", func(d provider.Driver) getLister[provider.LoadBalancer] {
		return d.LoadBalancers()
	})
	cmd.AddCommand(
		optionsCommand(a, "create", "Create load balancer", func(ctx context.Context, opts provider.LoadBalancerCreateOptions) (any, error) {
			return a.drv.LoadBalancers().Create(ctx, opts)
		}),
		idCommand(a, "delete ID", "Delete load balancer with all its parts", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.LoadBalancers().Delete(ctx, args[0]))
		}),
		serversCommand(a, "add-servers", "Add machines to the load balancer", true),
		serversCommand(a, "remove-servers", "Remove machines from the load balancer", false),
	)
	return cmd
}

func serversCommand(a *app, name, short string, add bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID VM_ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			lbs := a.drv.LoadBalancers()
			var out *provider.LoadBalancer
			var err error
			if add {
				out, err = lbs.AddServers(ctx, args[0], args[1:])
			} else {
				out, err = lbs.RemoveServers(ctx, args[0], args[1:])
			}
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
}

func (a *app) ipCommand() *cobra.Command {
	cmd := groupCommand(a, "ip", "Manage reserved addresses", func(d provider.Driver) getLister[provider.IPAddress] {
		return d.IPAddresses()
	})
	cmd.AddCommand(
		optionsCommand(a, "request", "Reserve address", func(ctx context.Context, opts provider.IPAddressRequestOptions) (any, error) {
			return a.drv.IPAddresses().Request(ctx, opts)
		}),
		idCommand(a, "release ID", "Release reserved address", 1, func(ctx context.Context, args []string) (any, error) {
			return done(a.drv.IPAddresses().Release(ctx, args[0]))
		}),
		idCommand(a, "assign ID VM_ID", "Replace the machine public address with the reserved one", 2, func(ctx context.Context, args []string) (any, error) {
			return a.drv.IPAddresses().Assign(ctx, args[0], args[1])
		}),
		idCommand(a, "unassign ID", "Detach address from the machine", 1, func(ctx context.Context, args []string) (any, error) {
			return a.drv.IPAddresses().Unassign(ctx, args[0])
		}),
	)
	return cmd
}
