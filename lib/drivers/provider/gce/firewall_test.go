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
	"testing"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
)

func Test_firewall_lifecycle(t *testing.T) {
	m := newMockGCE(t)
	d := newTestDriver(t, m)
	ctx := context.Background()
	fws := d.Firewalls()

	fw, err := fws.Create(ctx, provider.FirewallCreateOptions{
		Name:         "allow-ssh",
		VLANID:       "default",
		Rules:        []provider.FirewallRule{{Protocol: "TCP", Ports: []string{"22"}}},
		SourceRanges: []string{"0.0.0.0/0"},
		TargetTags:   []string{"ssh"},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if fw.Direction != "INGRESS" || fw.VLANID != "default" || len(fw.Rules) != 1 || fw.Rules[0].Protocol != "tcp" {
		t.Fatalf("Create() = %+v", fw)
	}

	t.Run("authorize", func(t *testing.T) {
		got, err := fws.Authorize(ctx, fw.ID, provider.FirewallRule{Protocol: "udp", Ports: []string{"53", "5353"}})
		if err != nil {
			t.Fatalf("Authorize() error: %v", err)
		}
		if len(got.Rules) != 2 {
			t.Fatalf("Authorize() rules = %+v; want 2", got.Rules)
		}
	})
	t.Run("authorize existing is noop", func(t *testing.T) {
		before := m.countCalls("PATCH ")
		got, err := fws.Authorize(ctx, fw.ID, provider.FirewallRule{Protocol: "UDP", Ports: []string{"5353", "53"}})
		if err != nil {
			t.Fatalf("Authorize() error: %v", err)
		}
		if len(got.Rules) != 2 || m.countCalls("PATCH ") != before {
			t.Fatalf("Authorize() of the same rule should not patch")
		}
	})
	t.Run("revoke", func(t *testing.T) {
		got, err := fws.Revoke(ctx, fw.ID, provider.FirewallRule{Protocol: "tcp", Ports: []string{"22"}})
		if err != nil {
			t.Fatalf("Revoke() error: %v", err)
		}
		if len(got.Rules) != 1 || got.Rules[0].Protocol != "udp" {
			t.Fatalf("Revoke() rules = %+v", got.Rules)
		}
	})
	t.Run("revoke missing", func(t *testing.T) {
		if _, err := fws.Revoke(ctx, fw.ID, provider.FirewallRule{Protocol: "icmp"}); !provider.IsNotFound(err) {
			t.Fatalf("Revoke() error = %v; want NotFound", err)
		}
	})
	t.Run("revoke last", func(t *testing.T) {
		if _, err := fws.Revoke(ctx, fw.ID, provider.FirewallRule{Protocol: "udp", Ports: []string{"53", "5353"}}); !provider.IsKind(err, provider.KindBadArgument) {
			t.Fatalf("Revoke() error = %v; want BadArgument", err)
		}
	})
	t.Run("delete", func(t *testing.T) {
		if err := fws.Delete(ctx, fw.ID); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := fws.Authorize(ctx, fw.ID, provider.FirewallRule{Protocol: "tcp"}); !provider.IsNotFound(err) {
			t.Fatalf("Authorize() on deleted error = %v; want NotFound", err)
		}
	})
}

func Test_firewall_list(t *testing.T) {
	m := newMockGCE(t)
	d := newTestDriver(t, m)

	m.seed("global", "firewalls", &compute.Firewall{Name: "b", Network: "global/networks/default", Direction: "EGRESS",
		Allowed: []*compute.FirewallAllowed{{IPProtocol: "all"}}})
	m.seed("global", "firewalls", &compute.Firewall{Name: "a", Network: "global/networks/ci",
		Allowed: []*compute.FirewallAllowed{{IPProtocol: "tcp", Ports: []string{"80", "443"}}}})

	out, err := d.Firewalls().List(context.Background(), provider.FilterOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[0].VLANID != "ci" || out[1].Direction != "EGRESS" {
		t.Fatalf("List() = %+v", out)
	}
}

func Test_same_rule(t *testing.T) {
	tests := []struct {
		allowed *compute.FirewallAllowed
		rule    provider.FirewallRule
		want    bool
	}{
		{&compute.FirewallAllowed{IPProtocol: "tcp", Ports: []string{"22", "80"}}, provider.FirewallRule{Protocol: "TCP", Ports: []string{"80", "22"}}, true},
		{&compute.FirewallAllowed{IPProtocol: "tcp"}, provider.FirewallRule{Protocol: "tcp"}, true},
		{&compute.FirewallAllowed{IPProtocol: "tcp", Ports: []string{"22"}}, provider.FirewallRule{Protocol: "udp", Ports: []string{"22"}}, false},
		{&compute.FirewallAllowed{IPProtocol: "tcp", Ports: []string{"22"}}, provider.FirewallRule{Protocol: "tcp"}, false},
	}
	for _, tt := range tests {
		if got := sameRule(tt.allowed, tt.rule); got != tt.want {
			t.Fatalf("sameRule(%+v, %+v) = %v; want %v", tt.allowed, tt.rule, got, tt.want)
		}
	}
}
