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
	"slices"
	"testing"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
)

func Test_ip_assign_cycle(t *testing.T) {
	m := newMockGCE(t)
	d := newTestDriver(t, m)
	ctx := context.Background()
	ips := d.IPAddresses()

	opts := launchOpts("front")
	opts.PublicIP = true
	vm, err := d.VirtualMachines().Launch(ctx, opts)
	if err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	ephemeral := vm.Public[0]

	addr, err := ips.Request(ctx, provider.IPAddressRequestOptions{Name: "front-ip"})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if addr.ID != testRegion+"/front-ip" || addr.State != provider.StateAvailable || addr.Internal || addr.VMID != "" {
		t.Fatalf("Request() = %+v", addr)
	}

	t.Run("assign", func(t *testing.T) {
		got, err := ips.Assign(ctx, addr.ID, vm.ID)
		if err != nil {
			t.Fatalf("Assign() error: %v", err)
		}
		if got.VMID != vm.ID || got.State != provider.StateInUse {
			t.Fatalf("Assign() = %+v", got)
		}
		after, _ := d.VirtualMachines().Get(ctx, vm.ID)
		if len(after.Public) != 1 || after.Public[0] != addr.Address || slices.Contains(after.Public, ephemeral) {
			t.Fatalf("Instance public addresses = %v; want only %s", after.Public, addr.Address)
		}
	})
	t.Run("unassign", func(t *testing.T) {
		got, err := ips.Unassign(ctx, addr.ID)
		if err != nil {
			t.Fatalf("Unassign() error: %v", err)
		}
		if got.VMID != "" || got.State != provider.StateAvailable {
			t.Fatalf("Unassign() = %+v", got)
		}
		after, _ := d.VirtualMachines().Get(ctx, vm.ID)
		if len(after.Public) != 0 {
			t.Fatalf("Instance public addresses = %v; want none", after.Public)
		}
	})
	t.Run("unassign again", func(t *testing.T) {
		if _, err := ips.Unassign(ctx, addr.ID); !provider.IsKind(err, provider.KindBadArgument) {
			t.Fatalf("Unassign() error = %v; want BadArgument", err)
		}
	})
	t.Run("release", func(t *testing.T) {
		if err := ips.Release(ctx, addr.ID); err != nil {
			t.Fatalf("Release() error: %v", err)
		}
		if got, err := ips.Get(ctx, addr.ID); got != nil || err != nil {
			t.Fatalf("Get() after release = %v, %v", got, err)
		}
	})
}

func Test_ip_assign_errors(t *testing.T) {
	m := newMockGCE(t)
	d := newTestDriver(t, m)
	ctx := context.Background()
	ips := d.IPAddresses()

	internal, err := ips.Request(ctx, provider.IPAddressRequestOptions{Name: "int", Internal: true, SubnetID: "default"})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if !internal.Internal {
		t.Fatalf("Request() = %+v; want internal", internal)
	}
	if _, err = ips.Assign(ctx, internal.ID, testZone+"/vm"); !provider.IsKind(err, provider.KindBadArgument) {
		t.Fatalf("Assign() internal error = %v; want BadArgument", err)
	}

	external, err := ips.Request(ctx, provider.IPAddressRequestOptions{Name: "ext"})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if _, err = ips.Assign(ctx, external.ID, "europe-west1-b/vm"); !provider.IsKind(err, provider.KindBadArgument) {
		t.Fatalf("Assign() cross region error = %v; want BadArgument", err)
	}
	if _, err = ips.Assign(ctx, testRegion+"/missing", testZone+"/vm"); !provider.IsNotFound(err) {
		t.Fatalf("Assign() missing address error = %v; want NotFound", err)
	}
	if _, err = ips.Assign(ctx, external.ID, testZone+"/missing"); !provider.IsNotFound(err) {
		t.Fatalf("Assign() missing instance error = %v; want NotFound", err)
	}
	if _, err = ips.Request(ctx, provider.IPAddressRequestOptions{Name: "int2", Internal: true}); !provider.IsKind(err, provider.KindBadArgument) {
		t.Fatalf("Request() internal without subnet error = %v; want BadArgument", err)
	}
}

func Test_ip_list(t *testing.T) {
	m := newMockGCE(t)
	d := newTestDriver(t, m)
	ctx := context.Background()

	for _, req := range []provider.IPAddressRequestOptions{
		{Name: "a"},
		{Name: "b", Location: "europe-west1"},
	} {
		if _, err := d.IPAddresses().Request(ctx, req); err != nil {
			t.Fatalf("Request() error: %v", err)
		}
	}
	out, err := d.IPAddresses().List(ctx, provider.FilterOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "europe-west1/b" || out[1].ID != testRegion+"/a" {
		t.Fatalf("List() = %+v", out)
	}
	out, err = d.IPAddresses().List(ctx, provider.FilterOptions{Location: testRegion})
	if err != nil || len(out) != 1 {
		t.Fatalf("List(region) = %+v, %v", out, err)
	}
}
