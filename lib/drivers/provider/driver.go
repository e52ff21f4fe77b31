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

// Package provider describes the cloud abstraction each provider driver implements
package provider

import (
	"context"
)

// FactoryList is a list of available drivers factories
var FactoryList []DriverFactory

// DriverFactory allows to generate new instances of the drivers
type DriverFactory interface {
	// Name of the driver
	Name() string

	// Generates new provider driver
	New() Driver
}

// Driver connects the abstraction to the provider
// The resource accessors return nil when the provider does not support the resource kind
type Driver interface {
	// Name of the driver
	Name() string

	// SetName of the driver instance, used when one provider is configured multiple times
	SetName(name string)

	// Give driver configs and check if it's ok
	// -> config - driver configuration in json format
	Prepare(ctx context.Context, config []byte) error

	VirtualMachines() VirtualMachineService
	Volumes() VolumeService
	Snapshots() SnapshotService
	Images() ImageService
	VLANs() VLANService
	Firewalls() FirewallService
	LoadBalancers() LoadBalancerService
	IPAddresses() IPAddressService
}

// VirtualMachineService manages the compute instances
// Get of a missing resource returns nil without error in all the services
type VirtualMachineService interface {
	Get(ctx context.Context, id string) (*VirtualMachine, error)
	List(ctx context.Context, filter FilterOptions) ([]*VirtualMachine, error)

	// ListProducts returns the machine types available in the location
	ListProducts(ctx context.Context, location string) ([]*VMProduct, error)

	// Launch creates the machine and returns it when the provider reports the creation done
	Launch(ctx context.Context, opts VMLaunchOptions) (*VirtualMachine, error)

	// LaunchMany creates count machines and returns the identifiers of the created ones
	// -> fails only when none of the machines were created
	LaunchMany(ctx context.Context, opts VMLaunchOptions, count int) ([]string, error)

	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Reboot(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Unpause(ctx context.Context, id string) error
	Terminate(ctx context.Context, id string) error

	// AlterProduct changes the machine type of the stopped machine
	AlterProduct(ctx context.Context, id, productID string) (*VirtualMachine, error)

	// ConsoleOutput returns the serial console content
	ConsoleOutput(ctx context.Context, id string) (string, error)
}

// VolumeService manages the block storage
type VolumeService interface {
	Get(ctx context.Context, id string) (*Volume, error)
	List(ctx context.Context, filter FilterOptions) ([]*Volume, error)
	Create(ctx context.Context, opts VolumeCreateOptions) (*Volume, error)
	Delete(ctx context.Context, id string) error
	Attach(ctx context.Context, id, vmID, device string) error
	Detach(ctx context.Context, id, vmID string) error
	Resize(ctx context.Context, id string, sizeGB int64) (*Volume, error)
}

// SnapshotService manages the volume snapshots
type SnapshotService interface {
	Get(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context, filter FilterOptions) ([]*Snapshot, error)
	Create(ctx context.Context, opts SnapshotCreateOptions) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// ImageService manages the machine images
type ImageService interface {
	Get(ctx context.Context, id string) (*MachineImage, error)
	List(ctx context.Context, filter FilterOptions) ([]*MachineImage, error)
	Create(ctx context.Context, opts ImageCreateOptions) (*MachineImage, error)
	Delete(ctx context.Context, id string) error
}

// VLANService manages the isolated networks and their subnets
type VLANService interface {
	Get(ctx context.Context, id string) (*VLAN, error)
	List(ctx context.Context, filter FilterOptions) ([]*VLAN, error)
	Create(ctx context.Context, opts VLANCreateOptions) (*VLAN, error)
	Delete(ctx context.Context, id string) error

	ListSubnets(ctx context.Context, vlanID string) ([]*Subnet, error)
	CreateSubnet(ctx context.Context, opts SubnetCreateOptions) (*Subnet, error)
	DeleteSubnet(ctx context.Context, id string) error
}

// FirewallService manages the network access rules
type FirewallService interface {
	Get(ctx context.Context, id string) (*Firewall, error)
	List(ctx context.Context, filter FilterOptions) ([]*Firewall, error)
	Create(ctx context.Context, opts FirewallCreateOptions) (*Firewall, error)
	Delete(ctx context.Context, id string) error

	// Authorize adds the rule to the firewall, does nothing if the same rule exists
	Authorize(ctx context.Context, id string, rule FirewallRule) (*Firewall, error)
	// Revoke removes the rule from the firewall
	Revoke(ctx context.Context, id string, rule FirewallRule) (*Firewall, error)
}

// LoadBalancerService manages the network load balancers
type LoadBalancerService interface {
	Get(ctx context.Context, id string) (*LoadBalancer, error)
	List(ctx context.Context, filter FilterOptions) ([]*LoadBalancer, error)
	Create(ctx context.Context, opts LoadBalancerCreateOptions) (*LoadBalancer, error)
	Delete(ctx context.Context, id string) error
	AddServers(ctx context.Context, id string, vmIDs []string) (*LoadBalancer, error)
	RemoveServers(ctx context.Context, id string, vmIDs []string) (*LoadBalancer, error)
}

// IPAddressService manages the reserved public addresses
type IPAddressService interface {
	Get(ctx context.Context, id string) (*IPAddress, error)
	List(ctx context.Context, filter FilterOptions) ([]*IPAddress, error)
	Request(ctx context.Context, opts IPAddressRequestOptions) (*IPAddress, error)
	Release(ctx context.Context, id string) error

	// Assign replaces the public address of the machine with the reserved one
	Assign(ctx context.Context, id, vmID string) (*IPAddress, error)
	// Unassign detaches the reserved address from the machine it is assigned to
	Unassign(ctx context.Context, id string) (*IPAddress, error)
}
