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

package provider

import (
	"time"
)

// VMState is a provider-neutral state of the virtual machine
type VMState string

const (
	VMPending    VMState = "PENDING"
	VMRunning    VMState = "RUNNING"
	VMStopping   VMState = "STOPPING"
	VMStopped    VMState = "STOPPED"
	VMSuspended  VMState = "SUSPENDED"
	VMTerminated VMState = "TERMINATED"
)

// VolumeState is a provider-neutral state of the volume
type VolumeState string

const (
	VolumePending   VolumeState = "PENDING"
	VolumeAvailable VolumeState = "AVAILABLE"
	VolumeInUse     VolumeState = "IN_USE"
	VolumeDeleting  VolumeState = "DELETING"
	VolumeError     VolumeState = "ERROR"
)

// ResourceState is used by the snapshots, images and addresses
type ResourceState string

const (
	StatePending   ResourceState = "PENDING"
	StateAvailable ResourceState = "AVAILABLE"
	StateInUse     ResourceState = "IN_USE"
	StateDeleting  ResourceState = "DELETING"
	StateError     ResourceState = "ERROR"
)

// VirtualMachine is a compute instance
type VirtualMachine struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Location  string            `json:"location"`   // Zone
	ProductID string            `json:"product_id"` // Machine type
	ImageID   string            `json:"image_id,omitempty"`
	State     VMState           `json:"state"`
	Private   []string          `json:"private_addresses,omitempty"`
	Public    []string          `json:"public_addresses,omitempty"`
	VolumeIDs []string          `json:"volume_ids,omitempty"`
	VLANIDs   []string          `json:"vlan_ids,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Created   time.Time         `json:"created"`

	// Filled only by Launch when the key was generated
	SSHPrivateKey string `json:"ssh_private_key,omitempty"`

	// Provider-specific values which have no place in the common fields
	Tags map[string]string `json:"tags,omitempty"`
}

// VMProduct is a machine type
type VMProduct struct {
	ID          string `json:"id"`
	Location    string `json:"location"`
	CPUs        int64  `json:"cpus"`
	MemoryMB    int64  `json:"memory_mb"`
	SharedCPU   bool   `json:"shared_cpu"`
	Description string `json:"description,omitempty"`
}

// Volume is a block storage disk
type Volume struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Location   string            `json:"location"`
	SizeGB     int64             `json:"size_gb"`
	Type       string            `json:"type"`
	State      VolumeState       `json:"state"`
	AttachedTo []string          `json:"attached_to,omitempty"` // VM ids
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ImageID    string            `json:"image_id,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	Created    time.Time         `json:"created"`
}

// Snapshot is a point in time copy of the volume
type Snapshot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	VolumeID    string            `json:"volume_id"`
	SizeGB      int64             `json:"size_gb"`
	State       ResourceState     `json:"state"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Created     time.Time         `json:"created"`
}

// MachineImage is a bootable image
type MachineImage struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Family      string            `json:"family,omitempty"`
	Description string            `json:"description,omitempty"`
	VolumeID    string            `json:"volume_id,omitempty"` // Source volume
	SizeGB      int64             `json:"size_gb"`
	State       ResourceState     `json:"state"`
	Labels      map[string]string `json:"labels,omitempty"`
	Created     time.Time         `json:"created"`
}

// VLAN is an isolated network
type VLAN struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AutoSubnets bool      `json:"auto_subnets"`
	MTU         int64     `json:"mtu,omitempty"`
	Subnets     []string  `json:"subnets,omitempty"` // Subnet ids
	Created     time.Time `json:"created"`
}

// Subnet is a regional address range of the VLAN
type Subnet struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"` // Region
	VLANID   string `json:"vlan_id"`
	CIDR     string `json:"cidr"`
	Gateway  string `json:"gateway,omitempty"`
}

// FirewallRule allows the protocol on the ports, empty ports means all
type FirewallRule struct {
	Protocol string   `json:"protocol"`
	Ports    []string `json:"ports,omitempty"`
}

// Firewall is a set of rules applied to the VLAN
type Firewall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	VLANID       string         `json:"vlan_id"`
	Description  string         `json:"description,omitempty"`
	Direction    string         `json:"direction"`
	Priority     int64          `json:"priority"`
	Rules        []FirewallRule `json:"rules"`
	SourceRanges []string       `json:"source_ranges,omitempty"`
	TargetTags   []string       `json:"target_tags,omitempty"`
	Created      time.Time      `json:"created"`
}

// LBListener is the frontend of the load balancer
type LBListener struct {
	Protocol  string `json:"protocol"`
	PortRange string `json:"port_range"`
}

// LoadBalancer is a regional network load balancer
type LoadBalancer struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Location    string       `json:"location"`
	Address     string       `json:"address"`
	Listeners   []LBListener `json:"listeners"`
	Servers     []string     `json:"servers,omitempty"` // VM ids
	HealthCheck string       `json:"health_check,omitempty"`
	Created     time.Time    `json:"created"`
}

// IPAddress is a reserved address
type IPAddress struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Location string        `json:"location"`
	Address  string        `json:"address"`
	State    ResourceState `json:"state"`
	VMID     string        `json:"vm_id,omitempty"`
	Internal bool          `json:"internal"`
	Created  time.Time     `json:"created"`
}
