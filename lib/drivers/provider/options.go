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
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/adobe/aquarium-gce/lib/util"
)

// VMLaunchOptions describes the virtual machine to create
type VMLaunchOptions struct {
	Name      string `json:"name"`       // Generated when empty, for LaunchMany it's a prefix
	Location  string `json:"location"`   // Zone, driver default when empty
	ProductID string `json:"product_id"` // Machine type
	ImageID   string `json:"image_id"`   // Boot image name or link

	VolumeSize util.HumanSize `json:"volume_size"` // Boot disk size, image size when empty
	VolumeType string         `json:"volume_type"`

	VLANID   string `json:"vlan_id"`
	SubnetID string `json:"subnet_id"`
	PublicIP bool   `json:"public_ip"`

	Preemptible bool              `json:"preemptible"`
	Labels      map[string]string `json:"labels"`
	NetworkTags []string          `json:"network_tags"`

	// Bootstrap of the machine
	StartupScript  string         `json:"startup_script"`
	Metadata       map[string]any `json:"metadata"`        // Passed to the machine as metadata
	MetadataFormat string         `json:"metadata_format"` // env, ps1 or json
	SSHUser        string         `json:"ssh_user"`
	SSHPublicKey   string         `json:"ssh_public_key"`
	GenerateSSHKey bool           `json:"generate_ssh_key"` // Returns the private key in VirtualMachine

	ServiceAccount string   `json:"service_account"`
	Scopes         []string `json:"scopes"`
}

// Validate checks the options are complete enough to launch
func (o *VMLaunchOptions) Validate() error {
	if o.ProductID == "" {
		return NewError(KindBadArgument, "Product (machine type) is not set")
	}
	if o.ImageID == "" {
		return NewError(KindBadArgument, "Image is not set")
	}
	if o.SSHPublicKey != "" && o.GenerateSSHKey {
		return NewError(KindBadArgument, "Either ssh_public_key or generate_ssh_key could be set")
	}
	if (o.SSHPublicKey != "" || o.GenerateSSHKey) && o.SSHUser == "" {
		return NewError(KindBadArgument, "SSH user is required to add the ssh key")
	}
	switch o.MetadataFormat {
	case "", util.MetadataFormatEnv, util.MetadataFormatPS1, util.MetadataFormatJSON:
	default:
		return NewError(KindBadArgument, fmt.Sprintf("Unsupported metadata format: %q", o.MetadataFormat))
	}
	return nil
}

// VolumeCreateOptions describes the volume to create
type VolumeCreateOptions struct {
	Name       string            `json:"name"`
	Location   string            `json:"location"`
	Size       util.HumanSize    `json:"size"`
	Type       string            `json:"type"`
	SnapshotID string            `json:"snapshot_id"`
	ImageID    string            `json:"image_id"`
	Labels     map[string]string `json:"labels"`
}

// Validate checks the volume options
func (o *VolumeCreateOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "Volume name is not set")
	}
	if o.Size == 0 && o.SnapshotID == "" && o.ImageID == "" {
		return NewError(KindBadArgument, "Volume size is required when not created from snapshot or image")
	}
	if o.SnapshotID != "" && o.ImageID != "" {
		return NewError(KindBadArgument, "Volume could be created either from snapshot or image")
	}
	return nil
}

// SnapshotCreateOptions describes the snapshot to take
type SnapshotCreateOptions struct {
	Name        string            `json:"name"`
	VolumeID    string            `json:"volume_id"`
	Description string            `json:"description"`
	Labels      map[string]string `json:"labels"`
}

// Validate checks the snapshot options
func (o *SnapshotCreateOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "Snapshot name is not set")
	}
	if o.VolumeID == "" {
		return NewError(KindBadArgument, "Snapshot source volume is not set")
	}
	return nil
}

// ImageCreateOptions describes the image to capture from volume or to import from storage object
type ImageCreateOptions struct {
	Name        string            `json:"name"`
	Family      string            `json:"family"`
	Description string            `json:"description"`
	VolumeID    string            `json:"volume_id"`
	StorageURL  string            `json:"storage_url"` // gs://bucket/path/disk.tar.gz
	Labels      map[string]string `json:"labels"`
}

// Validate checks the image options
func (o *ImageCreateOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "Image name is not set")
	}
	if (o.VolumeID == "") == (o.StorageURL == "") {
		return NewError(KindBadArgument, "Exactly one of volume_id or storage_url is required")
	}
	return nil
}

// VLANCreateOptions describes the network to create
type VLANCreateOptions struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AutoSubnets bool   `json:"auto_subnets"`
	MTU         int64  `json:"mtu"`
}

// Validate checks the network options
func (o *VLANCreateOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "VLAN name is not set")
	}
	return nil
}

// SubnetCreateOptions describes the subnet to create in the VLAN
type SubnetCreateOptions struct {
	Name     string `json:"name"`
	VLANID   string `json:"vlan_id"`
	Location string `json:"location"` // Region
	CIDR     string `json:"cidr"`
}

// Validate checks the subnet options
func (o *SubnetCreateOptions) Validate() error {
	if o.Name == "" || o.VLANID == "" || o.CIDR == "" {
		return NewError(KindBadArgument, "Subnet requires name, vlan_id and cidr")
	}
	return nil
}

// FirewallCreateOptions describes the firewall to create
type FirewallCreateOptions struct {
	Name         string         `json:"name"`
	VLANID       string         `json:"vlan_id"`
	Description  string         `json:"description"`
	Direction    string         `json:"direction"` // INGRESS by default
	Priority     int64          `json:"priority"`
	Rules        []FirewallRule `json:"rules"`
	SourceRanges []string       `json:"source_ranges"`
	TargetTags   []string       `json:"target_tags"`
}

// Validate checks the firewall options
func (o *FirewallCreateOptions) Validate() error {
	if o.Name == "" || o.VLANID == "" {
		return NewError(KindBadArgument, "Firewall requires name and vlan_id")
	}
	if len(o.Rules) == 0 {
		return NewError(KindBadArgument, "Firewall requires at least one rule")
	}
	for _, r := range o.Rules {
		if r.Protocol == "" {
			return NewError(KindBadArgument, "Firewall rule protocol is not set")
		}
	}
	return nil
}

// LoadBalancerCreateOptions describes the network load balancer to create
type LoadBalancerCreateOptions struct {
	Name      string   `json:"name"`
	Location  string   `json:"location"` // Region
	Protocol  string   `json:"protocol"` // TCP by default
	PortRange string   `json:"port_range"`
	AddressID string   `json:"address_id"` // Reserved address to use
	Servers   []string `json:"servers"`    // VM ids

	HealthCheckPath string `json:"health_check_path"`
	HealthCheckPort int64  `json:"health_check_port"`
}

// Validate checks the load balancer options
func (o *LoadBalancerCreateOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "Load balancer name is not set")
	}
	if o.PortRange == "" {
		return NewError(KindBadArgument, "Load balancer port range is not set")
	}
	return nil
}

// IPAddressRequestOptions describes the address to reserve
type IPAddressRequestOptions struct {
	Name        string `json:"name"`
	Location    string `json:"location"` // Region
	Description string `json:"description"`
	Internal    bool   `json:"internal"`
	SubnetID    string `json:"subnet_id"` // Required for internal
}

// Validate checks the address options
func (o *IPAddressRequestOptions) Validate() error {
	if o.Name == "" {
		return NewError(KindBadArgument, "Address name is not set")
	}
	if o.Internal && o.SubnetID == "" {
		return NewError(KindBadArgument, "Internal address requires subnet_id")
	}
	return nil
}

// FilterOptions narrows down the List results
type FilterOptions struct {
	Location  string            `json:"location"`   // Zone or region, all when empty
	NameRegex string            `json:"name_regex"` // Applied to the resource name
	Labels    map[string]string `json:"labels"`     // All of them should match

	nameRe *regexp.Regexp
}

// Compile prepares the filter, returns BadArgument error on invalid regex
func (f *FilterOptions) Compile() error {
	if f.NameRegex == "" {
		f.nameRe = nil
		return nil
	}
	re, err := regexp.Compile(f.NameRegex)
	if err != nil {
		return WrapError(KindBadArgument, fmt.Sprintf("Invalid name regex %q", f.NameRegex), err)
	}
	f.nameRe = re
	return nil
}

// Matches checks the resource against the filter, Compile should be called before
func (f *FilterOptions) Matches(name string, labels map[string]string) bool {
	if f.nameRe != nil && !f.nameRe.MatchString(name) {
		return false
	}
	for k, v := range f.Labels {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// ParseOptions applies json to the options struct, used by the cli and config files
func ParseOptions(data []byte, opts any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, opts); err != nil {
		return WrapError(KindBadArgument, "Unable to parse options", err)
	}
	return nil
}
