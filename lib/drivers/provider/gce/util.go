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
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
)

// lastComponent returns the resource name from the self link or partial url
func lastComponent(link string) string {
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

// regionFromZone strips the zone suffix: "us-central1-a" -> "us-central1"
func regionFromZone(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 {
		return zone[:i]
	}
	return zone
}

// scopedID builds "<location>/<name>" identifier of the zonal or regional resource
func scopedID(location, name string) string {
	return location + "/" + name
}

// parseScopedID splits the identifier, bare name is resolved with the default location
func parseScopedID(kind, id, def string) (location, name string, err error) {
	if id == "" {
		return "", "", provider.NewError(provider.KindBadArgument, fmt.Sprintf("Empty %s identifier", kind))
	}
	location, name, found := strings.Cut(id, "/")
	if !found {
		location, name = def, id
	}
	if location == "" || name == "" || strings.Contains(name, "/") {
		return "", "", provider.NewError(provider.KindBadArgument,
			fmt.Sprintf("Unable to resolve %s of %q: use <%s>/<name> form or set the default %s", kind, id, kind, kind))
	}
	return location, name, nil
}

// parseZonalID returns zone and name of the VM or volume
func (d *Driver) parseZonalID(id string) (zone, name string, err error) {
	return parseScopedID("zone", id, d.cfg.Zone)
}

// parseRegionalID returns region and name of the address or load balancer
func (d *Driver) parseRegionalID(id string) (region, name string, err error) {
	return parseScopedID("region", id, d.cfg.Region)
}

// zoneOrDefault picks the requested location or the configured one
func (d *Driver) zoneOrDefault(location string) (string, error) {
	if location == "" {
		location = d.cfg.Zone
	}
	if location == "" {
		return "", provider.NewError(provider.KindBadArgument, "Zone is not set and no default zone is configured")
	}
	return location, nil
}

func (d *Driver) regionOrDefault(location string) (string, error) {
	if location == "" {
		location = d.cfg.Region
	}
	if location == "" {
		return "", provider.NewError(provider.KindBadArgument, "Region is not set and no default region is configured")
	}
	return location, nil
}

// newRequestID makes the insert idempotent if the client library retries it
func newRequestID() string {
	return uuid.NewString()
}

// Partial urls accepted by the compute api in the resource references

func machineTypeURL(zone, machineType string) string {
	if strings.Contains(machineType, "/") {
		return machineType
	}
	return fmt.Sprintf("zones/%s/machineTypes/%s", zone, machineType)
}

func diskTypeURL(zone, diskType string) string {
	if strings.Contains(diskType, "/") {
		return diskType
	}
	return fmt.Sprintf("zones/%s/diskTypes/%s", zone, diskType)
}

// imageURL accepts image name, "<project>/<family or name>" or the full link
func (d *Driver) imageURL(image string) string {
	switch strings.Count(image, "/") {
	case 0:
		return fmt.Sprintf("projects/%s/global/images/%s", d.cfg.ProjectID, image)
	case 1:
		project, name, _ := strings.Cut(image, "/")
		return fmt.Sprintf("projects/%s/global/images/%s", project, name)
	}
	return image
}

func (d *Driver) networkURL(network string) string {
	if strings.Contains(network, "/") {
		return network
	}
	return fmt.Sprintf("projects/%s/global/networks/%s", d.cfg.ProjectID, network)
}

func (d *Driver) subnetworkURL(region, subnet string) string {
	if strings.Contains(subnet, "/") {
		return subnet
	}
	return fmt.Sprintf("projects/%s/regions/%s/subnetworks/%s", d.cfg.ProjectID, region, subnet)
}

func (d *Driver) snapshotURL(snapshot string) string {
	if strings.Contains(snapshot, "/") {
		return snapshot
	}
	return fmt.Sprintf("projects/%s/global/snapshots/%s", d.cfg.ProjectID, snapshot)
}

func (d *Driver) diskURL(zone, disk string) string {
	return fmt.Sprintf("projects/%s/zones/%s/disks/%s", d.cfg.ProjectID, zone, disk)
}

func (d *Driver) instanceURL(zone, instance string) string {
	return fmt.Sprintf("projects/%s/zones/%s/instances/%s", d.cfg.ProjectID, zone, instance)
}

func (d *Driver) addressURL(region, address string) string {
	return fmt.Sprintf("projects/%s/regions/%s/addresses/%s", d.cfg.ProjectID, region, address)
}

// zonalIDFromURL converts ".../zones/<zone>/<kind>/<name>" link to the zonal identifier
func zonalIDFromURL(link string) string {
	parts := strings.Split(link, "/")
	for i := 0; i+3 < len(parts); i++ {
		if parts[i] == "zones" {
			return scopedID(parts[i+1], parts[i+3])
		}
	}
	return lastComponent(link)
}

// regionalIDFromURL is the same for ".../regions/<region>/<kind>/<name>"
func regionalIDFromURL(link string) string {
	parts := strings.Split(link, "/")
	for i := 0; i+3 < len(parts); i++ {
		if parts[i] == "regions" {
			return scopedID(parts[i+1], parts[i+3])
		}
	}
	return lastComponent(link)
}

// labels merges the driver instance labels with the requested ones, requested wins
func (d *Driver) labels(requested map[string]string) map[string]string {
	out := make(map[string]string, len(d.cfg.InstanceLabels)+len(requested))
	maps.Copy(out, d.cfg.InstanceLabels)
	maps.Copy(out, requested)
	return out
}

// parseTimestamp reads RFC3339 creation timestamp, zero time if not parsable
func parseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
