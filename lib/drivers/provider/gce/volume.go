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

type volumeService struct {
	d *Driver
}

func (s *volumeService) Get(ctx context.Context, id string) (*provider.Volume, error) {
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := svc.Disks.Get(s.d.cfg.ProjectID, zone, name).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get disk %q", id), err)
	}
	return volumeFromDisk(disk), nil
}

func (s *volumeService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.Volume, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	var out []*provider.Volume
	add := func(items []*compute.Disk) {
		for _, disk := range items {
			if filter.Matches(disk.Name, disk.Labels) {
				out = append(out, volumeFromDisk(disk))
			}
		}
	}
	if filter.Location != "" {
		err = svc.Disks.List(s.d.cfg.ProjectID, filter.Location).Pages(ctx, func(page *compute.DiskList) error {
			add(page.Items)
			return nil
		})
	} else {
		err = svc.Disks.AggregatedList(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.DiskAggregatedList) error {
			for _, scoped := range page.Items {
				add(scoped.Disks)
			}
			return nil
		})
	}
	if err != nil {
		return nil, mapError(ctx, "Unable to list disks", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create makes the empty disk or restores it from snapshot or image
func (s *volumeService) Create(ctx context.Context, opts provider.VolumeCreateOptions) (*provider.Volume, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	zone, err := s.d.zoneOrDefault(opts.Location)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithFunc("gce", "CreateVolume").With("provider.name", s.d.name, "zone", zone, "disk", opts.Name)

	disk := &compute.Disk{
		Name:   opts.Name,
		SizeGb: opts.Size.Gigabytes(),
		Labels: s.d.labels(opts.Labels),
	}
	if opts.Type != "" {
		disk.Type = diskTypeURL(zone, opts.Type)
	}
	if opts.SnapshotID != "" {
		disk.SourceSnapshot = s.d.snapshotURL(opts.SnapshotID)
	}
	if opts.ImageID != "" {
		disk.SourceImage = s.d.imageURL(opts.ImageID)
	}

	logger.Info("Creating disk", "size_gb", disk.SizeGb)
	op, err := svc.Disks.Insert(s.d.cfg.ProjectID, zone, disk).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to create disk %q", opts.Name)); err != nil {
		logger.Error("Unable to create disk", "err", err)
		return nil, err
	}
	s.d.record(ctx, "volume", "create")

	return s.mustGet(ctx, scopedID(zone, opts.Name))
}

func (s *volumeService) Delete(ctx context.Context, id string) error {
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Disks.Delete(s.d.cfg.ProjectID, zone, name).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to delete disk %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "volume", "delete")
	log.WithFunc("gce", "DeleteVolume").Info("Disk deleted", "provider.name", s.d.name, "disk", id)
	return nil
}

// Attach connects the disk to the instance in the same zone
func (s *volumeService) Attach(ctx context.Context, id, vmID, device string) error {
	zone, name, instance, err := s.sameZone(id, vmID)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}

	attached := &compute.AttachedDisk{
		Source:     s.d.diskURL(zone, name),
		DeviceName: device,
		Mode:       "READ_WRITE",
		Type:       "PERSISTENT",
	}
	op, err := svc.Instances.AttachDisk(s.d.cfg.ProjectID, zone, instance, attached).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to attach disk %q to instance %q", id, vmID)); err != nil {
		return err
	}
	s.d.record(ctx, "volume", "attach")
	return nil
}

// Detach disconnects the disk, the device name is found in the instance disks
func (s *volumeService) Detach(ctx context.Context, id, vmID string) error {
	zone, name, instance, err := s.sameZone(id, vmID)
	if err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}

	inst, err := svc.Instances.Get(s.d.cfg.ProjectID, zone, instance).Context(ctx).Do()
	if err != nil {
		return mapError(ctx, fmt.Sprintf("Unable to get instance %q", vmID), err)
	}
	device := ""
	for _, disk := range inst.Disks {
		if zonalIDFromURL(disk.Source) == scopedID(zone, name) {
			device = disk.DeviceName
			break
		}
	}
	if device == "" {
		return provider.NewError(provider.KindNotFound, fmt.Sprintf("Disk %q is not attached to instance %q", id, vmID))
	}

	op, err := svc.Instances.DetachDisk(s.d.cfg.ProjectID, zone, instance, device).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to detach disk %q from instance %q", id, vmID)); err != nil {
		return err
	}
	s.d.record(ctx, "volume", "detach")
	return nil
}

// Resize grows the disk, shrinking is rejected by the provider
func (s *volumeService) Resize(ctx context.Context, id string, sizeGB int64) (*provider.Volume, error) {
	if sizeGB <= 0 {
		return nil, provider.NewError(provider.KindBadArgument, fmt.Sprintf("Invalid disk size: %d", sizeGB))
	}
	zone, name, err := s.d.parseZonalID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	req := &compute.DisksResizeRequest{SizeGb: sizeGB}
	op, err := svc.Disks.Resize(s.d.cfg.ProjectID, zone, name, req).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to resize disk %q", id)); err != nil {
		return nil, err
	}
	s.d.record(ctx, "volume", "resize")
	return s.mustGet(ctx, id)
}

func (s *volumeService) sameZone(id, vmID string) (zone, name, instance string, err error) {
	zone, name, err = s.d.parseZonalID(id)
	if err != nil {
		return
	}
	vmZone, instance, err := s.d.parseZonalID(vmID)
	if err != nil {
		return
	}
	if vmZone != zone {
		err = provider.NewError(provider.KindBadArgument, fmt.Sprintf("Disk %q and instance %q are in different zones", id, vmID))
	}
	return
}

func (s *volumeService) mustGet(ctx context.Context, id string) (*provider.Volume, error) {
	vol, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if vol == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Disk %q is not found after the operation", id))
	}
	return vol, nil
}

func volumeFromDisk(disk *compute.Disk) *provider.Volume {
	zone := lastComponent(disk.Zone)
	vol := &provider.Volume{
		ID:       scopedID(zone, disk.Name),
		Name:     disk.Name,
		Location: zone,
		SizeGB:   disk.SizeGb,
		Type:     lastComponent(disk.Type),
		State:    volumeState(disk.Status, len(disk.Users) > 0),
		Labels:   disk.Labels,
		Created:  parseTimestamp(disk.CreationTimestamp),
	}
	for _, user := range disk.Users {
		vol.AttachedTo = append(vol.AttachedTo, zonalIDFromURL(user))
	}
	if disk.SourceSnapshot != "" {
		vol.SnapshotID = lastComponent(disk.SourceSnapshot)
	}
	if disk.SourceImage != "" {
		vol.ImageID = lastComponent(disk.SourceImage)
	}
	return vol
}

func volumeState(status string, attached bool) provider.VolumeState {
	switch status {
	case "READY":
		if attached {
			return provider.VolumeInUse
		}
		return provider.VolumeAvailable
	case "DELETING":
		return provider.VolumeDeleting
	case "FAILED":
		return provider.VolumeError
	}
	return provider.VolumePending
}
