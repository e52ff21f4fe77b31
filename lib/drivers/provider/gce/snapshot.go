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
	"strings"

	"google.golang.org/api/compute/v1"

	"github.com/adobe/aquarium-gce/lib/drivers/provider"
	"github.com/adobe/aquarium-gce/lib/log"
)

type snapshotService struct {
	d *Driver
}

func (s *snapshotService) Get(ctx context.Context, id string) (*provider.Snapshot, error) {
	if err := globalName("snapshot", id); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := svc.Snapshots.Get(s.d.cfg.ProjectID, id).Context(ctx).Do()
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, fmt.Sprintf("Unable to get snapshot %q", id), err)
	}
	return snapshotFromCompute(snap), nil
}

// List ignores the location filter, the snapshots are global
func (s *snapshotService) List(ctx context.Context, filter provider.FilterOptions) ([]*provider.Snapshot, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}
	var out []*provider.Snapshot
	err = svc.Snapshots.List(s.d.cfg.ProjectID).Pages(ctx, func(page *compute.SnapshotList) error {
		for _, snap := range page.Items {
			if filter.Matches(snap.Name, snap.Labels) {
				out = append(out, snapshotFromCompute(snap))
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, "Unable to list snapshots", err)
	}
	return out, nil
}

// Create takes snapshot of the disk, the operation belongs to the disk zone
func (s *snapshotService) Create(ctx context.Context, opts provider.SnapshotCreateOptions) (*provider.Snapshot, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	zone, disk, err := s.d.parseZonalID(opts.VolumeID)
	if err != nil {
		return nil, err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithFunc("gce", "CreateSnapshot").With("provider.name", s.d.name, "disk", opts.VolumeID, "snapshot", opts.Name)
	logger.Info("Creating snapshot")

	snap := &compute.Snapshot{
		Name:        opts.Name,
		Description: opts.Description,
		Labels:      s.d.labels(opts.Labels),
	}
	op, err := svc.Disks.CreateSnapshot(s.d.cfg.ProjectID, zone, disk, snap).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, ZoneScope(zone), op, err, fmt.Sprintf("Unable to create snapshot %q", opts.Name)); err != nil {
		logger.Error("Unable to create snapshot", "err", err)
		return nil, err
	}
	s.d.record(ctx, "snapshot", "create")

	out, err := s.Get(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, provider.NewError(provider.KindGeneral, fmt.Sprintf("Snapshot %q is not found after creation", opts.Name))
	}
	return out, nil
}

func (s *snapshotService) Delete(ctx context.Context, id string) error {
	if err := globalName("snapshot", id); err != nil {
		return err
	}
	svc, err := s.d.computeService(ctx)
	if err != nil {
		return err
	}
	op, err := svc.Snapshots.Delete(s.d.cfg.ProjectID, id).RequestId(newRequestID()).Context(ctx).Do()
	if err = s.d.await(ctx, svc, GlobalScope(), op, err, fmt.Sprintf("Unable to delete snapshot %q", id)); err != nil {
		return err
	}
	s.d.record(ctx, "snapshot", "delete")
	return nil
}

func snapshotFromCompute(snap *compute.Snapshot) *provider.Snapshot {
	out := &provider.Snapshot{
		ID:          snap.Name,
		Name:        snap.Name,
		SizeGB:      snap.DiskSizeGb,
		State:       resourceState(snap.Status),
		Description: snap.Description,
		Labels:      snap.Labels,
		Created:     parseTimestamp(snap.CreationTimestamp),
	}
	if snap.SourceDisk != "" {
		out.VolumeID = zonalIDFromURL(snap.SourceDisk)
	}
	return out
}

// resourceState maps the status of snapshots, images and addresses
func resourceState(status string) provider.ResourceState {
	switch status {
	case "READY", "RESERVED":
		return provider.StateAvailable
	case "IN_USE":
		return provider.StateInUse
	case "DELETING":
		return provider.StateDeleting
	case "FAILED":
		return provider.StateError
	}
	return provider.StatePending
}

// globalName checks the identifier of the global resource
func globalName(kind, id string) error {
	if id == "" {
		return provider.NewError(provider.KindBadArgument, fmt.Sprintf("Empty %s identifier", kind))
	}
	if strings.Contains(id, "/") {
		return provider.NewError(provider.KindBadArgument, fmt.Sprintf("Invalid %s identifier %q: global resources are addressed by name", kind, id))
	}
	return nil
}
